package server

import (
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	for _, row := range []struct {
		description string
		filename    string
		valid       bool
	}{
		{description: "plain", filename: "photo.png", valid: true},
		{description: "unicode", filename: "фото.png", valid: true},
		{description: "empty", filename: ""},
		{description: "blank", filename: "   "},
		{description: "dot", filename: "."},
		{description: "dot dot", filename: ".."},
		{description: "slash", filename: "a/b.txt"},
		{description: "backslash", filename: `a\b.txt`},
		{description: "too long", filename: strings.Repeat("x", MaxFilenameLen+1)},
		{description: "longest allowed", filename: strings.Repeat("x", MaxFilenameLen), valid: true},
	} {
		t.Run(row.description, func(t *testing.T) {
			err := validateFilename(row.filename)
			if row.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestIPAllowed(t *testing.T) {
	for _, row := range []struct {
		description string
		allowed     []string
		ip          string
		ok          bool
	}{
		{description: "empty list", ip: "1.2.3.4", ok: true},
		{description: "exact", allowed: []string{"1.2.3.4"}, ip: "1.2.3.4", ok: true},
		{description: "prefix is not a match", allowed: []string{"1.2.3.45"}, ip: "1.2.3.4"},
		{description: "cidr", allowed: []string{"192.168.0.0/16"}, ip: "192.168.7.1", ok: true},
		{description: "outside cidr", allowed: []string{"192.168.0.0/16"}, ip: "10.0.0.1"},
	} {
		t.Run(row.description, func(t *testing.T) {
			require.Equal(t, row.ok, ipAllowed(row.allowed, row.ip))
		})
	}
}
