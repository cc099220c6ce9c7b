package types_test

import (
	"errors"
	"github.com/denisschmidt/localstore/internal/types"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestValidateInput(t *testing.T) {
	for _, row := range []struct {
		description string
		input       types.FileRecordInput
		field       string
	}{
		{
			description: "valid input",
			input:       types.NewFileRecordInput("a.txt", "text/plain", []byte{1, 2, 3}),
		},
		{
			description: "empty data is allowed",
			input:       types.NewFileRecordInput("empty.bin", "", []byte{}),
		},
		{
			description: "empty filename",
			input:       types.NewFileRecordInput("", "text/plain", []byte{1}),
			field:       "filename",
		},
		{
			description: "nil data",
			input:       types.FileRecordInput{Filename: "a.txt"},
			field:       "data",
		},
		{
			description: "size does not match data",
			input: types.FileRecordInput{
				Filename: "a.txt",
				Size:     10,
				Data:     []byte{1, 2, 3},
			},
			field: "size",
		},
	} {
		t.Run(row.description, func(t *testing.T) {
			err := row.input.Validate()
			if row.field == "" {
				require.NoError(t, err)
				return
			}

			var ve types.ErrValidation
			require.True(t, errors.As(err, &ve))
			require.Equal(t, row.field, ve.Field)
		})
	}
}

func TestInputSummary(t *testing.T) {
	in := types.NewFileRecordInput("a.txt", "text/plain", []byte("abc"))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))

	s := in.Summary(types.ID("id-1"), at)

	require.Equal(t, types.ID("id-1"), s.ID)
	require.Equal(t, types.Filename("a.txt"), s.Filename)
	require.Equal(t, types.ContentType("text/plain"), s.ContentType)
	require.Equal(t, int64(3), s.Size)
	require.Equal(t, time.UTC, s.CreateAt.Location())
	require.True(t, at.Equal(s.CreateAt))
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("disk on fire")

	err := error(types.ErrStorageUnavailable{Path: "/x", Err: cause})
	require.ErrorIs(t, err, cause)

	err = types.ErrStorageFull{Requested: 10, Available: -1, Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "requested 10 bytes")
}
