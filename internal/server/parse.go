package server

import (
	"errors"
	"github.com/denisschmidt/localstore/internal/types"
	"strings"
	"unicode/utf8"
)

const (
	MultipartMaxMemory = 1048576
	MaxFilenameLen     = 255
)

func validateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("filename must not be empty")
	}
	if name == "." || name == ".." {
		return errors.New("illegal filename")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.New("filename must not contain path separators")
	}
	if utf8.RuneCountInString(name) > MaxFilenameLen {
		return errors.New("filename is too long")
	}
	return nil
}

func parseRecordID(s string) (types.ID, error) {
	if s == "" {
		return types.ID(""), errors.New("record ID must not be empty")
	}
	return types.ID(s), nil
}
