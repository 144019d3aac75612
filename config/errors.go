package config

import "errors"

// Validation sentinels. Callers match with errors.Is; the wrapped
// message carries the offending value.
var (
	ErrEmptyValue       = errors.New("value must be populated")
	ErrInvalidSpace     = errors.New("value must not contain spaces")
	ErrInvalidSymbols   = errors.New("value has the wrong number of separator symbols")
	ErrInvalidYear      = errors.New("value must contain a valid year or year range")
	ErrInvalidServer    = errors.New("server must be an approved geometry server")
	ErrInvalidValue     = errors.New("value has invalid format or content")
	ErrUnknownMethod    = errors.New("unknown download method")
	ErrFilenameNotFound = errors.New("filename does not exist in the config object")
)
