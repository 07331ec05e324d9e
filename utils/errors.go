package utils

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrSelectionFull       = errors.New("selection cap reached")
	ErrUnknownContact      = errors.New("contact not found in current candidates")
	ErrDiscoveryFailed     = errors.New("discovery failed")
	ErrImportMissingHeader = errors.New("import must start with a header row")
	ErrImportNoRows        = errors.New("import has a header but no data rows")
	ErrImportMalformed     = errors.New("import is not valid delimited text")
)
