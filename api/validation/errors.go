package validation

import "errors"

var (
	ErrInvalidFileType   = errors.New("unrecognized file type")
	ErrFileTooLarge      = errors.New("file size exceeds limit")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrKindMismatch      = errors.New("file type not accepted for this task kind")
)
