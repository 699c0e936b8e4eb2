package ingestion

import "errors"

var (
	// ErrUnsupportedFormat is returned for file types no adapter reads
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnreadable is returned when a file cannot be decoded at all
	ErrUnreadable = errors.New("unreadable file")
)
