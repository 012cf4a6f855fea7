package protocol

import "errors"

var (
	ErrShortFrame  = errors.New("frame length mismatch")
	ErrBadChecksum = errors.New("frame checksum mismatch")
	ErrBadFraming  = errors.New("frame header mismatch")
	ErrOutOfRange  = errors.New("field value out of range")
)
