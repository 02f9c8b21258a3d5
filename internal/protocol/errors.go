package protocol

import "errors"

var (
	ErrMalformedPacket = errors.New("protocol: malformed packet")
	ErrSizeMismatch    = errors.New("protocol: body size mismatch")
	ErrUnknownPacket   = errors.New("protocol: unknown packet name")
	ErrTruncated       = errors.New("protocol: truncated data")
)
