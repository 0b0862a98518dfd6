package ddml

import "errors"

var (
	// ErrMacInvalid reports a squeezed tag that does not match the wire.
	ErrMacInvalid = errors.New("ddml: mac verification failed")

	// ErrInputExhausted reports an unwrap read past the end of the stream.
	ErrInputExhausted = errors.New("ddml: input stream exhausted")

	// ErrOutputExhausted reports a wrap write past the end of the buffer.
	ErrOutputExhausted = errors.New("ddml: output buffer exhausted")

	// ErrSizeMalformed reports a size field wider than the host integer.
	ErrSizeMalformed = errors.New("ddml: malformed size field")

	// ErrUnsupportedType reports a value kind a command cannot encode.
	ErrUnsupportedType = errors.New("ddml: unsupported value type")
)
