package message

import (
	"errors"
	"fmt"
)

// OutOfRangeError reports a header or container field set beyond its
// wire range. Raised before any bytes are produced.
type OutOfRangeError struct {
	Field string
	Value uint64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("message: %s out of range: %d", e.Field, e.Value)
}

// VersionError reports a frame written by an incompatible protocol
// version.
type VersionError struct {
	Expected, Found byte
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("message: version not supported: expected %d, found %d", e.Expected, e.Found)
}

// FrameTypeError reports a header whose frame type tag is not HDFID.
type FrameTypeError struct {
	Expected, Found byte
}

func (e *FrameTypeError) Error() string {
	return fmt.Sprintf("message: frame type not supported: expected %d, found %d", e.Expected, e.Found)
}

// MalformedHeaderError reports a structural violation: reserved bits
// set, an unknown tag, or a length that disagrees with the frame.
type MalformedHeaderError struct {
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return "message: malformed header: " + e.Reason
}

var (
	// ErrSignatureInvalid reports a failed Ed25519 check over a frame hash.
	ErrSignatureInvalid = errors.New("message: signature verification failed")

	// ErrNoKeyloadAccess reports a keyload none of whose entries could be
	// opened with the held keys.
	ErrNoKeyloadAccess = errors.New("message: keyload grants no access with held keys")
)
