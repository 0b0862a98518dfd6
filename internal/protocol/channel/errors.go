package channel

import (
	"errors"
	"fmt"

	"github.com/kwek20/streams/internal/protocol/link"
)

var (
	// ErrReplay rejects a frame whose slot was already accepted.
	ErrReplay = errors.New("channel: replayed frame")

	// ErrUnknownParticipant rejects a frame that cannot be attributed to
	// any publisher in the store.
	ErrUnknownParticipant = errors.New("channel: frame from unknown participant")

	// ErrNotAnnounced rejects operations that need a bound channel.
	ErrNotAnnounced = errors.New("channel: no channel announced")

	// ErrAlreadyBound rejects announcing or attaching twice.
	ErrAlreadyBound = errors.New("channel: already bound to a channel")

	// ErrNoMessage reports an empty transport slot.
	ErrNoMessage = errors.New("channel: no message at address")
)

// SequenceSkewError reports a frame whose sequence number is not the
// publisher's next expected one. The publisher's stored state is left
// untouched.
type SequenceSkewError struct {
	Expected uint64
	Found    uint64
}

func (e *SequenceSkewError) Error() string {
	return fmt.Sprintf("channel: sequence skew: expected %d, found %d", e.Expected, e.Found)
}

// LinkMismatchError reports a frame delivered at an address other than
// the one derived for its slot.
type LinkMismatchError struct {
	Expected link.Link
	Found    link.Link
}

func (e *LinkMismatchError) Error() string {
	return fmt.Sprintf("channel: link mismatch: expected %s, found %s", e.Expected, e.Found)
}
