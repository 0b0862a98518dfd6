package channel

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/protocol/keystore"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
)

type (
	// Subscriber joins an announced channel. After attaching to the
	// announcement it may subscribe to publish, or read along with a
	// pre-shared key only.
	Subscriber struct {
		base
		authorKA [dh.KeySize]byte
		unsubKey [dh.KeySize]byte
	}
)

// NewSubscriber creates a subscriber role with a seed-derived identity.
func NewSubscriber(seed []byte, tr Transport) (*Subscriber, error) {
	b, err := newBase(seed, tr)
	if err != nil {
		return nil, err
	}
	return &Subscriber{base: b}, nil
}

// Attach binds the subscriber to the channel announced at l. The
// address must be the one derived from the announcement's own base, and
// the announcement must carry a valid author signature.
func (s *Subscriber) Attach(ctx context.Context, l link.Link) error {
	if s.announced {
		return ErrAlreadyBound
	}
	msg, err := s.fetch(ctx, l)
	if err != nil {
		return err
	}
	s.gen.Reset(l.Base)
	if want := s.gen.Announce(); l != want {
		return &LinkMismatchError{Expected: want, Found: l}
	}
	hdf, c, err := message.UnwrapHDF(msg.Body, l)
	if err != nil {
		return err
	}
	if ct := hdf.ContentType(); ct != message.ContentAnnounce {
		return fmt.Errorf("channel: frame at %s is not an announcement", l)
	}
	if hdf.SeqNum() != 0 {
		return &SequenceSkewError{Expected: 0, Found: hdf.SeqNum()}
	}
	ann := &message.Announce{}
	if _, err := message.UnwrapPCF(c, ann, nil); err != nil {
		return err
	}
	ka, err := dh.PublicFromEd25519(ann.AuthorPk)
	if err != nil {
		return fmt.Errorf("channel: author key agreement: %w", err)
	}
	if err := s.pks.Insert(ann.AuthorPk, keystore.SequencingState{Link: l, Seq: 0}); err != nil {
		return err
	}
	s.announced = true
	s.announce = l
	s.flags = ann.Flags
	s.authorPk = ann.AuthorPk
	s.authorKA = ka
	return nil
}

// Subscribe requests membership. The frame carries a fresh unsubscribe
// key to the author and opens the subscriber's own publisher chain.
func (s *Subscriber) Subscribe(ctx context.Context) (link.Link, error) {
	if !s.announced {
		return link.Link{}, ErrNotAnnounced
	}
	if s.pks.Contains(s.pk) {
		return link.Link{}, ErrAlreadyBound
	}
	if _, err := rand.Read(s.unsubKey[:]); err != nil {
		return link.Link{}, fmt.Errorf("channel: unsubscribe key: %w", err)
	}
	content, err := message.NewSubscribe(s.pk, s.sk, s.unsubKey, s.authorKA)
	if err != nil {
		return link.Link{}, err
	}
	l := s.gen.MsgID(s.announce.Rel, s.pk, 0)
	if err := s.send(ctx, l, message.ContentSubscribe, 0, content, nil); err != nil {
		return link.Link{}, err
	}
	if err := s.pks.Insert(s.pk, keystore.SequencingState{Link: l, Seq: seqUnstarted}); err != nil {
		return link.Link{}, err
	}
	return l, nil
}

// Unsubscribe retires the subscriber's publisher chain. The author
// drops the identity on receipt.
func (s *Subscriber) Unsubscribe(ctx context.Context) (link.Link, error) {
	content := &message.Unsubscribe{SubscriberPk: s.pk, SubscriberSk: s.sk}
	l, err := s.publish(ctx, message.ContentUnsubscribe, content, nil)
	if err != nil {
		return link.Link{}, err
	}
	s.pks.Remove(s.pk)
	return l, nil
}
