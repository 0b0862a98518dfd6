package channel

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/ddml"
	"github.com/kwek20/streams/internal/protocol/keystore"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
)

// Receive fetches the frame at l and runs it through the state machine.
func (b *base) Receive(ctx context.Context, l link.Link) (*Received, error) {
	msg, err := b.fetch(ctx, l)
	if err != nil {
		return nil, err
	}
	return b.Process(ctx, msg)
}

// Process validates one delivered frame and applies its effect. Any
// failure leaves all channel state untouched.
func (b *base) Process(ctx context.Context, msg *model.Message) (*Received, error) {
	if !b.announced {
		return nil, ErrNotAnnounced
	}
	l, err := link.Parse(msg.Link)
	if err != nil {
		return nil, err
	}
	if l.Base != b.announce.Base {
		return nil, &LinkMismatchError{Expected: link.Link{Base: b.announce.Base, Rel: l.Rel}, Found: l}
	}

	hdf, c, err := message.UnwrapHDF(msg.Body, l)
	if err != nil {
		return nil, err
	}

	switch hdf.ContentType() {
	case message.ContentAnnounce:
		return nil, ErrReplay
	case message.ContentSubscribe:
		return b.handleSubscribe(l, hdf, c)
	case message.ContentUnsubscribe:
		return b.handleUnsubscribe(l, hdf, c)
	case message.ContentKeyload:
		return b.handleKeyload(l, hdf, c)
	case message.ContentSequence:
		return b.handleSequence(ctx, l, hdf, c)
	case message.ContentSignedPacket:
		return b.handleSignedPacket(l, hdf, c)
	case message.ContentTaggedPacket:
		return b.handleTaggedPacket(l, hdf, c)
	}
	return nil, fmt.Errorf("channel: unknown content type %d", hdf.ContentType())
}

// validateChain checks that a frame from ik sits in the publisher's
// next slot: the next sequence number, at the address derived from the
// last accepted frame. The returned pointer is written only after the
// frame's content is fully validated.
func (b *base) validateChain(ik ed25519.PublicKey, l link.Link, seq uint64) (*keystore.SequencingState, uint64, error) {
	st, ok := b.pks.GetMut(ik)
	if !ok {
		return nil, 0, ErrUnknownParticipant
	}
	expected := st.Seq + 1
	if seq != expected {
		if st.Seq != seqUnstarted && seq <= st.Seq {
			return nil, 0, ErrReplay
		}
		return nil, 0, &SequenceSkewError{Expected: expected, Found: seq}
	}
	want := b.gen.MsgID(st.Link.Rel, ik, expected)
	if l != want {
		return nil, 0, &LinkMismatchError{Expected: want, Found: l}
	}
	return st, expected, nil
}

// slotOwner finds the publisher whose next expected address is l. Only
// frames that carry no identity in their content need this.
func (b *base) slotOwner(l link.Link) (ed25519.PublicKey, bool) {
	var owner ed25519.PublicKey
	b.pks.Each(func(ik ed25519.PublicKey, _ [dh.KeySize]byte, info *keystore.SequencingState) {
		if owner != nil {
			return
		}
		if b.gen.MsgID(info.Link.Rel, ik, info.Seq+1) == l {
			owner = ik
		}
	})
	return owner, owner != nil
}

// wasAccepted reports whether l is the address of some publisher's last
// accepted frame.
func (b *base) wasAccepted(l link.Link) bool {
	taken := false
	b.pks.Each(func(_ ed25519.PublicKey, _ [dh.KeySize]byte, info *keystore.SequencingState) {
		if info.Seq != seqUnstarted && info.Link == l {
			taken = true
		}
	})
	return taken
}

// handleSubscribe admits a new publisher. Subscription frames are not
// chain frames: they are validated by the announcement-derived address
// for the subscriber's key and by the subscriber's signature.
func (b *base) handleSubscribe(l link.Link, hdf *message.HDF, c *ddml.UnwrapContext) (*Received, error) {
	sub := &message.Subscribe{AuthorKASecret: b.kaSecret}
	if _, err := message.UnwrapPCF(c, sub, nil); err != nil {
		return nil, err
	}
	want := b.gen.MsgID(b.announce.Rel, sub.SubscriberPk, 0)
	if l != want {
		return nil, &LinkMismatchError{Expected: want, Found: l}
	}
	if hdf.SeqNum() != 0 {
		return nil, &SequenceSkewError{Expected: 0, Found: hdf.SeqNum()}
	}
	if b.pks.Contains(sub.SubscriberPk) {
		return nil, ErrReplay
	}
	if err := b.pks.Insert(sub.SubscriberPk, keystore.SequencingState{Link: l, Seq: seqUnstarted}); err != nil {
		return nil, err
	}
	return &Received{Link: l, Type: message.ContentSubscribe, Sender: sub.SubscriberPk}, nil
}

// handleUnsubscribe retires a publisher. The frame consumes its slot on
// the publisher's chain before the identity is dropped.
func (b *base) handleUnsubscribe(l link.Link, hdf *message.HDF, c *ddml.UnwrapContext) (*Received, error) {
	uns := &message.Unsubscribe{}
	if _, err := message.UnwrapPCF(c, uns, nil); err != nil {
		return nil, err
	}
	if _, _, err := b.validateChain(uns.SubscriberPk, l, hdf.SeqNum()); err != nil {
		return nil, err
	}
	b.pks.Remove(uns.SubscriberPk)
	return &Received{Link: l, Type: message.ContentUnsubscribe, Sender: uns.SubscriberPk}, nil
}

// handleKeyload installs a new session key. Keyloads come only from the
// author, so the frame is validated against the author's chain. A
// keyload that carries no entry for this participant still consumes
// the author's slot: the chain advances and the participant is marked
// denied until a later keyload readmits it.
func (b *base) handleKeyload(l link.Link, hdf *message.HDF, c *ddml.UnwrapContext) (*Received, error) {
	st, expected, err := b.validateChain(b.authorPk, l, hdf.SeqNum())
	if err != nil {
		return nil, err
	}
	kl := &message.Keyload{Psks: b.psks, OwnKA: b.ka, KASecret: b.kaSecret}
	if _, err := message.UnwrapPCF(c, kl, nil); err != nil {
		if errors.Is(err, message.ErrNoKeyloadAccess) {
			st.Link = l
			st.Seq = expected
			b.denied = true
			return nil, err
		}
		return nil, err
	}
	st.Link = l
	st.Seq = expected
	b.session = kl.SessionKey
	b.hasSession = true
	b.denied = false
	return &Received{Link: l, Type: message.ContentKeyload, Sender: b.authorPk}, nil
}

func (b *base) handleSignedPacket(l link.Link, hdf *message.HDF, c *ddml.UnwrapContext) (*Received, error) {
	if b.denied {
		return nil, b.skipDenied(l, hdf.SeqNum())
	}
	sp := &message.SignedPacket{}
	if _, err := message.UnwrapPCF(c, sp, b.sessionKey()); err != nil {
		return nil, err
	}
	st, expected, err := b.validateChain(sp.PublisherPk, l, hdf.SeqNum())
	if err != nil {
		return nil, err
	}
	st.Link = l
	st.Seq = expected
	return &Received{Link: l, Type: message.ContentSignedPacket, Sender: sp.PublisherPk, Public: sp.Public, Masked: sp.Masked}, nil
}

func (b *base) handleTaggedPacket(l link.Link, hdf *message.HDF, c *ddml.UnwrapContext) (*Received, error) {
	if b.denied {
		return nil, b.skipDenied(l, hdf.SeqNum())
	}
	ik, ok := b.slotOwner(l)
	if !ok {
		if b.wasAccepted(l) {
			return nil, ErrReplay
		}
		return nil, ErrUnknownParticipant
	}
	st, expected, err := b.validateChain(ik, l, hdf.SeqNum())
	if err != nil {
		return nil, err
	}
	tp := &message.TaggedPacket{}
	if _, err := message.UnwrapPCF(c, tp, b.sessionKey()); err != nil {
		return nil, err
	}
	st.Link = l
	st.Seq = expected
	return &Received{Link: l, Type: message.ContentTaggedPacket, Sender: ik, Public: tp.Public, Masked: tp.Masked}, nil
}

// skipDenied consumes the chain slot of a packet published while this
// participant is excluded from the session. The packet cannot be
// authenticated without the session key, so the slot advance trusts the
// address derivation alone; publishers are attributed by slot.
func (b *base) skipDenied(l link.Link, seq uint64) error {
	ik, ok := b.slotOwner(l)
	if !ok {
		if b.wasAccepted(l) {
			return ErrReplay
		}
		return ErrUnknownParticipant
	}
	st, expected, err := b.validateChain(ik, l, seq)
	if err != nil {
		return err
	}
	st.Link = l
	st.Seq = expected
	return message.ErrNoKeyloadAccess
}

// handleSequence validates a chain slot held by a sequence frame, then
// resolves and decodes the packet it references. The chain advances
// only once both frames check out.
func (b *base) handleSequence(ctx context.Context, l link.Link, hdf *message.HDF, c *ddml.UnwrapContext) (*Received, error) {
	sq := &message.Sequence{}
	if _, err := message.UnwrapPCF(c, sq, nil); err != nil {
		return nil, err
	}
	st, expected, err := b.validateChain(sq.PublisherPk, l, hdf.SeqNum())
	if err != nil {
		return nil, err
	}
	if sq.SeqNum != expected {
		return nil, &SequenceSkewError{Expected: expected, Found: sq.SeqNum}
	}
	if b.denied {
		st.Link = l
		st.Seq = expected
		return nil, message.ErrNoKeyloadAccess
	}

	ref := link.Link{Base: b.announce.Base, Rel: sq.RefRel}
	msg, err := b.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	rhdf, rc, err := message.UnwrapHDF(msg.Body, ref)
	if err != nil {
		return nil, err
	}

	var out *Received
	switch rhdf.ContentType() {
	case message.ContentSignedPacket:
		sp := &message.SignedPacket{}
		if _, err := message.UnwrapPCF(rc, sp, b.sessionKey()); err != nil {
			return nil, err
		}
		if !sp.PublisherPk.Equal(sq.PublisherPk) {
			return nil, ErrUnknownParticipant
		}
		out = &Received{Link: ref, Type: message.ContentSignedPacket, Sender: sp.PublisherPk, Public: sp.Public, Masked: sp.Masked}
	case message.ContentTaggedPacket:
		tp := &message.TaggedPacket{}
		if _, err := message.UnwrapPCF(rc, tp, b.sessionKey()); err != nil {
			return nil, err
		}
		out = &Received{Link: ref, Type: message.ContentTaggedPacket, Sender: sq.PublisherPk, Public: tp.Public, Masked: tp.Masked}
	default:
		return nil, fmt.Errorf("channel: sequence frame references content type %d", rhdf.ContentType())
	}

	st.Link = l
	st.Seq = expected
	return out, nil
}

// Sync drains every known publisher's chain: each publisher's next
// expected address is polled and accepted frames advance the chain,
// until a full round makes no progress. Frames this participant has no
// session access to are skipped over; if any were, Sync reports
// ErrNoKeyloadAccess after the drain so callers know the history has
// gaps.
func (b *base) Sync(ctx context.Context) ([]*Received, error) {
	if !b.announced {
		return nil, ErrNotAnnounced
	}
	var out []*Received
	var denied error
	for progress := true; progress; {
		progress = false
		for _, ik := range b.pks.Keys() {
			if ik.Equal(b.pk) {
				continue
			}
			st, ok := b.pks.Get(ik)
			if !ok {
				continue
			}
			next := b.gen.MsgID(st.Link.Rel, ik, st.Seq+1)
			msgs, err := b.tr.Recv(ctx, next)
			if err != nil {
				return out, fmt.Errorf("channel: fetch frame: %w", err)
			}
			if len(msgs) == 0 {
				continue
			}
			r, err := b.Process(ctx, msgs[0])
			if err != nil {
				if errors.Is(err, message.ErrNoKeyloadAccess) {
					denied = err
					progress = true
					continue
				}
				return out, err
			}
			out = append(out, r)
			progress = true
		}
	}
	return out, denied
}
