package channel

import (
	"crypto/ed25519"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/cryptographic/psk"
	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/keystore"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
)

// Role names carried in snapshots.
const (
	RoleAuthor     = "author"
	RoleSubscriber = "subscriber"
)

func (b *base) snapshot(role string, channelIdx uint64) *model.Snapshot {
	snap := &model.Snapshot{
		Role:       role,
		Seed:       append([]byte(nil), b.seed...),
		Channel:    b.announce.String(),
		ChannelIdx: channelIdx,
		Flags:      b.flags,
		AuthorIK:   append([]byte(nil), b.authorPk...),
	}
	if b.hasSession {
		snap.SessionKey = append([]byte(nil), b.session[:]...)
	}
	snap.Denied = b.denied
	b.pks.Each(func(ik ed25519.PublicKey, _ [dh.KeySize]byte, info *keystore.SequencingState) {
		snap.Publishers = append(snap.Publishers, model.PublisherState{
			IK:   append([]byte(nil), ik...),
			Link: info.Link.String(),
			Seq:  info.Seq,
		})
	})
	b.psks.Each(func(id psk.ID, key psk.Key) {
		snap.Psks = append(snap.Psks, model.PskState{
			ID:  append([]byte(nil), id[:]...),
			Key: append([]byte(nil), key[:]...),
		})
	})
	return snap
}

func (b *base) restoreState(snap *model.Snapshot) error {
	for _, p := range snap.Publishers {
		if len(p.IK) != ed25519.PublicKeySize {
			return fmt.Errorf("channel: malformed snapshot: publisher key of %d bytes", len(p.IK))
		}
		l, err := link.Parse(p.Link)
		if err != nil {
			return err
		}
		if err := b.pks.Insert(ed25519.PublicKey(p.IK), keystore.SequencingState{Link: l, Seq: p.Seq}); err != nil {
			return err
		}
	}
	for _, e := range snap.Psks {
		if len(e.ID) != psk.IDSize || len(e.Key) != psk.KeySize {
			return fmt.Errorf("channel: malformed snapshot: psk entry %d/%d bytes", len(e.ID), len(e.Key))
		}
		var id psk.ID
		var key psk.Key
		copy(id[:], e.ID)
		copy(key[:], e.Key)
		b.psks.Insert(id, key)
	}
	if len(snap.SessionKey) == message.SessionKeySize {
		copy(b.session[:], snap.SessionKey)
		b.hasSession = true
	}
	b.denied = snap.Denied
	return nil
}

// Export captures the author's resumable channel state.
func (a *Author) Export() *model.Snapshot {
	return a.snapshot(RoleAuthor, a.channelIdx)
}

// Export captures the subscriber's resumable channel state.
func (s *Subscriber) Export() *model.Snapshot {
	return s.snapshot(RoleSubscriber, 0)
}

// ResumeAuthor rebuilds an author from a snapshot. The snapshot must
// describe the channel the seed and index actually derive.
func ResumeAuthor(snap *model.Snapshot, tr Transport) (*Author, error) {
	if snap.Role != RoleAuthor {
		return nil, fmt.Errorf("channel: snapshot role %q is not an author", snap.Role)
	}
	a, err := NewAuthor(snap.Seed, snap.ChannelIdx, snap.Flags&message.FlagMultiBranch != 0, tr)
	if err != nil {
		return nil, err
	}
	ann, err := link.Parse(snap.Channel)
	if err != nil {
		return nil, err
	}
	if want := a.gen.Announce(); ann != want {
		return nil, &LinkMismatchError{Expected: want, Found: ann}
	}
	a.announced = true
	a.announce = ann
	if err := a.restoreState(snap); err != nil {
		return nil, err
	}
	return a, nil
}

// ResumeSubscriber rebuilds a subscriber from a snapshot.
func ResumeSubscriber(snap *model.Snapshot, tr Transport) (*Subscriber, error) {
	if snap.Role != RoleSubscriber {
		return nil, fmt.Errorf("channel: snapshot role %q is not a subscriber", snap.Role)
	}
	s, err := NewSubscriber(snap.Seed, tr)
	if err != nil {
		return nil, err
	}
	ann, err := link.Parse(snap.Channel)
	if err != nil {
		return nil, err
	}
	s.gen.Reset(ann.Base)
	if want := s.gen.Announce(); ann != want {
		return nil, &LinkMismatchError{Expected: want, Found: ann}
	}
	if len(snap.AuthorIK) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("channel: malformed snapshot: author key of %d bytes", len(snap.AuthorIK))
	}
	authorPk := ed25519.PublicKey(snap.AuthorIK)
	ka, err := dh.PublicFromEd25519(authorPk)
	if err != nil {
		return nil, fmt.Errorf("channel: author key agreement: %w", err)
	}
	s.announced = true
	s.announce = ann
	s.flags = snap.Flags
	s.authorPk = authorPk
	s.authorKA = ka
	if err := s.restoreState(snap); err != nil {
		return nil, err
	}
	return s, nil
}
