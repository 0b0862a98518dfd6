package channel

import (
	"context"
	"crypto/ed25519"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/cryptographic/psk"
	"github.com/kwek20/streams/internal/protocol/keystore"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
)

type (
	// Author owns a channel: it announces the channel, admits
	// subscribers and pre-shared keys, and distributes session keys.
	Author struct {
		base
		channelIdx uint64
	}
)

// NewAuthor creates the author role for the channel identified by the
// seed-derived identity and the channel index.
func NewAuthor(seed []byte, channelIdx uint64, multiBranch bool, tr Transport) (*Author, error) {
	b, err := newBase(seed, tr)
	if err != nil {
		return nil, err
	}
	a := &Author{base: b, channelIdx: channelIdx}
	a.authorPk = a.pk
	if multiBranch {
		a.flags = message.FlagMultiBranch
	}
	a.gen.Seed(a.pk, channelIdx)
	return a, nil
}

// Announce publishes the channel announcement and returns its address.
// Every other frame of the channel descends from it.
func (a *Author) Announce(ctx context.Context) (link.Link, error) {
	if a.announced {
		return link.Link{}, ErrAlreadyBound
	}
	l := a.gen.Announce()
	content := &message.Announce{AuthorPk: a.pk, Flags: a.flags, AuthorSk: a.sk}
	if err := a.send(ctx, l, message.ContentAnnounce, 0, content, nil); err != nil {
		return link.Link{}, err
	}
	if err := a.pks.Insert(a.pk, keystore.SequencingState{Link: l, Seq: 0}); err != nil {
		return link.Link{}, err
	}
	a.announced = true
	a.announce = l
	return l, nil
}

// Keyload distributes a fresh session key to every subscriber and every
// admitted pre-shared key. Packets published after it mask their
// payloads under the new key.
func (a *Author) Keyload(ctx context.Context) (link.Link, error) {
	if !a.announced {
		return link.Link{}, ErrNotAnnounced
	}
	var psks []keystore.PskEntry
	a.psks.Each(func(id psk.ID, key psk.Key) {
		psks = append(psks, keystore.PskEntry{ID: id, Key: key})
	})
	var recipients []keystore.Recipient
	a.pks.Each(func(ik ed25519.PublicKey, ka [dh.KeySize]byte, _ *keystore.SequencingState) {
		if ik.Equal(a.pk) {
			return
		}
		recipients = append(recipients, keystore.Recipient{IK: ik, KA: ka})
	})
	kl, err := message.NewKeyload(psks, recipients)
	if err != nil {
		return link.Link{}, err
	}
	l, err := a.publish(ctx, message.ContentKeyload, kl, nil)
	if err != nil {
		return link.Link{}, err
	}
	a.session = kl.SessionKey
	a.hasSession = true
	a.denied = false
	return l, nil
}
