// Package channel implements the participant roles of an authenticated
// stream. An Author announces a channel, admits subscribers and
// pre-shared keys, and distributes session keys; Subscribers attach to
// the announcement and exchange packets. Both roles track every known
// publisher through the same per-publisher state machine: a publisher
// is unknown until its subscription is accepted, subscribed until its
// first packet, and from then on each accepted frame must carry the
// next sequence number at the address derived for that slot.
package channel

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/cryptographic/psk"
	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/ddml"
	"github.com/kwek20/streams/internal/protocol/keystore"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
)

// Transport moves wrapped frames between participants. Send appends a
// frame at its address; Recv returns every frame published at one.
// Transport failures abort the current frame only, channel state is
// never touched by them.
type Transport interface {
	Send(ctx context.Context, msg *model.Message) error
	Recv(ctx context.Context, l link.Link) ([]*model.Message, error)
}

// seqUnstarted marks a publisher that subscribed but has not published
// yet; the next expected sequence number wraps around to 0.
const seqUnstarted = ^uint64(0)

const identDomain = "streams:ident"

// Received is one accepted frame after validation and decoding.
type Received struct {
	Link   link.Link
	Type   uint8
	Sender ed25519.PublicKey
	Public []byte
	Masked []byte
}

type base struct {
	tr  Transport
	gen *link.Generator

	seed     []byte
	pk       ed25519.PublicKey
	sk       ed25519.PrivateKey
	ka       [dh.KeySize]byte
	kaSecret [dh.KeySize]byte

	announced bool
	announce  link.Link
	flags     uint8
	authorPk  ed25519.PublicKey

	pks  *keystore.PublicKeyMap
	psks *keystore.PresharedKeyMap

	session    [message.SessionKeySize]byte
	hasSession bool

	// denied is set when a keyload excluding this participant was
	// skipped; packets published after it stay unreadable until a later
	// keyload readmits us.
	denied bool
}

func newBase(seed []byte, tr Transport) (base, error) {
	pk, sk := identityFromSeed(seed)
	ka, err := dh.PublicFromEd25519(pk)
	if err != nil {
		return base{}, fmt.Errorf("channel: key agreement from identity: %w", err)
	}
	return base{
		tr:       tr,
		gen:      link.NewGenerator(),
		seed:     append([]byte(nil), seed...),
		pk:       pk,
		sk:       sk,
		ka:       ka,
		kaSecret: dh.SecretFromEd25519(sk),
		pks:      keystore.NewPublicKeyMap(),
		psks:     keystore.NewPresharedKeyMap(),
	}, nil
}

// identityFromSeed stretches an arbitrary seed into the participant's
// identity key pair. The same seed always yields the same identity.
func identityFromSeed(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	sp := spongos.New(identDomain)
	sp.Absorb(seed)
	sp.Commit()
	s := make([]byte, ed25519.SeedSize)
	sp.SqueezeInto(s)
	return signature.KeypairFromSeed(s)
}

// PublicKey returns the participant's identity key.
func (b *base) PublicKey() ed25519.PublicKey {
	return b.pk
}

// Channel returns the announcement address of the bound channel.
func (b *base) Channel() link.Link {
	return b.announce
}

// AuthorKey returns the channel author's identity key.
func (b *base) AuthorKey() ed25519.PublicKey {
	return b.authorPk
}

// MultiBranch reports whether packets are published on per-message
// branches advertised by sequence frames.
func (b *base) MultiBranch() bool {
	return b.flags&message.FlagMultiBranch != 0
}

// State returns the stored sequencing state of a publisher.
func (b *base) State(ik ed25519.PublicKey) (keystore.SequencingState, bool) {
	return b.pks.Get(ik)
}

// StorePsk admits a pre-shared key and returns its identifier.
func (b *base) StorePsk(k psk.Key) psk.ID {
	id := psk.IDOf(k)
	b.psks.Insert(id, k)
	return id
}

// HasAccess reports whether a session key is installed, so masked
// payloads can be written and read.
func (b *base) HasAccess() bool {
	return b.hasSession
}

func (b *base) sessionKey() []byte {
	if !b.hasSession {
		return nil
	}
	return b.session[:]
}

// send wraps one frame and pushes it to the transport.
func (b *base) send(ctx context.Context, l link.Link, ct uint8, seq uint64, content message.Content, key []byte) error {
	hdf := message.NewHDF(l)
	if _, err := hdf.WithContentType(ct); err != nil {
		return err
	}
	pcf := message.DefaultPCF(content)
	sc := ddml.Sizeof()
	pcf.Sizeof(sc)
	if err := sc.Err(); err != nil {
		return err
	}
	if _, err := hdf.WithPayloadLength(sc.Size()); err != nil {
		return err
	}
	if _, err := hdf.WithPayloadFrameCount(1); err != nil {
		return err
	}
	hdf.WithSeqNum(seq)
	frame, err := message.WrapFrame(hdf, pcf, key)
	if err != nil {
		return err
	}
	if err := b.tr.Send(ctx, &model.Message{Link: l.String(), Body: frame}); err != nil {
		return fmt.Errorf("channel: send frame: %w", err)
	}
	return nil
}

func (b *base) fetch(ctx context.Context, l link.Link) (*model.Message, error) {
	msgs, err := b.tr.Recv(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("channel: fetch frame: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessage
	}
	return msgs[0], nil
}

// nextSlot derives the address and sequence number of the caller's own
// next chain frame.
func (b *base) nextSlot() (link.Link, uint64, error) {
	st, ok := b.pks.Get(b.pk)
	if !ok {
		return link.Link{}, 0, ErrUnknownParticipant
	}
	seq := st.Seq + 1
	return b.gen.MsgID(st.Link.Rel, b.pk, seq), seq, nil
}

func (b *base) advanceSelf(l link.Link, seq uint64) {
	if st, ok := b.pks.GetMut(b.pk); ok {
		st.Link = l
		st.Seq = seq
	}
}

// publish sends a frame on the caller's publisher chain. On
// multi-branch channels packets move to a branch address and a sequence
// frame advertising the branch takes the chain slot instead.
func (b *base) publish(ctx context.Context, ct uint8, content message.Content, key []byte) (link.Link, error) {
	if !b.announced {
		return link.Link{}, ErrNotAnnounced
	}
	slot, seq, err := b.nextSlot()
	if err != nil {
		return link.Link{}, err
	}

	isPacket := ct == message.ContentSignedPacket || ct == message.ContentTaggedPacket
	if b.MultiBranch() && isPacket {
		ref := b.gen.MsgID(slot.Rel, b.pk, seq)
		if err := b.send(ctx, ref, ct, seq, content, key); err != nil {
			return link.Link{}, err
		}
		sq := &message.Sequence{PublisherPk: b.pk, RefRel: ref.Rel, SeqNum: seq}
		if err := b.send(ctx, slot, message.ContentSequence, seq, sq, nil); err != nil {
			return link.Link{}, err
		}
		b.advanceSelf(slot, seq)
		return ref, nil
	}

	if err := b.send(ctx, slot, ct, seq, content, key); err != nil {
		return link.Link{}, err
	}
	b.advanceSelf(slot, seq)
	return slot, nil
}

// SignedPacket publishes a packet signed with the caller's identity
// key. The masked payload is recoverable only by session key holders.
func (b *base) SignedPacket(ctx context.Context, public, masked []byte) (link.Link, error) {
	content := &message.SignedPacket{
		PublisherPk: b.pk,
		PublisherSk: b.sk,
		Public:      public,
		Masked:      masked,
	}
	return b.publish(ctx, message.ContentSignedPacket, content, b.sessionKey())
}

// TaggedPacket publishes a packet authenticated by the channel state
// alone, without a signature.
func (b *base) TaggedPacket(ctx context.Context, public, masked []byte) (link.Link, error) {
	content := &message.TaggedPacket{Public: public, Masked: masked}
	return b.publish(ctx, message.ContentTaggedPacket, content, b.sessionKey())
}
