package message

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/kwek20/streams/internal/cryptographic/dh"
	"github.com/kwek20/streams/internal/cryptographic/psk"
	"github.com/kwek20/streams/internal/cryptographic/signature"
	"github.com/kwek20/streams/internal/protocol/ddml"
	"github.com/kwek20/streams/internal/protocol/keystore"
	"github.com/kwek20/streams/internal/protocol/link"
)

func testKeypair(t *testing.T, seed byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return signature.KeypairFromSeed(s)
}

func testLink(seed byte) link.Link {
	var l link.Link
	for i := range l.Base {
		l.Base[i] = seed
	}
	for i := range l.Rel {
		l.Rel[i] = ^seed
	}
	return l
}

func buildFrame(t *testing.T, l link.Link, ct uint8, seq uint64, content Content, key []byte) []byte {
	t.Helper()
	pcf := DefaultPCF(content)
	sc := ddml.Sizeof()
	if err := pcf.Sizeof(sc).Err(); err != nil {
		t.Fatal(err)
	}
	hdf := NewHDF(l)
	if _, err := hdf.WithContentType(ct); err != nil {
		t.Fatal(err)
	}
	if _, err := hdf.WithPayloadLength(sc.Size()); err != nil {
		t.Fatal(err)
	}
	hdf.WithSeqNum(seq)

	buf, err := WrapFrame(hdf, pcf, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != HDFSize+sc.Size() {
		t.Fatalf("frame is %d bytes, want %d", len(buf), HDFSize+sc.Size())
	}
	return buf
}

func parseFrame(l link.Link, buf []byte, content Content, key []byte) (*HDF, error) {
	hdf, c, err := UnwrapHDF(buf, l)
	if err != nil {
		return nil, err
	}
	if _, err := UnwrapPCF(c, content, key); err != nil {
		return hdf, err
	}
	return hdf, nil
}

func TestAnnounceFrame(t *testing.T) {
	pk, sk := testKeypair(t, 1)
	l := testLink(0x10)
	frame := buildFrame(t, l, ContentAnnounce, 0,
		&Announce{AuthorPk: pk, AuthorSk: sk, Flags: FlagMultiBranch}, nil)

	out := &Announce{}
	hdf, err := parseFrame(l, frame, out, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hdf.ContentType() != ContentAnnounce || hdf.SeqNum() != 0 {
		t.Fatalf("header = ct %d seq %d", hdf.ContentType(), hdf.SeqNum())
	}
	if !bytes.Equal(out.AuthorPk, pk) || out.Flags != FlagMultiBranch {
		t.Fatal("announce round trip mismatch")
	}

	t.Run("tampered signature", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[len(bad)-1] ^= 0x01
		if _, err := parseFrame(l, bad, &Announce{}, nil); !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("tampered author key", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[HDFSize+4] ^= 0x01
		if _, err := parseFrame(l, bad, &Announce{}, nil); err == nil {
			t.Fatal("tampered key accepted")
		}
	})

	t.Run("wrong address", func(t *testing.T) {
		if _, err := parseFrame(testLink(0x11), frame, &Announce{}, nil); !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})
}

func TestSubscribeFrame(t *testing.T) {
	authorPk, authorSk := testKeypair(t, 2)
	subPk, subSk := testKeypair(t, 3)
	authorKA, err := dh.PublicFromEd25519(authorPk)
	if err != nil {
		t.Fatal(err)
	}

	var unsubKey [dh.KeySize]byte
	for i := range unsubKey {
		unsubKey[i] = byte(i * 3)
	}

	sub, err := NewSubscribe(subPk, subSk, unsubKey, authorKA)
	if err != nil {
		t.Fatal(err)
	}
	l := testLink(0x20)
	frame := buildFrame(t, l, ContentSubscribe, 0, sub, nil)

	out := &Subscribe{AuthorKASecret: dh.SecretFromEd25519(authorSk)}
	if _, err := parseFrame(l, frame, out, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.SubscriberPk, subPk) {
		t.Fatal("subscriber key mismatch")
	}
	if out.UnsubKey != unsubKey {
		t.Fatal("unsubscribe key not recovered")
	}

	t.Run("wrong author secret", func(t *testing.T) {
		_, otherSk := testKeypair(t, 4)
		bad := &Subscribe{AuthorKASecret: dh.SecretFromEd25519(otherSk)}
		if _, err := parseFrame(l, frame, bad, nil); err == nil && bad.UnsubKey == unsubKey {
			t.Fatal("unsubscribe key recovered under the wrong secret")
		}
	})
}

func TestUnsubscribeFrame(t *testing.T) {
	subPk, subSk := testKeypair(t, 5)
	l := testLink(0x30)
	frame := buildFrame(t, l, ContentUnsubscribe, 4,
		&Unsubscribe{SubscriberPk: subPk, SubscriberSk: subSk}, nil)

	out := &Unsubscribe{}
	hdf, err := parseFrame(l, frame, out, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hdf.SeqNum() != 4 || !bytes.Equal(out.SubscriberPk, subPk) {
		t.Fatal("unsubscribe round trip mismatch")
	}
}

func TestKeyloadFrame(t *testing.T) {
	sharedPsk := psk.FromSeed([]byte("channel psk"))
	recipPk, recipSk := testKeypair(t, 6)
	recipKA, err := dh.PublicFromEd25519(recipPk)
	if err != nil {
		t.Fatal(err)
	}

	kl, err := NewKeyload(
		[]keystore.PskEntry{{ID: psk.IDOf(sharedPsk), Key: sharedPsk}},
		[]keystore.Recipient{{IK: recipPk, KA: recipKA}},
	)
	if err != nil {
		t.Fatal(err)
	}
	l := testLink(0x40)
	frame := buildFrame(t, l, ContentKeyload, 1, kl, nil)

	t.Run("psk holder", func(t *testing.T) {
		psks := keystore.NewPresharedKeyMap()
		psks.Insert(psk.IDOf(sharedPsk), sharedPsk)
		out := &Keyload{Psks: psks}
		if _, err := parseFrame(l, frame, out, nil); err != nil {
			t.Fatal(err)
		}
		if out.SessionKey != kl.SessionKey || out.Nonce != kl.Nonce {
			t.Fatal("session key not recovered through the psk entry")
		}
	})

	t.Run("key agreement holder", func(t *testing.T) {
		out := &Keyload{OwnKA: recipKA, KASecret: dh.SecretFromEd25519(recipSk)}
		if _, err := parseFrame(l, frame, out, nil); err != nil {
			t.Fatal(err)
		}
		if out.SessionKey != kl.SessionKey {
			t.Fatal("session key not recovered through the key agreement entry")
		}
	})

	t.Run("no access", func(t *testing.T) {
		out := &Keyload{}
		if _, err := parseFrame(l, frame, out, nil); !errors.Is(err, ErrNoKeyloadAccess) {
			t.Fatalf("err = %v, want ErrNoKeyloadAccess", err)
		}
	})

	t.Run("wrong psk", func(t *testing.T) {
		other := psk.FromSeed([]byte("another psk"))
		psks := keystore.NewPresharedKeyMap()
		psks.Insert(psk.IDOf(other), other)
		out := &Keyload{Psks: psks}
		if _, err := parseFrame(l, frame, out, nil); !errors.Is(err, ErrNoKeyloadAccess) {
			t.Fatalf("err = %v, want ErrNoKeyloadAccess", err)
		}
	})

	t.Run("tampered recipient entry", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		kaOff := HDFSize + 4 + keyloadNonceSize + 2 + psk.IDSize + SessionKeySize + 2
		bad[kaOff] ^= 0x01
		psks := keystore.NewPresharedKeyMap()
		psks.Insert(psk.IDOf(sharedPsk), sharedPsk)
		out := &Keyload{Psks: psks}
		if _, err := parseFrame(l, bad, out, nil); !errors.Is(err, ddml.ErrMacInvalid) {
			t.Fatalf("err = %v, want ErrMacInvalid", err)
		}
	})
}

func TestTaggedPacketFrame(t *testing.T) {
	key := bytes.Repeat([]byte{0x5a}, SessionKeySize)
	p := &TaggedPacket{Public: []byte("public notice"), Masked: []byte("members only")}
	l := testLink(0x50)
	frame := buildFrame(t, l, ContentTaggedPacket, 2, p, key)

	if !bytes.Contains(frame, p.Public) {
		t.Fatal("public payload not in clear on the wire")
	}
	if bytes.Contains(frame, p.Masked) {
		t.Fatal("masked payload in clear on the wire")
	}

	out := &TaggedPacket{}
	if _, err := parseFrame(l, frame, out, key); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Public, p.Public) || !bytes.Equal(out.Masked, p.Masked) {
		t.Fatal("tagged packet round trip mismatch")
	}

	t.Run("wrong session key", func(t *testing.T) {
		wrong := bytes.Repeat([]byte{0xa5}, SessionKeySize)
		if _, err := parseFrame(l, frame, &TaggedPacket{}, wrong); err == nil {
			t.Fatal("frame accepted under the wrong session key")
		}
	})

	t.Run("tampered tag", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		bad[len(bad)-1] ^= 0x01
		if _, err := parseFrame(l, bad, &TaggedPacket{}, key); !errors.Is(err, ddml.ErrMacInvalid) {
			t.Fatalf("err = %v, want ErrMacInvalid", err)
		}
	})
}

func TestSignedPacketFrame(t *testing.T) {
	pubPk, pubSk := testKeypair(t, 7)
	key := bytes.Repeat([]byte{0x33}, SessionKeySize)
	p := &SignedPacket{
		PublisherPk: pubPk,
		PublisherSk: pubSk,
		Public:      []byte("headline"),
		Masked:      []byte("the story itself"),
	}
	l := testLink(0x60)
	frame := buildFrame(t, l, ContentSignedPacket, 3, p, key)

	out := &SignedPacket{}
	if _, err := parseFrame(l, frame, out, key); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.PublisherPk, pubPk) ||
		!bytes.Equal(out.Public, p.Public) || !bytes.Equal(out.Masked, p.Masked) {
		t.Fatal("signed packet round trip mismatch")
	}

	t.Run("wrong session key", func(t *testing.T) {
		wrong := bytes.Repeat([]byte{0xcc}, SessionKeySize)
		if _, err := parseFrame(l, frame, &SignedPacket{}, wrong); err == nil {
			t.Fatal("frame accepted under the wrong session key")
		}
	})
}

func TestSequenceFrame(t *testing.T) {
	pubPk, _ := testKeypair(t, 8)
	ref := testLink(0x66).Rel
	s := &Sequence{PublisherPk: pubPk, RefRel: ref, SeqNum: 9}
	l := testLink(0x70)
	frame := buildFrame(t, l, ContentSequence, 9, s, nil)

	out := &Sequence{}
	if _, err := parseFrame(l, frame, out, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.PublisherPk, pubPk) || out.RefRel != ref || out.SeqNum != 9 {
		t.Fatal("sequence round trip mismatch")
	}
}

func TestFramePayloadLengthGuard(t *testing.T) {
	pk, sk := testKeypair(t, 9)
	l := testLink(0x80)
	frame := buildFrame(t, l, ContentAnnounce, 0, &Announce{AuthorPk: pk, AuthorSk: sk}, nil)

	var me *MalformedHeaderError
	if _, _, err := UnwrapHDF(append(frame, 0x00), l); !errors.As(err, &me) {
		t.Fatalf("err = %v, want MalformedHeaderError", err)
	}
	if _, _, err := UnwrapHDF(frame[:len(frame)-1], l); !errors.As(err, &me) {
		t.Fatalf("err = %v, want MalformedHeaderError", err)
	}
	if _, _, err := UnwrapHDF(frame[:10], l); !errors.Is(err, ddml.ErrInputExhausted) {
		t.Fatalf("err = %v, want ErrInputExhausted", err)
	}
}
