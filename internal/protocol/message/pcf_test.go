package message

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
)

func wrapContainer(t *testing.T, p *PCF) []byte {
	t.Helper()
	sc := ddml.Sizeof()
	if err := p.Sizeof(sc).Err(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, sc.Size())
	if err := p.Wrap(ddml.Wrap(spongos.New("pcf:test"), buf)).Err(); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestContainerKinds(t *testing.T) {
	cases := []struct {
		name string
		pcf  func() *PCF
		tag  byte
	}{
		{"init", NewInitPCF, byte(InitPCFID)},
		{"inter", NewInterPCF, byte(InterPCFID)},
		{"final", NewFinalPCF, byte(FinalPCFID)},
	}
	var firsts []byte
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.pcf().WithContent(&TaggedPacket{Public: []byte("pay"), Masked: []byte("load")})
			if _, err := p.WithPayloadFrameNum(5); err != nil {
				t.Fatal(err)
			}
			buf := wrapContainer(t, p)
			if buf[0] != tc.tag {
				t.Fatalf("first byte = %02x, want %02x", buf[0], tc.tag)
			}
			firsts = append(firsts, buf[0])

			out := &PCF{content: &TaggedPacket{}}
			if err := out.Unwrap(ddml.Unwrap(spongos.New("pcf:test"), buf)).Err(); err != nil {
				t.Fatal(err)
			}
			if out.FrameType() != tc.tag || out.PayloadFrameNum() != 5 {
				t.Fatalf("round trip = type %02x num %d", out.FrameType(), out.PayloadFrameNum())
			}
			got := out.Content().(*TaggedPacket)
			if !bytes.Equal(got.Public, []byte("pay")) || !bytes.Equal(got.Masked, []byte("load")) {
				t.Fatal("content round trip mismatch")
			}
		})
	}
	for i := 1; i < len(firsts); i++ {
		if firsts[i] == firsts[i-1] {
			t.Fatal("container kinds share a wire tag")
		}
	}
}

func TestContainerUnknownKind(t *testing.T) {
	p := DefaultPCF(&TaggedPacket{Public: []byte("x")})
	buf := wrapContainer(t, p)
	buf[0] = 0x42

	out := &PCF{content: &TaggedPacket{}}
	err := out.Unwrap(ddml.Unwrap(spongos.New("pcf:test"), buf)).Err()
	var me *MalformedHeaderError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MalformedHeaderError", err)
	}
}

func TestContainerFrameNumReservedBits(t *testing.T) {
	p := DefaultPCF(&TaggedPacket{Public: []byte("x")})
	buf := wrapContainer(t, p)
	buf[1] |= 0x40

	out := &PCF{content: &TaggedPacket{}}
	err := out.Unwrap(ddml.Unwrap(spongos.New("pcf:test"), buf)).Err()
	var me *MalformedHeaderError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MalformedHeaderError", err)
	}
}

func TestContainerFrameNumRange(t *testing.T) {
	p := NewFinalPCF()
	if _, err := p.WithPayloadFrameNum(0x3fffff); err != nil {
		t.Fatal(err)
	}
	_, err := p.WithPayloadFrameNum(0x400000)
	var oe *OutOfRangeError
	if !errors.As(err, &oe) {
		t.Fatalf("err = %v, want OutOfRangeError", err)
	}
}

func TestDefaultContainer(t *testing.T) {
	p := DefaultPCF(&TaggedPacket{})
	if p.FrameType() != byte(FinalPCFID) || p.PayloadFrameNum() != 1 {
		t.Fatalf("default container = type %02x num %d", p.FrameType(), p.PayloadFrameNum())
	}
}
