package ddml

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kwek20/streams/internal/cryptographic/spongos"
)

func newSp() *spongos.Spongos {
	return spongos.New("ddml:test")
}

func TestSizeSchedule(t *testing.T) {
	cases := []struct {
		n    int
		wire []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01, 0x01}},
		{255, []byte{0x01, 0xff}},
		{256, []byte{0x02, 0x01, 0x00}},
		{1013, []byte{0x02, 0x03, 0xf5}},
		{65535, []byte{0x02, 0xff, 0xff}},
		{65536, []byte{0x03, 0x01, 0x00, 0x00}},
		{1 << 24, []byte{0x04, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, tc := range cases {
		if got := Size(tc.n).Sizeof(); got != len(tc.wire) {
			t.Fatalf("sizeof(%d) = %d, want %d", tc.n, got, len(tc.wire))
		}
		buf := make([]byte, len(tc.wire))
		if err := Wrap(newSp(), buf).Skip(Size(tc.n)).Err(); err != nil {
			t.Fatalf("wrap size %d: %v", tc.n, err)
		}
		if !bytes.Equal(buf, tc.wire) {
			t.Fatalf("size %d wire = %x, want %x", tc.n, buf, tc.wire)
		}
		var out Size
		if err := Unwrap(newSp(), buf).Skip(&out).Err(); err != nil {
			t.Fatalf("unwrap size %d: %v", tc.n, err)
		}
		if int(out) != tc.n {
			t.Fatalf("size round trip = %d, want %d", out, tc.n)
		}
	}
}

func TestChainRoundTrip(t *testing.T) {
	var (
		u8      = Uint8(7)
		u64     = Uint64(1<<40 + 3)
		sz      = Size(300)
		payload = Bytes("hello streams")
		fixed   = NBytes{0xaa, 0xbb, 0xcc}
	)

	sc := Sizeof().
		Absorb(u8).
		Absorb(u64).
		Absorb(sz).
		Absorb(payload).
		Skip(fixed).
		Commit().
		Squeeze(Mac(32))
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, sc.Size())
	wc := Wrap(newSp(), buf).
		Absorb(u8).
		Absorb(u64).
		Absorb(sz).
		Absorb(payload).
		Skip(fixed).
		Commit().
		Squeeze(Mac(32))
	if err := wc.Err(); err != nil {
		t.Fatal(err)
	}
	if wc.Pos() != sc.Size() {
		t.Fatalf("wrap wrote %d bytes, sizeof counted %d", wc.Pos(), sc.Size())
	}

	var (
		gotU8    Uint8
		gotU64   Uint64
		gotSz    Size
		gotBytes Bytes
		gotFixed = make(NBytes, 3)
	)
	uc := Unwrap(newSp(), buf).
		Absorb(&gotU8).
		Absorb(&gotU64).
		Absorb(&gotSz).
		Absorb(&gotBytes).
		Skip(gotFixed).
		Commit().
		Squeeze(Mac(32))
	if err := uc.Err(); err != nil {
		t.Fatal(err)
	}
	if uc.Pos() != len(buf) {
		t.Fatalf("unwrap consumed %d of %d bytes", uc.Pos(), len(buf))
	}
	if gotU8 != u8 || gotU64 != u64 || gotSz != sz {
		t.Fatalf("scalar round trip: %v %v %v", gotU8, gotU64, gotSz)
	}
	if !bytes.Equal(gotBytes, payload) || !bytes.Equal(gotFixed, fixed) {
		t.Fatalf("byte round trip: %x %x", gotBytes, gotFixed)
	}
}

func TestSkipNotAuthenticated(t *testing.T) {
	mac := func(v byte) []byte {
		buf := make([]byte, 3+32)
		wc := Wrap(newSp(), buf).
			Skip(NBytes{v, v, v}).
			Commit().
			Squeeze(Mac(32))
		if err := wc.Err(); err != nil {
			t.Fatal(err)
		}
		return buf[3:]
	}
	if !bytes.Equal(mac(0x01), mac(0x02)) {
		t.Fatal("skipped bytes changed the authenticator state")
	}

	absorbMac := func(v byte) []byte {
		buf := make([]byte, 3+32)
		wc := Wrap(newSp(), buf).
			Absorb(NBytes{v, v, v}).
			Commit().
			Squeeze(Mac(32))
		if err := wc.Err(); err != nil {
			t.Fatal(err)
		}
		return buf[3:]
	}
	if bytes.Equal(absorbMac(0x01), absorbMac(0x02)) {
		t.Fatal("absorbed bytes did not reach the authenticator")
	}
}

func TestMaskRoundTrip(t *testing.T) {
	key := make(NBytes, 32)
	for i := range key {
		key[i] = byte(i)
	}
	payload := Bytes("over the wire in ciphertext")

	sc := Sizeof().Mask(key).Mask(payload).Commit().Squeeze(Mac(32))
	buf := make([]byte, sc.Size())
	wc := Wrap(newSp(), buf).Mask(key).Mask(payload).Commit().Squeeze(Mac(32))
	if err := wc.Err(); err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(buf, []byte(payload)) {
		t.Fatal("masked payload appears in clear on the wire")
	}

	gotKey := make(NBytes, 32)
	var gotPayload Bytes
	uc := Unwrap(newSp(), buf).Mask(gotKey).Mask(&gotPayload).Commit().Squeeze(Mac(32))
	if err := uc.Err(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotKey, key) || !bytes.Equal(gotPayload, payload) {
		t.Fatal("mask round trip mismatch")
	}

	t.Run("tampered tag", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[len(bad)-1] ^= 0x01
		gk := make(NBytes, 32)
		var gp Bytes
		err := Unwrap(newSp(), bad).Mask(gk).Mask(&gp).Commit().Squeeze(Mac(32)).Err()
		if !errors.Is(err, ErrMacInvalid) {
			t.Fatalf("err = %v, want ErrMacInvalid", err)
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[0] ^= 0x80
		gk := make(NBytes, 32)
		var gp Bytes
		if err := Unwrap(newSp(), bad).Mask(gk).Mask(&gp).Commit().Squeeze(Mac(32)).Err(); err == nil {
			t.Fatal("tampered ciphertext accepted")
		}
	})
}

func TestExternalAbsorbBindsTag(t *testing.T) {
	link := make(NBytes, 52)
	link[0] = 0x11

	buf := make([]byte, 32)
	wc := Wrap(newSp(), buf).AbsorbExternal(link).Commit().Squeeze(Mac(32))
	if err := wc.Err(); err != nil {
		t.Fatal(err)
	}

	if err := Unwrap(newSp(), buf).AbsorbExternal(link).Commit().Squeeze(Mac(32)).Err(); err != nil {
		t.Fatalf("matching external input: %v", err)
	}

	wrong := make(NBytes, 52)
	copy(wrong, link)
	wrong[13] ^= 0x01
	err := Unwrap(newSp(), buf).AbsorbExternal(wrong).Commit().Squeeze(Mac(32)).Err()
	if !errors.Is(err, ErrMacInvalid) {
		t.Fatalf("err = %v, want ErrMacInvalid", err)
	}
}

func TestForkIsolatesTrunk(t *testing.T) {
	run := func(key byte) []byte {
		buf := make([]byte, 32+32)
		wc := Wrap(newSp(), buf).
			Fork(func(f *WrapContext) {
				f.AbsorbKey([]byte{key}).Mask(make(NBytes, 32))
			}).
			Commit().
			Squeeze(Mac(32))
		if err := wc.Err(); err != nil {
			t.Fatal(err)
		}
		return buf[32:]
	}
	if !bytes.Equal(run(0x01), run(0x02)) {
		t.Fatal("fork state leaked into the trunk")
	}
}

func TestForkKeyedMaskRecovery(t *testing.T) {
	key := []byte("a shared recipient secret")
	secret := make(NBytes, 32)
	for i := range secret {
		secret[i] = byte(0xf0 - i)
	}

	buf := make([]byte, 32)
	wc := Wrap(newSp(), buf).Fork(func(f *WrapContext) {
		f.AbsorbKey(key).Mask(secret)
	})
	if err := wc.Err(); err != nil {
		t.Fatal(err)
	}

	got := make(NBytes, 32)
	uc := Unwrap(newSp(), buf).Fork(func(f *UnwrapContext) {
		f.AbsorbKey(key).Mask(got)
	})
	if err := uc.Err(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatal("forked mask did not recover the secret")
	}

	bad := make(NBytes, 32)
	uc = Unwrap(newSp(), buf).Fork(func(f *UnwrapContext) {
		f.AbsorbKey([]byte("the wrong secret")).Mask(bad)
	})
	if err := uc.Err(); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(bad, secret) {
		t.Fatal("mask recovered under the wrong key")
	}
}

func TestErrorsStick(t *testing.T) {
	other := errors.New("later failure")

	var u8 Uint8
	uc := Unwrap(newSp(), nil).Absorb(&u8).Guard(false, other)
	if err := uc.Err(); !errors.Is(err, ErrInputExhausted) {
		t.Fatalf("err = %v, want ErrInputExhausted", err)
	}

	wc := Wrap(newSp(), nil).Absorb(Uint8(1)).Absorb(Uint8(2))
	if err := wc.Err(); !errors.Is(err, ErrOutputExhausted) {
		t.Fatalf("err = %v, want ErrOutputExhausted", err)
	}
	if wc.Pos() != 0 {
		t.Fatalf("failed wrap advanced the cursor to %d", wc.Pos())
	}
}

func TestGuard(t *testing.T) {
	sentinel := errors.New("guard tripped")
	if err := Unwrap(newSp(), nil).Guard(true, sentinel).Err(); err != nil {
		t.Fatalf("passing guard reported %v", err)
	}
	if err := Unwrap(newSp(), nil).Guard(false, sentinel).Err(); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
}

func TestMalformedSize(t *testing.T) {
	cases := [][]byte{
		{0x09},
		{0x08, 0x80, 0, 0, 0, 0, 0, 0, 0},
		{0x01, 0x00},
		{0x02, 0x00, 0x05},
	}
	for _, wire := range cases {
		var s Size
		err := Unwrap(newSp(), wire).Skip(&s).Err()
		if !errors.Is(err, ErrSizeMalformed) {
			t.Fatalf("wire %x: err = %v, want ErrSizeMalformed", wire, err)
		}
		var b Bytes
		err = Unwrap(newSp(), append(wire, make([]byte, 8)...)).Absorb(&b).Err()
		if !errors.Is(err, ErrSizeMalformed) {
			t.Fatalf("wire %x: absorb err = %v, want ErrSizeMalformed", wire, err)
		}
	}
}

func TestMaskedSizeNonMinimal(t *testing.T) {
	// A padded length a compliant producer never emits, masked with the
	// same call boundaries the codec uses: head, value, payload.
	sp := spongos.New("ddml:test")
	wire := make([]byte, 8)
	sp.Mask(wire[0:1], []byte{0x02})
	sp.Mask(wire[1:3], []byte{0x00, 0x05})
	sp.Mask(wire[3:8], []byte("hello"))

	var got Bytes
	err := Unwrap(newSp(), wire).Mask(&got).Err()
	if !errors.Is(err, ErrSizeMalformed) {
		t.Fatalf("err = %v, want ErrSizeMalformed", err)
	}
}

func TestUnsupportedOperand(t *testing.T) {
	err := Wrap(newSp(), make([]byte, 8)).Absorb(struct{}{}).Err()
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
	var n int
	err = Unwrap(newSp(), make([]byte, 8)).Absorb(&n).Err()
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}
