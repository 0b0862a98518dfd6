package spongos

import (
	"bytes"
	"testing"
)

func TestSqueezeDeterministic(t *testing.T) {
	a := New("streams:test")
	b := New("streams:test")

	a.Absorb([]byte("hello"))
	b.Absorb([]byte("hello"))

	if !bytes.Equal(a.Squeeze(32), b.Squeeze(32)) {
		t.Fatal("same transcript should squeeze the same output")
	}
}

func TestDivergenceOnInput(t *testing.T) {
	a := New("streams:test")
	b := New("streams:test")

	a.Absorb([]byte("hello"))
	b.Absorb([]byte("hellp"))

	if bytes.Equal(a.Squeeze(32), b.Squeeze(32)) {
		t.Fatal("different transcripts must diverge")
	}
}

func TestDivergenceOnDomain(t *testing.T) {
	a := New("streams:one")
	b := New("streams:two")

	a.Absorb([]byte("x"))
	b.Absorb([]byte("x"))

	if bytes.Equal(a.Squeeze(16), b.Squeeze(16)) {
		t.Fatal("domains must separate states")
	}
}

func TestMetaSeparatesFromData(t *testing.T) {
	a := New("streams:test")
	b := New("streams:test")

	a.Absorb([]byte("k"))
	b.AbsorbMeta([]byte("k"))

	if bytes.Equal(a.Squeeze(16), b.Squeeze(16)) {
		t.Fatal("meta absorb must not equal data absorb")
	}
}

func TestMaskRoundTrip(t *testing.T) {
	w := New("streams:test")
	r := New("streams:test")

	key := []byte("0123456789abcdef0123456789abcdef")
	w.AbsorbKey(key)
	r.AbsorbKey(key)

	plain := []byte("attack at dawn")
	ct := make([]byte, len(plain))
	w.Mask(ct, plain)

	if bytes.Equal(ct, plain) {
		t.Fatal("mask must change the payload")
	}

	got := make([]byte, len(ct))
	r.Unmask(got, ct)
	if !bytes.Equal(got, plain) {
		t.Fatalf("unmask mismatch: got %q want %q", got, plain)
	}

	// Both sides must agree afterwards.
	if !w.SqueezeEq(r.Squeeze(MacSize)) {
		t.Fatal("states diverged after mask round trip")
	}
}

func TestMaskInPlace(t *testing.T) {
	w := New("streams:test")
	r := New("streams:test")

	buf := []byte("in place payload")
	want := append([]byte(nil), buf...)

	w.Mask(buf, buf)
	r.Unmask(buf, buf)

	if !bytes.Equal(buf, want) {
		t.Fatalf("in-place mask round trip mismatch: got %q", buf)
	}
}

func TestForkIsolatesTrunk(t *testing.T) {
	a := New("streams:test")
	b := New("streams:test")
	a.Absorb([]byte("base"))
	b.Absorb([]byte("base"))

	f := a.Fork()
	f.Absorb([]byte("branch data"))
	f.Squeeze(32)

	// Trunk must be unaffected by branch operations.
	if !bytes.Equal(a.Squeeze(32), b.Squeeze(32)) {
		t.Fatal("fork operations leaked into the trunk")
	}
}

func TestSqueezeAdvancesState(t *testing.T) {
	a := New("streams:test")
	one := a.Squeeze(16)
	two := a.Squeeze(16)
	if bytes.Equal(one, two) {
		t.Fatal("consecutive squeezes should differ")
	}
}

func TestSqueezeEq(t *testing.T) {
	a := New("streams:test")
	b := New("streams:test")
	a.Absorb([]byte("tag me"))
	b.Absorb([]byte("tag me"))

	tag := a.Squeeze(MacSize)
	if !b.SqueezeEq(tag) {
		t.Fatal("matching states must verify")
	}

	c := New("streams:test")
	c.Absorb([]byte("tag you"))
	if c.SqueezeEq(tag) {
		t.Fatal("diverged state must not verify")
	}
}
