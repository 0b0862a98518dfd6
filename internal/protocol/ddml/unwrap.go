package ddml

import (
	"encoding/binary"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/spongos"
)

// UnwrapContext decodes a frame from an input buffer, feeding the
// authenticator with the same transcript the producer fed during wrap.
// The first failure sticks; later commands in the chain are no-ops.
type UnwrapContext struct {
	sp  *spongos.Spongos
	buf []byte
	pos int
	err error
}

// Unwrap returns a decoding context over buf backed by sp.
func Unwrap(sp *spongos.Spongos, buf []byte) *UnwrapContext {
	return &UnwrapContext{sp: sp, buf: buf}
}

// Pos returns the number of bytes consumed so far.
func (c *UnwrapContext) Pos() int {
	return c.pos
}

// Err returns the first failure of the chain, if any.
func (c *UnwrapContext) Err() error {
	return c.err
}

func (c *UnwrapContext) read(n int) []byte {
	if c.pos+n > len(c.buf) {
		c.err = ErrInputExhausted
		return nil
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

// readSize consumes a size field split exactly as wrap emits it: the
// length byte first, then the value bytes. Every value has one encoding;
// padded forms wrap never produces are rejected.
func (c *UnwrapContext) readSize(absorb bool) (int, bool) {
	head := c.read(1)
	if head == nil {
		return 0, false
	}
	if absorb {
		c.sp.Absorb(head)
	}
	d := int(head[0])
	if d > 8 {
		c.err = ErrSizeMalformed
		return 0, false
	}
	val := c.read(d)
	if val == nil {
		return 0, false
	}
	if absorb {
		c.sp.Absorb(val)
	}
	if d > 0 && val[0] == 0 {
		c.err = ErrSizeMalformed
		return 0, false
	}
	if d == 8 && val[0] >= 0x80 {
		c.err = ErrSizeMalformed
		return 0, false
	}
	n := 0
	for _, b := range val {
		n = n<<8 | int(b)
	}
	return n, true
}

// Absorb reads v from the wire and feeds it to the authenticator.
// Scalar operands are pointers; NBytes is filled in place.
func (c *UnwrapContext) Absorb(v any) *UnwrapContext {
	if c.err != nil {
		return c
	}
	switch x := v.(type) {
	case *Uint8:
		b := c.read(1)
		if b == nil {
			return c
		}
		c.sp.Absorb(b)
		*x = Uint8(b[0])
	case *Uint64:
		b := c.read(8)
		if b == nil {
			return c
		}
		c.sp.Absorb(b)
		*x = Uint64(binary.BigEndian.Uint64(b))
	case *Size:
		n, ok := c.readSize(true)
		if !ok {
			return c
		}
		*x = Size(n)
	case *Bytes:
		n, ok := c.readSize(true)
		if !ok {
			return c
		}
		b := c.read(n)
		if b == nil {
			return c
		}
		c.sp.Absorb(b)
		*x = append(Bytes(nil), b...)
	case NBytes:
		b := c.read(len(x))
		if b == nil {
			return c
		}
		c.sp.Absorb(b)
		copy(x, b)
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

// Skip reads v from the wire without feeding the authenticator.
func (c *UnwrapContext) Skip(v any) *UnwrapContext {
	if c.err != nil {
		return c
	}
	switch x := v.(type) {
	case *Uint8:
		b := c.read(1)
		if b == nil {
			return c
		}
		*x = Uint8(b[0])
	case *Uint64:
		b := c.read(8)
		if b == nil {
			return c
		}
		*x = Uint64(binary.BigEndian.Uint64(b))
	case *Size:
		n, ok := c.readSize(false)
		if !ok {
			return c
		}
		*x = Size(n)
	case *Bytes:
		n, ok := c.readSize(false)
		if !ok {
			return c
		}
		b := c.read(n)
		if b == nil {
			return c
		}
		*x = append(Bytes(nil), b...)
	case NBytes:
		b := c.read(len(x))
		if b == nil {
			return c
		}
		copy(x, b)
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

func (c *UnwrapContext) unmaskInto(dst []byte) bool {
	ct := c.read(len(dst))
	if ct == nil {
		return false
	}
	c.sp.Unmask(dst, ct)
	return true
}

// Mask decrypts v from the wire under the current sponge state.
func (c *UnwrapContext) Mask(v any) *UnwrapContext {
	if c.err != nil {
		return c
	}
	switch x := v.(type) {
	case NBytes:
		c.unmaskInto(x)
	case *Bytes:
		var head [1]byte
		if !c.unmaskInto(head[:]) {
			return c
		}
		d := int(head[0])
		if d > 8 {
			c.err = ErrSizeMalformed
			return c
		}
		val := make([]byte, d)
		if !c.unmaskInto(val) {
			return c
		}
		if d > 0 && val[0] == 0 {
			c.err = ErrSizeMalformed
			return c
		}
		if d == 8 && val[0] >= 0x80 {
			c.err = ErrSizeMalformed
			return c
		}
		n := 0
		for _, b := range val {
			n = n<<8 | int(b)
		}
		out := make([]byte, n)
		if !c.unmaskInto(out) {
			return c
		}
		*x = out
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

// AbsorbExternal feeds v to the authenticator; nothing is consumed from
// the wire. Must mirror the wrap side exactly.
func (c *UnwrapContext) AbsorbExternal(v any) *UnwrapContext {
	if c.err != nil {
		return c
	}
	switch x := v.(type) {
	case Uint8:
		c.sp.AbsorbMeta([]byte{byte(x)})
	case NBytes:
		c.sp.AbsorbMeta(x)
	case ExternalAbsorber:
		x.AbsorbInto(c.sp)
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

// AbsorbKey feeds key material to the authenticator.
func (c *UnwrapContext) AbsorbKey(key []byte) *UnwrapContext {
	if c.err != nil {
		return c
	}
	c.sp.AbsorbKey(key)
	return c
}

// Commit closes the current authenticator operation.
func (c *UnwrapContext) Commit() *UnwrapContext {
	if c.err != nil {
		return c
	}
	c.sp.Commit()
	return c
}

// Squeeze reads a tag of the given width and verifies it against the
// authenticator state. A mismatch fails the chain with ErrMacInvalid.
func (c *UnwrapContext) Squeeze(m Mac) *UnwrapContext {
	if c.err != nil {
		return c
	}
	tag := c.read(int(m))
	if tag == nil {
		return c
	}
	if !c.sp.SqueezeEq(tag) {
		c.err = ErrMacInvalid
	}
	return c
}

// SqueezeExternal fills x from the authenticator; nothing is consumed
// from the wire.
func (c *UnwrapContext) SqueezeExternal(x NBytes) *UnwrapContext {
	if c.err != nil {
		return c
	}
	c.sp.SqueezeInto(x)
	return c
}

// Guard fails the chain with err when ok is false.
func (c *UnwrapContext) Guard(ok bool, err error) *UnwrapContext {
	if c.err != nil {
		return c
	}
	if !ok {
		c.err = err
	}
	return c
}

// Fork runs fn over a clone of the sponge state, mirroring the wrap side.
func (c *UnwrapContext) Fork(fn func(*UnwrapContext)) *UnwrapContext {
	if c.err != nil {
		return c
	}
	parent := c.sp
	c.sp = parent.Fork()
	fn(c)
	c.sp = parent
	return c
}
