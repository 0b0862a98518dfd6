package ddml

import (
	"encoding/binary"
	"fmt"

	"github.com/kwek20/streams/internal/cryptographic/spongos"
)

// WrapContext encodes a frame into a fixed buffer while feeding the
// authenticator. The buffer is sized by a prior sizeof pass; running out
// of room is a caller bug surfaced as ErrOutputExhausted.
type WrapContext struct {
	sp  *spongos.Spongos
	buf []byte
	pos int
	err error
}

// Wrap returns an encoding context over buf backed by sp.
func Wrap(sp *spongos.Spongos, buf []byte) *WrapContext {
	return &WrapContext{sp: sp, buf: buf}
}

// Pos returns the number of bytes written so far.
func (c *WrapContext) Pos() int {
	return c.pos
}

// Err returns the first failure of the chain, if any.
func (c *WrapContext) Err() error {
	return c.err
}

// claim reserves n output bytes and returns them, or nil on overflow.
func (c *WrapContext) claim(n int) []byte {
	if c.pos+n > len(c.buf) {
		c.err = ErrOutputExhausted
		return nil
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out
}

func (c *WrapContext) write(b []byte) bool {
	out := c.claim(len(b))
	if out == nil {
		return false
	}
	copy(out, b)
	return true
}

// writeSize emits the length byte and the value bytes as two separate
// steps. Unwrap cannot know the value width before reading the length
// byte, so both passes must split the field at the same point.
func (c *WrapContext) writeSize(n int, absorb bool) {
	head := []byte{byte(sizeBytes(n))}
	val := sizeValueBytes(n)
	if !c.write(head) {
		return
	}
	if absorb {
		c.sp.Absorb(head)
	}
	if !c.write(val) {
		return
	}
	if absorb {
		c.sp.Absorb(val)
	}
}

// Absorb emits v on the wire and feeds it to the authenticator.
func (c *WrapContext) Absorb(v any) *WrapContext {
	if c.err != nil {
		return c
	}
	switch x := v.(type) {
	case Uint8:
		b := []byte{byte(x)}
		if c.write(b) {
			c.sp.Absorb(b)
		}
	case Uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(x))
		if c.write(b[:]) {
			c.sp.Absorb(b[:])
		}
	case Size:
		c.writeSize(int(x), true)
	case Bytes:
		c.writeSize(len(x), true)
		if c.err == nil && c.write(x) {
			c.sp.Absorb(x)
		}
	case NBytes:
		if c.write(x) {
			c.sp.Absorb(x)
		}
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

// Skip emits v on the wire without feeding the authenticator.
func (c *WrapContext) Skip(v any) *WrapContext {
	if c.err != nil {
		return c
	}
	switch x := v.(type) {
	case Uint8:
		c.write([]byte{byte(x)})
	case Uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(x))
		c.write(b[:])
	case Size:
		c.writeSize(int(x), false)
	case Bytes:
		c.writeSize(len(x), false)
		if c.err == nil {
			c.write(x)
		}
	case NBytes:
		c.write(x)
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

// maskOut encrypts src directly into the output buffer.
func (c *WrapContext) maskOut(src []byte) {
	out := c.claim(len(src))
	if out == nil {
		return
	}
	c.sp.Mask(out, src)
}

// Mask emits v encrypted under the current sponge state.
func (c *WrapContext) Mask(v any) *WrapContext {
	if c.err != nil {
		return c
	}
	switch x := v.(type) {
	case NBytes:
		c.maskOut(x)
	case Bytes:
		n := len(x)
		c.maskOut([]byte{byte(sizeBytes(n))})
		if c.err == nil {
			c.maskOut(sizeValueBytes(n))
		}
		if c.err == nil {
			c.maskOut(x)
		}
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

// AbsorbExternal feeds v to the authenticator without emitting it.
// External input rides the meta track so it cannot be confused with
// wire bytes.
func (c *WrapContext) AbsorbExternal(v any) *WrapContext {
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
func (c *WrapContext) AbsorbKey(key []byte) *WrapContext {
	if c.err != nil {
		return c
	}
	c.sp.AbsorbKey(key)
	return c
}

// Commit closes the current authenticator operation.
func (c *WrapContext) Commit() *WrapContext {
	if c.err != nil {
		return c
	}
	c.sp.Commit()
	return c
}

// Squeeze emits a tag of the given width.
func (c *WrapContext) Squeeze(m Mac) *WrapContext {
	if c.err != nil {
		return c
	}
	out := c.claim(int(m))
	if out == nil {
		return c
	}
	c.sp.SqueezeInto(out)
	return c
}

// SqueezeExternal fills x from the authenticator without emitting it.
func (c *WrapContext) SqueezeExternal(x NBytes) *WrapContext {
	if c.err != nil {
		return c
	}
	c.sp.SqueezeInto(x)
	return c
}

// Guard fails the chain with err when ok is false.
func (c *WrapContext) Guard(ok bool, err error) *WrapContext {
	if c.err != nil {
		return c
	}
	if !ok {
		c.err = err
	}
	return c
}

// Fork runs fn over a clone of the sponge state. Output produced inside
// fn lands in the same buffer; the state advance does not survive fn.
func (c *WrapContext) Fork(fn func(*WrapContext)) *WrapContext {
	if c.err != nil {
		return c
	}
	parent := c.sp
	c.sp = parent.Fork()
	fn(c)
	c.sp = parent
	return c
}
