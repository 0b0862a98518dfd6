package ddml

import "fmt"

// SizeofContext accumulates the wire width of a frame without touching a
// stream or an authenticator. The count sizes the wrap buffer exactly.
type SizeofContext struct {
	size int
	err  error
}

// Sizeof returns a fresh sizing context.
func Sizeof() *SizeofContext {
	return &SizeofContext{}
}

// Size returns the accumulated byte count.
func (c *SizeofContext) Size() int {
	return c.size
}

// Err returns the first failure of the chain, if any.
func (c *SizeofContext) Err() error {
	return c.err
}

func (c *SizeofContext) count(v any) *SizeofContext {
	switch x := v.(type) {
	case Uint8:
		c.size++
	case Uint64:
		c.size += 8
	case Size:
		c.size += x.Sizeof()
	case Bytes:
		c.size += Size(len(x)).Sizeof() + len(x)
	case NBytes:
		c.size += len(x)
	default:
		if c.err == nil {
			c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
		}
	}
	return c
}

// Absorb counts v as wire bytes.
func (c *SizeofContext) Absorb(v any) *SizeofContext {
	if c.err != nil {
		return c
	}
	return c.count(v)
}

// Skip counts v as wire bytes.
func (c *SizeofContext) Skip(v any) *SizeofContext {
	if c.err != nil {
		return c
	}
	return c.count(v)
}

// Mask counts v as wire bytes. Ciphertext is as wide as plaintext.
func (c *SizeofContext) Mask(v any) *SizeofContext {
	if c.err != nil {
		return c
	}
	return c.count(v)
}

// AbsorbExternal costs no wire bytes.
func (c *SizeofContext) AbsorbExternal(v any) *SizeofContext {
	if c.err != nil {
		return c
	}
	switch v.(type) {
	case Uint8, NBytes, ExternalAbsorber:
	default:
		c.err = fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return c
}

// AbsorbKey costs no wire bytes.
func (c *SizeofContext) AbsorbKey(key []byte) *SizeofContext {
	return c
}

// Commit costs no wire bytes.
func (c *SizeofContext) Commit() *SizeofContext {
	return c
}

// Squeeze counts the tag width.
func (c *SizeofContext) Squeeze(m Mac) *SizeofContext {
	if c.err != nil {
		return c
	}
	c.size += int(m)
	return c
}

// SqueezeExternal costs no wire bytes.
func (c *SizeofContext) SqueezeExternal(x NBytes) *SizeofContext {
	return c
}

// Fork runs fn on the same count. Forked output lands in the same stream.
func (c *SizeofContext) Fork(fn func(*SizeofContext)) *SizeofContext {
	if c.err != nil {
		return c
	}
	fn(c)
	return c
}
