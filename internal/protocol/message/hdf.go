package message

import (
	"encoding/binary"

	"github.com/kwek20/streams/internal/protocol/ddml"
	"github.com/kwek20/streams/internal/protocol/link"
)

// HDFSize is the wire width of a header in bytes.
const HDFSize = 16

// HDF is the fixed-shape prologue of every frame. The Link field is the
// frame's own transport address; it is authenticated but never written
// to the wire, since the transport supplies it on retrieval.
type HDF struct {
	encoding          ddml.Uint8
	version           ddml.Uint8
	contentType       uint8
	payloadLength     int
	frameType         ddml.Uint8
	payloadFrameCount uint32
	Link              link.Link
	seqNum            uint64
}

// NewHDF returns a header for a frame at address l, with all variable
// fields zeroed.
func NewHDF(l link.Link) *HDF {
	return &HDF{
		encoding:  UTF8,
		version:   Streams1Ver,
		frameType: HDFID,
		Link:      l,
	}
}

// WithContentType sets the 4-bit content type tag.
func (h *HDF) WithContentType(ct uint8) (*HDF, error) {
	if ct >= 0x10 {
		return nil, &OutOfRangeError{Field: "content type", Value: uint64(ct)}
	}
	h.contentType = ct
	return h, nil
}

func (h *HDF) ContentType() uint8 {
	return h.contentType
}

// WithPayloadLength sets the 10-bit payload byte length.
func (h *HDF) WithPayloadLength(n int) (*HDF, error) {
	if n < 0 || n >= 0x0400 {
		return nil, &OutOfRangeError{Field: "payload length", Value: uint64(uint(n))}
	}
	h.payloadLength = n
	return h, nil
}

func (h *HDF) PayloadLength() int {
	return h.payloadLength
}

// WithPayloadFrameCount sets the 22-bit payload frame count.
func (h *HDF) WithPayloadFrameCount(n uint32) (*HDF, error) {
	if n >= 0x400000 {
		return nil, &OutOfRangeError{Field: "payload frame count", Value: uint64(n)}
	}
	h.payloadFrameCount = n
	return h, nil
}

func (h *HDF) PayloadFrameCount() uint32 {
	return h.payloadFrameCount
}

// WithSeqNum sets the publisher sequence number.
func (h *HDF) WithSeqNum(n uint64) *HDF {
	h.seqNum = n
	return h
}

// WithSeqNum32 sets the sequence number from a 32-bit value,
// zero-extended.
func (h *HDF) WithSeqNum32(n uint32) *HDF {
	return h.WithSeqNum(uint64(n))
}

func (h *HDF) SeqNum() uint64 {
	return h.seqNum
}

// packTypeLength packs content type and payload length into two bytes:
// the type in the high nibble, the length in the low ten bits. The two
// bits in between stay zero.
func (h *HDF) packTypeLength() ddml.NBytes {
	return ddml.NBytes{
		h.contentType<<4 | byte(h.payloadLength>>8)&0x03,
		byte(h.payloadLength),
	}
}

// packFrameCount packs the frame count into three big-endian bytes with
// the top two bits masked to zero.
func (h *HDF) packFrameCount() ddml.NBytes {
	var x [4]byte
	binary.BigEndian.PutUint32(x[:], h.payloadFrameCount)
	return ddml.NBytes{x[1] & 0x3f, x[2], x[3]}
}

// Sizeof counts the header's wire bytes.
func (h *HDF) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	return c.Absorb(h.encoding).
		Absorb(h.version).
		Skip(make(ddml.NBytes, 2)).
		AbsorbExternal(ddml.Uint8(h.contentType << 4)).
		Absorb(h.frameType).
		Skip(make(ddml.NBytes, 3)).
		AbsorbExternal(h.Link).
		Skip(ddml.Uint64(h.seqNum))
}

// Wrap encodes the header. The content type's high nibble and the
// address are absorbed externally: the nibble separates message kinds
// in the authenticator, the address binds the frame to its causal slot.
func (h *HDF) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	return c.Absorb(h.encoding).
		Absorb(h.version).
		Skip(h.packTypeLength()).
		AbsorbExternal(ddml.Uint8(h.contentType << 4)).
		Absorb(h.frameType).
		Skip(h.packFrameCount()).
		AbsorbExternal(h.Link).
		Skip(ddml.Uint64(h.seqNum))
}

// Unwrap decodes a header, mirroring Wrap's transcript and enforcing the
// version, frame type, and reserved-bit guards.
func (h *HDF) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	typeLength := make(ddml.NBytes, 2)
	c.Absorb(&h.encoding).
		Absorb(&h.version)
	if c.Err() != nil {
		return c
	}
	c.Guard(h.version == Streams1Ver, &VersionError{Expected: byte(Streams1Ver), Found: byte(h.version)}).
		Skip(typeLength).
		Guard(typeLength[0]&0x0c == 0, &MalformedHeaderError{Reason: "reserved bits set in the type and length field"})
	if c.Err() != nil {
		return c
	}
	h.contentType = typeLength[0] >> 4
	h.payloadLength = int(typeLength[0]&0x03)<<8 | int(typeLength[1])

	frameCount := make(ddml.NBytes, 3)
	c.AbsorbExternal(ddml.Uint8(h.contentType << 4)).
		Absorb(&h.frameType)
	if c.Err() != nil {
		return c
	}
	c.Guard(h.frameType == HDFID, &FrameTypeError{Expected: byte(HDFID), Found: byte(h.frameType)}).
		Skip(frameCount).
		Guard(frameCount[0]&0xc0 == 0, &MalformedHeaderError{Reason: "reserved bits set in the frame count field"})
	if c.Err() != nil {
		return c
	}
	var x [4]byte
	copy(x[1:], frameCount)
	h.payloadFrameCount = binary.BigEndian.Uint32(x[:])

	var seq ddml.Uint64
	c.AbsorbExternal(h.Link).
		Skip(&seq)
	h.seqNum = uint64(seq)
	return c
}
