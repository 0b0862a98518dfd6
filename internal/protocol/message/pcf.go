package message

import (
	"encoding/binary"

	"github.com/kwek20/streams/internal/protocol/ddml"
)

// PCF is the payload container of a frame: a kind tag (init, inter,
// final), a 22-bit payload frame number, and the typed content.
type PCF struct {
	frameType       ddml.Uint8
	payloadFrameNum uint32
	content         Content
}

// NewInitPCF returns the container opening a multi-frame payload.
func NewInitPCF() *PCF {
	return &PCF{frameType: InitPCFID}
}

// NewInterPCF returns a container for a middle payload frame.
func NewInterPCF() *PCF {
	return &PCF{frameType: InterPCFID}
}

// NewFinalPCF returns the container closing a payload.
func NewFinalPCF() *PCF {
	return &PCF{frameType: FinalPCFID}
}

// DefaultPCF returns the container of a single-frame payload: final
// kind, frame number one.
func DefaultPCF(content Content) *PCF {
	return &PCF{frameType: FinalPCFID, payloadFrameNum: 1, content: content}
}

// WithContent attaches the typed content.
func (p *PCF) WithContent(content Content) *PCF {
	p.content = content
	return p
}

func (p *PCF) Content() Content {
	return p.content
}

// WithPayloadFrameNum sets the 22-bit payload frame number.
func (p *PCF) WithPayloadFrameNum(n uint32) (*PCF, error) {
	if n >= 0x400000 {
		return nil, &OutOfRangeError{Field: "payload frame number", Value: uint64(n)}
	}
	p.payloadFrameNum = n
	return p, nil
}

func (p *PCF) PayloadFrameNum() uint32 {
	return p.payloadFrameNum
}

func (p *PCF) FrameType() byte {
	return byte(p.frameType)
}

func (p *PCF) packFrameNum() ddml.NBytes {
	var x [4]byte
	binary.BigEndian.PutUint32(x[:], p.payloadFrameNum)
	return ddml.NBytes{x[1] & 0x3f, x[2], x[3]}
}

// Sizeof counts the container and its content.
func (p *PCF) Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext {
	c.Absorb(p.frameType).
		Skip(make(ddml.NBytes, 3))
	if p.content == nil {
		return c
	}
	return p.content.Sizeof(c)
}

// Wrap encodes the container, delegating the tail to the content.
func (p *PCF) Wrap(c *ddml.WrapContext) *ddml.WrapContext {
	c.Absorb(p.frameType).
		Skip(p.packFrameNum()).
		Guard(p.content != nil, &MalformedHeaderError{Reason: "payload container without content"})
	if c.Err() != nil {
		return c
	}
	return p.content.Wrap(c)
}

// Unwrap decodes the container into the attached content, enforcing the
// kind tag and the frame number range.
func (p *PCF) Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext {
	frameNum := make(ddml.NBytes, 3)
	c.Absorb(&p.frameType)
	if c.Err() != nil {
		return c
	}
	known := p.frameType == InitPCFID || p.frameType == InterPCFID || p.frameType == FinalPCFID
	c.Guard(known, &MalformedHeaderError{Reason: "unknown payload frame type"}).
		Skip(frameNum).
		Guard(frameNum[0] < 0x40, &MalformedHeaderError{Reason: "reserved bits set in the frame number field"}).
		Guard(p.content != nil, &MalformedHeaderError{Reason: "payload container without content"})
	if c.Err() != nil {
		return c
	}
	var x [4]byte
	copy(x[1:], frameNum)
	p.payloadFrameNum = binary.BigEndian.Uint32(x[:])
	return p.content.Unwrap(c)
}
