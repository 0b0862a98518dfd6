// Package message implements the two frame layers every channel message
// is built from: the fixed-shape header (HDF) and the payload container
// (PCF) with its typed content. Frames are encoded through the ddml
// codec; the header binds to the frame's transport address through
// external absorption, so the address never costs wire bytes.
package message

import (
	"github.com/kwek20/streams/internal/cryptographic/spongos"
	"github.com/kwek20/streams/internal/protocol/ddml"
	"github.com/kwek20/streams/internal/protocol/link"
)

// Protocol constants. These round-trip bit-for-bit across
// implementations and must never change.
const (
	UTF8        = ddml.Uint8(0x00)
	Streams1Ver = ddml.Uint8(0x00)
	HDFID       = ddml.Uint8(0x04)
	InitPCFID   = ddml.Uint8(0x05)
	InterPCFID  = ddml.Uint8(0x0a)
	FinalPCFID  = ddml.Uint8(0x0f)
)

// Content type tags carried in the header's 4-bit content_type field.
const (
	ContentAnnounce     uint8 = 0
	ContentKeyload      uint8 = 1
	ContentSequence     uint8 = 2
	ContentSignedPacket uint8 = 3
	ContentTaggedPacket uint8 = 4
	ContentSubscribe    uint8 = 5
	ContentUnsubscribe  uint8 = 6
)

const frameDomain = "streams:frame"

// Content is the typed payload of a PCF. Implementations provide the
// three codec passes; Wrap and Unwrap must feed the authenticator
// identical transcripts.
type Content interface {
	Type() uint8
	Sizeof(c *ddml.SizeofContext) *ddml.SizeofContext
	Wrap(c *ddml.WrapContext) *ddml.WrapContext
	Unwrap(c *ddml.UnwrapContext) *ddml.UnwrapContext
}

// WrapFrame encodes a header and its payload container into one buffer
// sized by the sizeof pass. A non-empty sessionKey is absorbed between
// header and payload so that masked payload fields and payload tags are
// only recoverable by key holders.
func WrapFrame(hdf *HDF, pcf *PCF, sessionKey []byte) ([]byte, error) {
	sc := ddml.Sizeof()
	hdf.Sizeof(sc)
	pcf.Sizeof(sc)
	if err := sc.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, sc.Size())
	wc := ddml.Wrap(spongos.New(frameDomain), buf)
	hdf.Wrap(wc)
	if len(sessionKey) > 0 {
		wc.AbsorbKey(sessionKey)
	}
	pcf.Wrap(wc)
	if err := wc.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnwrapHDF decodes the header of a frame retrieved at address l. The
// returned context carries the authenticator state forward into
// UnwrapPCF. The header's declared payload length must match the bytes
// actually present after it.
func UnwrapHDF(buf []byte, l link.Link) (*HDF, *ddml.UnwrapContext, error) {
	c := ddml.Unwrap(spongos.New(frameDomain), buf)
	hdf := NewHDF(l)
	hdf.Unwrap(c)
	if err := c.Err(); err != nil {
		return nil, nil, err
	}
	if rest := len(buf) - c.Pos(); rest != hdf.PayloadLength() {
		return nil, nil, &MalformedHeaderError{Reason: "declared payload length does not match the frame"}
	}
	return hdf, c, nil
}

// UnwrapPCF finishes a frame started by UnwrapHDF, decoding the payload
// into content. The sessionKey must match the one used on wrap.
func UnwrapPCF(c *ddml.UnwrapContext, content Content, sessionKey []byte) (*PCF, error) {
	if len(sessionKey) > 0 {
		c.AbsorbKey(sessionKey)
	}
	pcf := &PCF{content: content}
	pcf.Unwrap(c)
	if err := c.Err(); err != nil {
		return nil, err
	}
	return pcf, nil
}
