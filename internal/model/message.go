package model

type (
	// Message is the transport envelope of one wrapped frame: the frame
	// bytes together with the address they were published at. The address
	// travels beside the body, never inside it; the frame authenticates
	// it through external absorption.
	Message struct {
		Link string `json:"link" validate:"required"`
		Body []byte `json:"body" validate:"required"`
	}
)
