package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type (
	// PublisherState is one row of the per-publisher sequencing table in
	// a snapshot: the publisher's identity key, the address of its last
	// accepted frame, and that frame's sequence number.
	PublisherState struct {
		IK   []byte `json:"ik"`
		Link string `json:"link"`
		Seq  uint64 `json:"seq"`
	}

	// PskState is one admitted pre-shared key in a snapshot.
	PskState struct {
		ID  []byte `json:"id"`
		Key []byte `json:"key"`
	}

	// Snapshot is the exportable state of a channel participant. It is
	// everything needed to resume the role on another machine: identity
	// seed, channel address, flags, the sequencing table, and the keys
	// admitted so far.
	Snapshot struct {
		Role       string           `json:"role"`
		Seed       []byte           `json:"seed"`
		Channel    string           `json:"channel"`
		ChannelIdx uint64           `json:"channel_idx,omitempty"`
		Flags      uint8            `json:"flags"`
		AuthorIK   []byte           `json:"author_ik"`
		SessionKey []byte           `json:"session_key,omitempty"`
		Denied     bool             `json:"denied,omitempty"`
		Publishers []PublisherState `json:"publishers"`
		Psks       []PskState       `json:"psks,omitempty"`
	}

	// SealedSnapshot is the persisted form: the snapshot JSON encrypted
	// under a passphrase-derived key. The salt is stored beside the
	// ciphertext so the key can be re-derived on import; the nonce is
	// prepended to Data.
	SealedSnapshot struct {
		ID   primitive.ObjectID `json:"-" bson:"_id,omitempty"`
		Name string             `json:"name" bson:"name"`
		Salt []byte             `json:"salt" bson:"salt"`
		Data []byte             `json:"data" bson:"data"`
	}
)
