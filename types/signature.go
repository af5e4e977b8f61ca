package types

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tonlight/tonlight/crypto"
	"github.com/tonlight/tonlight/crypto/ed25519"
)

// blockSignMagic is the TL constructor of ton.blockId, the prefix of the
// message validators sign for a block.
var blockSignMagic = []byte{0x70, 0x6e, 0x0b, 0xc5}

// BlockSignBytes returns the message validators sign for the block with the
// given root and file hashes.
func BlockSignBytes(rootHash, fileHash []byte) []byte {
	msg := make([]byte, 0, len(blockSignMagic)+2*crypto.HashSize)
	msg = append(msg, blockSignMagic...)
	msg = append(msg, rootHash...)
	return append(msg, fileHash...)
}

// Signature is one validator's signature of a block.
type Signature struct {
	NodeIDShort []byte `json:"node_id_short"`
	Signature   []byte `json:"signature"`
}

// ValidateBasic checks the sizes of the id and signature.
func (s Signature) ValidateBasic() error {
	if len(s.NodeIDShort) != crypto.NodeIDSize {
		return fmt.Errorf("node id is %d bytes, expected %d", len(s.NodeIDShort), crypto.NodeIDSize)
	}
	if len(s.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("signature is %d bytes, expected %d", len(s.Signature), ed25519.SignatureSize)
	}
	return nil
}

func (s Signature) String() string {
	return fmt.Sprintf("Signature{%X %X}", shortBytes(s.NodeIDShort), shortBytes(s.Signature))
}

func shortBytes(b []byte) []byte {
	if len(b) > 6 {
		return b[:6]
	}
	return b
}

// SignatureMap is the list of signatures accompanying a block. Signatures are
// checked in list order.
type SignatureMap []Signature

// ValidateBasic checks every signature.
func (sm SignatureMap) ValidateBasic() error {
	if len(sm) == 0 {
		return errors.New("no signatures")
	}
	for i, s := range sm {
		if err := s.ValidateBasic(); err != nil {
			return fmt.Errorf("signature #%d: %w", i, err)
		}
	}
	return nil
}

// BlockIDExt identifies a block by shard, seqno and hashes, as reported by
// toncenter. Hashes are base64.
type BlockIDExt struct {
	Type      string `json:"@type,omitempty"`
	Workchain int32  `json:"workchain"`
	Shard     string `json:"shard"`
	Seqno     uint32 `json:"seqno"`
	RootHash  string `json:"root_hash"`
	FileHash  string `json:"file_hash"`
}

// Hashes decodes the root and file hashes.
func (id BlockIDExt) Hashes() (rootHash, fileHash []byte, err error) {
	if rootHash, err = decodeHash(id.RootHash); err != nil {
		return nil, nil, fmt.Errorf("root_hash: %w", err)
	}
	if fileHash, err = decodeHash(id.FileHash); err != nil {
		return nil, nil, fmt.Errorf("file_hash: %w", err)
	}
	return rootHash, fileHash, nil
}

func decodeHash(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != crypto.HashSize {
		return nil, fmt.Errorf("hash is %d bytes, expected %d", len(b), crypto.HashSize)
	}
	return b, nil
}

// BlockSignatures is the signature set of a masterchain block as returned by
// toncenter's getMasterchainBlockSignatures.
type BlockSignatures struct {
	Type       string           `json:"@type,omitempty"`
	ID         BlockIDExt       `json:"id"`
	Signatures []BlockSignature `json:"signatures"`
	Extra      string           `json:"@extra,omitempty"`
}

// BlockSignature is one entry of BlockSignatures, base64 encoded.
type BlockSignature struct {
	Type        string `json:"@type,omitempty"`
	NodeIDShort string `json:"node_id_short"`
	Signature   string `json:"signature"`
}

// SignatureMap decodes the signatures, keeping their order.
func (bs *BlockSignatures) SignatureMap() (SignatureMap, error) {
	sm := make(SignatureMap, len(bs.Signatures))
	for i, s := range bs.Signatures {
		id, err := base64.StdEncoding.DecodeString(s.NodeIDShort)
		if err != nil {
			return nil, fmt.Errorf("signature #%d node_id_short: %w", i, err)
		}
		sig, err := base64.StdEncoding.DecodeString(s.Signature)
		if err != nil {
			return nil, fmt.Errorf("signature #%d: %w", i, err)
		}
		sm[i] = Signature{NodeIDShort: id, Signature: sig}
	}
	return sm, nil
}

// NewBlockSignatures encodes sm for the block id.
func NewBlockSignatures(id BlockIDExt, sm SignatureMap) *BlockSignatures {
	bs := &BlockSignatures{
		Type:       "blocks.blockSignatures",
		ID:         id,
		Signatures: make([]BlockSignature, len(sm)),
	}
	for i, s := range sm {
		bs.Signatures[i] = BlockSignature{
			Type:        "blocks.signature",
			NodeIDShort: base64.StdEncoding.EncodeToString(s.NodeIDShort),
			Signature:   base64.StdEncoding.EncodeToString(s.Signature),
		}
	}
	return bs
}

// UnmarshalBlockSignatures decodes a BlockSignatures JSON document.
func UnmarshalBlockSignatures(data []byte) (*BlockSignatures, error) {
	var bs BlockSignatures
	if err := json.Unmarshal(data, &bs); err != nil {
		return nil, err
	}
	return &bs, nil
}
