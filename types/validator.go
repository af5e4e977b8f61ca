package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tonlight/tonlight/crypto/ed25519"
	"github.com/tonlight/tonlight/tlb"
)

// Validator is one member of a validator set.
type Validator struct {
	PubKey ed25519.PubKey
	Weight uint64

	nodeID []byte
}

// NewValidator returns a validator with the given key and weight.
func NewValidator(pubKey ed25519.PubKey, weight uint64) *Validator {
	v := &Validator{PubKey: pubKey, Weight: weight}
	if len(pubKey) == ed25519.PubKeySize {
		v.nodeID = pubKey.NodeIDShort()
	}
	return v
}

func validatorFromDescr(d tlb.ValidatorDescr) *Validator {
	pk := make(ed25519.PubKey, ed25519.PubKeySize)
	copy(pk, d.PublicKey[:])
	return NewValidator(pk, d.Weight)
}

// NodeIDShort returns the id signatures address the validator by.
func (v *Validator) NodeIDShort() []byte {
	if v.nodeID != nil {
		return v.nodeID
	}
	return v.PubKey.NodeIDShort()
}

// ValidateBasic performs basic validation.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return fmt.Errorf("nil validator")
	}
	if len(v.PubKey) != ed25519.PubKeySize {
		return fmt.Errorf("validator public key is %d bytes, expected %d", len(v.PubKey), ed25519.PubKeySize)
	}
	return nil
}

// Equals reports whether both validators have the same key and weight.
func (v *Validator) Equals(other *Validator) bool {
	return bytes.Equal(v.PubKey, other.PubKey) && v.Weight == other.Weight
}

// Copy returns a copy of the validator.
func (v *Validator) Copy() *Validator {
	pk := make(ed25519.PubKey, len(v.PubKey))
	copy(pk, v.PubKey)
	return NewValidator(pk, v.Weight)
}

func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{%v W:%d}", v.PubKey, v.Weight)
}

type validatorJSON struct {
	PubKey ed25519.PubKey `json:"pub_key"`
	Weight uint64         `json:"weight,string"`
}

func (v Validator) MarshalJSON() ([]byte, error) {
	return json.Marshal(validatorJSON{PubKey: v.PubKey, Weight: v.Weight})
}

func (v *Validator) UnmarshalJSON(data []byte) error {
	var val validatorJSON
	if err := json.Unmarshal(data, &val); err != nil {
		return err
	}
	*v = *NewValidator(val.PubKey, val.Weight)
	return nil
}
