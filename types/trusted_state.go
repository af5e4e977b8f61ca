package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/creachadair/atomicfile"
)

// TrustedStateSchema tags serialized trusted states.
const TrustedStateSchema = "tonlight/trusted-state/v1"

// TrustedState is the trust anchor of a light client: the network, the
// seqno of the last key block accepted and the validator set it installed.
type TrustedState struct {
	GlobalID   int32
	Seqno      uint32
	Validators *ValidatorSet
}

// ValidateBasic performs basic validation.
func (ts *TrustedState) ValidateBasic() error {
	if ts == nil {
		return errors.New("nil trusted state")
	}
	if ts.Validators == nil {
		return errors.New("trusted state has no validator set")
	}
	if len(ts.Validators.Validators) == 0 {
		return errors.New("trusted state has an empty validator set")
	}
	return nil
}

// Copy returns a deep copy of the state.
func (ts *TrustedState) Copy() *TrustedState {
	return &TrustedState{
		GlobalID:   ts.GlobalID,
		Seqno:      ts.Seqno,
		Validators: ts.Validators.Copy(),
	}
}

func (ts *TrustedState) String() string {
	return fmt.Sprintf("TrustedState{net:%d #%d %d validators}", ts.GlobalID, ts.Seqno, ts.Validators.Size())
}

type trustedStateJSON struct {
	Schema     string        `json:"schema"`
	GlobalID   int32         `json:"global_id"`
	Seqno      uint32        `json:"seqno"`
	Validators *ValidatorSet `json:"validator_set"`
}

func (ts TrustedState) MarshalJSON() ([]byte, error) {
	return json.Marshal(trustedStateJSON{
		Schema:     TrustedStateSchema,
		GlobalID:   ts.GlobalID,
		Seqno:      ts.Seqno,
		Validators: ts.Validators,
	})
}

func (ts *TrustedState) UnmarshalJSON(data []byte) error {
	var val trustedStateJSON
	if err := json.Unmarshal(data, &val); err != nil {
		return err
	}
	if val.Schema != TrustedStateSchema {
		return fmt.Errorf("trusted state schema %q, expected %q", val.Schema, TrustedStateSchema)
	}
	ts.GlobalID = val.GlobalID
	ts.Seqno = val.Seqno
	ts.Validators = val.Validators
	return nil
}

// SaveAs atomically writes the state to filePath as JSON.
func (ts *TrustedState) SaveAs(filePath string) error {
	bz, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteData(filePath, bz, 0600)
}

// LoadTrustedState reads a state written by SaveAs.
func LoadTrustedState(filePath string) (*TrustedState, error) {
	bz, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	ts := new(TrustedState)
	if err := json.Unmarshal(bz, ts); err != nil {
		return nil, fmt.Errorf("error reading trusted state from %v: %w", filePath, err)
	}
	if err := ts.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid trusted state in %v: %w", filePath, err)
	}
	return ts, nil
}
