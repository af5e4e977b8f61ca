package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/tlb"
)

// ValidatorSet is a weighted roster of validators indexed by short node id.
// Validators keep the order of the configuration dictionary.
//
// The total weight is the one the configuration declares; it is not derived
// from the members. ValidateBasic checks that the members do not weigh more.
type ValidatorSet struct {
	Validators []*Validator
	UtimeSince uint32
	UtimeUntil uint32

	totalWeight uint64
	index       map[string]int
}

// NewValidatorSet extracts the current validator set from the configuration
// carried by a key block (or by a config proof of one). The node id of every
// member must be unique.
func NewValidatorSet(block *tlb.Block) (*ValidatorSet, error) {
	if block.Extra == nil || block.Extra.Custom == nil || block.Extra.Custom.Config == nil {
		return nil, ErrConfigMissing{}
	}
	param, err := block.Extra.Custom.Config.Param(tlb.ConfigValidatorSet)
	if err != nil {
		return nil, err
	}
	if param == nil {
		return nil, ErrConfigMissing{Index: tlb.ConfigValidatorSet}
	}

	s, err := param.BeginParse()
	if err != nil {
		return nil, fmt.Errorf("config parameter %d: %w", tlb.ConfigValidatorSet, err)
	}
	tag, err := s.PreloadUint(8)
	if err != nil {
		return nil, fmt.Errorf("config parameter %d: %w", tlb.ConfigValidatorSet, err)
	}
	if tag != tlb.ValidatorsExtTag {
		return nil, ErrUnsupportedValidatorSet{Tag: tag}
	}
	set, err := tlb.LoadValidatorSet(s)
	if err != nil {
		return nil, err
	}
	return ValidatorSetFromTLB(set)
}

// ValidatorSetFromTLB converts a decoded validator set.
func ValidatorSetFromTLB(set *tlb.ValidatorSet) (*ValidatorSet, error) {
	vals := make([]*Validator, len(set.List))
	for i, d := range set.List {
		vals[i] = validatorFromDescr(d)
	}
	vs, err := NewValidatorSetWithTotal(vals, set.TotalWeight)
	if err != nil {
		return nil, err
	}
	vs.UtimeSince, vs.UtimeUntil = set.UtimeSince, set.UtimeUntil
	return vs, nil
}

// NewValidatorSetWithTotal returns a set of the given members whose total
// weight is totalWeight. It fails when two members share a node id.
func NewValidatorSetWithTotal(vals []*Validator, totalWeight uint64) (*ValidatorSet, error) {
	vs := &ValidatorSet{
		Validators:  vals,
		totalWeight: totalWeight,
	}
	if err := vs.buildIndex(); err != nil {
		return nil, err
	}
	return vs, nil
}

func (vs *ValidatorSet) buildIndex() error {
	vs.index = make(map[string]int, len(vs.Validators))
	for i, v := range vs.Validators {
		if err := v.ValidateBasic(); err != nil {
			return fmt.Errorf("validator #%d: %w", i, err)
		}
		id := string(v.NodeIDShort())
		if _, ok := vs.index[id]; ok {
			return ErrDuplicateValidator{NodeID: v.NodeIDShort()}
		}
		vs.index[id] = i
	}
	return nil
}

// ValidateBasic checks the set is not empty and that the members' weights
// do not add up to more than the total weight.
func (vs *ValidatorSet) ValidateBasic() error {
	if vs == nil || len(vs.Validators) == 0 {
		return errors.New("validator set is nil or empty")
	}
	if vs.totalWeight == 0 {
		return errors.New("validator set has zero total weight")
	}
	var sum uint64
	for _, v := range vs.Validators {
		if sum > math.MaxUint64-v.Weight {
			return ErrInvalidTotalWeight{Sum: math.MaxUint64, Total: vs.totalWeight}
		}
		sum += v.Weight
	}
	if sum > vs.totalWeight {
		return ErrInvalidTotalWeight{Sum: sum, Total: vs.totalWeight}
	}
	return nil
}

// Size returns the number of validators.
func (vs *ValidatorSet) Size() int {
	if vs == nil {
		return 0
	}
	return len(vs.Validators)
}

// TotalWeight returns the declared total weight of the set.
func (vs *ValidatorSet) TotalWeight() uint64 {
	return vs.totalWeight
}

// GetByNodeID returns the index and the validator with the given short node
// id, or -1 and nil when there is none.
func (vs *ValidatorSet) GetByNodeID(nodeID []byte) (int, *Validator) {
	i, ok := vs.index[string(nodeID)]
	if !ok {
		return -1, nil
	}
	return i, vs.Validators[i]
}

// HasNodeID reports whether a validator with the given short node id is in
// the set.
func (vs *ValidatorSet) HasNodeID(nodeID []byte) bool {
	_, ok := vs.index[string(nodeID)]
	return ok
}

// Copy returns a deep copy of the set.
func (vs *ValidatorSet) Copy() *ValidatorSet {
	vals := make([]*Validator, len(vs.Validators))
	for i, v := range vs.Validators {
		vals[i] = v.Copy()
	}
	index := make(map[string]int, len(vs.index))
	for k, v := range vs.index {
		index[k] = v
	}
	return &ValidatorSet{
		Validators:  vals,
		UtimeSince:  vs.UtimeSince,
		UtimeUntil:  vs.UtimeUntil,
		totalWeight: vs.totalWeight,
		index:       index,
	}
}

// Equals reports whether both sets have the same members in the same order
// and the same total weight.
func (vs *ValidatorSet) Equals(other *ValidatorSet) bool {
	if vs.totalWeight != other.totalWeight || len(vs.Validators) != len(other.Validators) {
		return false
	}
	for i, v := range vs.Validators {
		if !v.Equals(other.Validators[i]) {
			return false
		}
	}
	return true
}

// ToTLB converts the set to its configuration form, with every member in
// the main list.
func (vs *ValidatorSet) ToTLB() *tlb.ValidatorSet {
	set := &tlb.ValidatorSet{
		UtimeSince:  vs.UtimeSince,
		UtimeUntil:  vs.UtimeUntil,
		Total:       uint16(len(vs.Validators)),
		Main:        uint16(len(vs.Validators)),
		TotalWeight: vs.totalWeight,
		List:        make([]tlb.ValidatorDescr, len(vs.Validators)),
	}
	for i, v := range vs.Validators {
		copy(set.List[i].PublicKey[:], v.PubKey)
		set.List[i].Weight = v.Weight
	}
	return set
}

// ToCell encodes the set as configuration parameter 34.
func (vs *ValidatorSet) ToCell() (*cell.Cell, error) {
	return vs.ToTLB().ToCell()
}

func (vs *ValidatorSet) String() string {
	return vs.StringIndented("")
}

// StringIndented returns an indented string representation of the set.
func (vs *ValidatorSet) StringIndented(indent string) string {
	if vs == nil {
		return "nil-ValidatorSet"
	}
	var valStrings []string
	for _, v := range vs.Validators {
		valStrings = append(valStrings, v.String())
	}
	return fmt.Sprintf(`ValidatorSet{
%s  TotalWeight: %d
%s  Validators:
%s    %v
%s}`,
		indent, vs.totalWeight,
		indent,
		indent, strings.Join(valStrings, "\n"+indent+"    "),
		indent)
}

type validatorSetJSON struct {
	Validators  []*Validator `json:"validators"`
	TotalWeight uint64       `json:"total_weight,string"`
	UtimeSince  uint32       `json:"utime_since"`
	UtimeUntil  uint32       `json:"utime_until"`
}

func (vs *ValidatorSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(validatorSetJSON{
		Validators:  vs.Validators,
		TotalWeight: vs.totalWeight,
		UtimeSince:  vs.UtimeSince,
		UtimeUntil:  vs.UtimeUntil,
	})
}

func (vs *ValidatorSet) UnmarshalJSON(data []byte) error {
	var val validatorSetJSON
	if err := json.Unmarshal(data, &val); err != nil {
		return err
	}
	vs.Validators = val.Validators
	vs.totalWeight = val.TotalWeight
	vs.UtimeSince, vs.UtimeUntil = val.UtimeSince, val.UtimeUntil
	return vs.buildIndex()
}
