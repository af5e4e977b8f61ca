package tlb

import (
	"github.com/tonlight/tonlight/cell"
)

// Validator set constructor tags.
const (
	ValidatorsTag    = 0x11
	ValidatorsExtTag = 0x12

	validatorTag     = 0x53
	validatorAddrTag = 0x73
	ed25519PubKeyTag = 0x8e81278a
)

// ConfigValidatorSet is the configuration parameter holding the current
// validator set.
const ConfigValidatorSet = 34

// ValidatorDescr describes one validator of a set.
//
//	validator#53 public_key:SigPubKey weight:uint64 = ValidatorDescr;
//	validator_addr#73 public_key:SigPubKey weight:uint64
//	  adnl_addr:bits256 = ValidatorDescr;
//	ed25519_pubkey#8e81278a pubkey:bits256 = SigPubKey;
type ValidatorDescr struct {
	PublicKey [32]byte
	Weight    uint64
	AdnlAddr  *[32]byte
}

func loadValidatorDescr(s *cell.Slice) (ValidatorDescr, error) {
	var v ValidatorDescr
	tag, err := s.LoadUint(8)
	if err != nil {
		return v, decodeErr("ValidatorDescr", err)
	}
	if tag != validatorTag && tag != validatorAddrTag {
		return v, decodeErrf("ValidatorDescr", "tag %02x", tag)
	}
	keyTag, err := s.LoadUint(32)
	if err != nil {
		return v, decodeErr("SigPubKey", err)
	}
	if err := checkTag("SigPubKey", keyTag, ed25519PubKeyTag, 32); err != nil {
		return v, decodeErr("ValidatorDescr", err)
	}
	if err := loadBits256(s, &v.PublicKey); err != nil {
		return v, decodeErr("ValidatorDescr", err)
	}
	if v.Weight, err = s.LoadUint(64); err != nil {
		return v, decodeErr("ValidatorDescr", err)
	}
	if tag == validatorAddrTag {
		var adnl [32]byte
		if err := loadBits256(s, &adnl); err != nil {
			return v, decodeErr("ValidatorDescr", err)
		}
		v.AdnlAddr = &adnl
	}
	return v, nil
}

func (v ValidatorDescr) store(b *cell.Builder) error {
	if v.AdnlAddr == nil {
		b.StoreUint(validatorTag, 8)
	} else {
		b.StoreUint(validatorAddrTag, 8)
	}
	b.StoreUint(ed25519PubKeyTag, 32).
		StoreBytes(v.PublicKey[:]).
		StoreUint(v.Weight, 64)
	if v.AdnlAddr != nil {
		b.StoreBytes(v.AdnlAddr[:])
	}
	return b.Err()
}

// ValidatorSet is the extended validator set. The plain validators#11
// variant, which carries no total weight, is not supported.
//
//	validators_ext#12 utime_since:uint32 utime_until:uint32
//	  total:(## 16) main:(## 16) { main <= total } { main >= 1 }
//	  total_weight:uint64 list:(HashmapE 16 ValidatorDescr) = ValidatorSet;
type ValidatorSet struct {
	UtimeSince  uint32
	UtimeUntil  uint32
	Total       uint16
	Main        uint16
	TotalWeight uint64
	// List is ordered by dictionary index.
	List []ValidatorDescr
}

// LoadValidatorSet reads a ValidatorSet.
func LoadValidatorSet(s *cell.Slice) (*ValidatorSet, error) {
	tag, err := s.LoadUint(8)
	if err != nil {
		return nil, decodeErr("ValidatorSet", err)
	}
	if tag == ValidatorsTag {
		return nil, decodeErrf("ValidatorSet", "validators#11 variant is not supported")
	}
	if err := checkTag("ValidatorSet", tag, ValidatorsExtTag, 8); err != nil {
		return nil, err
	}

	vs := &ValidatorSet{}
	var u32 [2]uint64
	for i := range u32 {
		if u32[i], err = s.LoadUint(32); err != nil {
			return nil, decodeErr("ValidatorSet", err)
		}
	}
	vs.UtimeSince, vs.UtimeUntil = uint32(u32[0]), uint32(u32[1])

	var u16 [2]uint64
	for i := range u16 {
		if u16[i], err = s.LoadUint(16); err != nil {
			return nil, decodeErr("ValidatorSet", err)
		}
	}
	vs.Total, vs.Main = uint16(u16[0]), uint16(u16[1])
	if vs.Main < 1 || vs.Main > vs.Total {
		return nil, decodeErrf("ValidatorSet", "main %d of total %d", vs.Main, vs.Total)
	}
	if vs.TotalWeight, err = s.LoadUint(64); err != nil {
		return nil, decodeErr("ValidatorSet", err)
	}

	list, err := LoadHashmapE(s, 16)
	if err != nil {
		return nil, decodeErr("ValidatorSet", err)
	}
	err = list.ForEach(func(_ cell.BitString, value *cell.Slice) error {
		v, err := loadValidatorDescr(value)
		if err != nil {
			return err
		}
		vs.List = append(vs.List, v)
		return nil
	})
	if err != nil {
		return nil, decodeErr("ValidatorSet", err)
	}
	return vs, nil
}

// ToCell encodes the set. List entries are keyed by their position.
func (vs *ValidatorSet) ToCell() (*cell.Cell, error) {
	entries := make([]HashmapEntry, len(vs.List))
	for i := range vs.List {
		key, err := uintKey(uint64(i), 16)
		if err != nil {
			return nil, err
		}
		v := vs.List[i]
		entries[i] = HashmapEntry{Key: key, Store: v.store}
	}
	list, err := BuildHashmap(16, entries, nil)
	if err != nil {
		return nil, err
	}
	return cell.NewBuilder().
		StoreUint(ValidatorsExtTag, 8).
		StoreUint(uint64(vs.UtimeSince), 32).
		StoreUint(uint64(vs.UtimeUntil), 32).
		StoreUint(uint64(vs.Total), 16).
		StoreUint(uint64(vs.Main), 16).
		StoreUint(vs.TotalWeight, 64).
		StoreMaybeRef(list).
		EndCell()
}
