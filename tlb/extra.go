package tlb

import (
	"github.com/tonlight/tonlight/cell"
)

const (
	blockExtraTag   = 0x4a33f6fd
	mcBlockExtraTag = 0xcca5
)

// BlockExtra holds the message descriptors, the account blocks and, for
// masterchain blocks, the masterchain extension. Only Custom is decoded; the
// other references are kept raw and may be pruned.
//
//	block_extra in_msg_descr:^InMsgDescr
//	  out_msg_descr:^OutMsgDescr
//	  account_blocks:^ShardAccountBlocks
//	  rand_seed:bits256
//	  created_by:bits256
//	  custom:(Maybe ^McBlockExtra) = BlockExtra;
type BlockExtra struct {
	InMsgDescr    *cell.Cell
	OutMsgDescr   *cell.Cell
	AccountBlocks *cell.Cell
	RandSeed      [32]byte
	CreatedBy     [32]byte
	Custom        *McBlockExtra
}

// LoadBlockExtra reads a BlockExtra.
func LoadBlockExtra(s *cell.Slice) (*BlockExtra, error) {
	tag, err := s.LoadUint(32)
	if err != nil {
		return nil, decodeErr("BlockExtra", err)
	}
	if err := checkTag("BlockExtra", tag, blockExtraTag, 32); err != nil {
		return nil, err
	}

	e := &BlockExtra{}
	for _, dst := range []**cell.Cell{&e.InMsgDescr, &e.OutMsgDescr, &e.AccountBlocks} {
		if *dst, err = s.LoadRef(); err != nil {
			return nil, decodeErr("BlockExtra", err)
		}
	}
	if err := loadBits256(s, &e.RandSeed); err != nil {
		return nil, decodeErr("BlockExtra", err)
	}
	if err := loadBits256(s, &e.CreatedBy); err != nil {
		return nil, decodeErr("BlockExtra", err)
	}

	custom, err := s.LoadMaybeRef()
	if err != nil {
		return nil, decodeErr("BlockExtra", err)
	}
	if custom != nil && custom.Type() != cell.PrunedBranch {
		cs, err := custom.BeginParse()
		if err != nil {
			return nil, decodeErr("BlockExtra", err)
		}
		if e.Custom, err = LoadMcBlockExtra(cs); err != nil {
			return nil, err
		}
	}
	if err := s.EnsureEmpty(); err != nil {
		return nil, decodeErr("BlockExtra", err)
	}
	return e, nil
}

// ToCell encodes the extra.
func (e *BlockExtra) ToCell() (*cell.Cell, error) {
	b := cell.NewBuilder().
		StoreUint(blockExtraTag, 32).
		StoreRef(e.InMsgDescr).
		StoreRef(e.OutMsgDescr).
		StoreRef(e.AccountBlocks).
		StoreBytes(e.RandSeed[:]).
		StoreBytes(e.CreatedBy[:])
	if e.Custom == nil {
		b.StoreBit(false)
		return b.EndCell()
	}
	custom, err := e.Custom.ToCell()
	if err != nil {
		return nil, err
	}
	b.StoreMaybeRef(custom)
	return b.EndCell()
}

// McBlockExtra is the masterchain part of a block. Shard hashes, shard fees
// and the signatures of the previous block are kept raw.
//
//	masterchain_block_extra#cca5
//	  key_block:(## 1)
//	  shard_hashes:ShardHashes
//	  shard_fees:ShardFees
//	  ^[ prev_blk_signatures:(HashmapE 16 CryptoSignaturePair)
//	     recover_create_msg:(Maybe ^InMsg)
//	     mint_msg:(Maybe ^InMsg) ]
//	  config:key_block?ConfigParams
//	= McBlockExtra;
type McBlockExtra struct {
	KeyBlock    bool
	ShardHashes Hashmap
	ShardFees   Hashmap
	Fees        CurrencyCollection
	Create      CurrencyCollection
	Misc        *cell.Cell
	Config      *ConfigParams
}

// LoadMcBlockExtra reads a McBlockExtra.
func LoadMcBlockExtra(s *cell.Slice) (*McBlockExtra, error) {
	tag, err := s.LoadUint(16)
	if err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}
	if err := checkTag("McBlockExtra", tag, mcBlockExtraTag, 16); err != nil {
		return nil, err
	}

	e := &McBlockExtra{}
	if e.KeyBlock, err = s.LoadBit(); err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}
	if e.ShardHashes, err = LoadHashmapE(s, 32); err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}
	// shard_fees is a HashmapAugE whose extra follows the root.
	if e.ShardFees, err = LoadHashmapE(s, 96); err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}
	if e.Fees, err = LoadCurrencyCollection(s); err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}
	if e.Create, err = LoadCurrencyCollection(s); err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}
	if e.Misc, err = s.LoadRef(); err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}

	if e.KeyBlock {
		if e.Config, err = LoadConfigParams(s); err != nil {
			return nil, decodeErr("McBlockExtra", err)
		}
	}
	if err := s.EnsureEmpty(); err != nil {
		return nil, decodeErr("McBlockExtra", err)
	}
	return e, nil
}

// ToCell encodes the masterchain extension. A nil Misc is stored as an empty
// signature set without recovery or mint messages.
func (e *McBlockExtra) ToCell() (*cell.Cell, error) {
	if e.KeyBlock != (e.Config != nil) {
		return nil, decodeErrf("McBlockExtra", "key_block %v with config present %v", e.KeyBlock, e.Config != nil)
	}
	misc := e.Misc
	if misc == nil {
		var err error
		misc, err = cell.NewBuilder().StoreBit(false).StoreBit(false).StoreBit(false).EndCell()
		if err != nil {
			return nil, err
		}
	}

	b := cell.NewBuilder().
		StoreUint(mcBlockExtraTag, 16).
		StoreBit(e.KeyBlock).
		StoreMaybeRef(e.ShardHashes.Root()).
		StoreMaybeRef(e.ShardFees.Root())
	e.Fees.Store(b)
	e.Create.Store(b)
	b.StoreRef(misc)
	if e.KeyBlock {
		e.Config.Store(b)
	}
	return b.EndCell()
}

// ConfigParams is the blockchain configuration carried by key blocks: a
// dictionary from parameter index to the parameter's cell.
//
//	_ config_addr:bits256 config:^(Hashmap 32 ^Cell) = ConfigParams;
type ConfigParams struct {
	ConfigAddr [32]byte
	Config     Hashmap
}

// LoadConfigParams reads ConfigParams.
func LoadConfigParams(s *cell.Slice) (*ConfigParams, error) {
	p := &ConfigParams{}
	if err := loadBits256(s, &p.ConfigAddr); err != nil {
		return nil, decodeErr("ConfigParams", err)
	}
	root, err := s.LoadRef()
	if err != nil {
		return nil, decodeErr("ConfigParams", err)
	}
	p.Config = NewHashmap(root, 32)
	return p, nil
}

// Store writes the parameters into b.
func (p *ConfigParams) Store(b *cell.Builder) {
	b.StoreBytes(p.ConfigAddr[:]).StoreRef(p.Config.Root())
}

// Param returns the cell of configuration parameter index, or nil when the
// parameter is not set.
func (p *ConfigParams) Param(index uint32) (*cell.Cell, error) {
	v, err := p.Config.GetUint(uint64(index))
	if err != nil || v == nil {
		return nil, err
	}
	c, err := v.LoadRef()
	if err != nil {
		return nil, decodeErr("ConfigParams", err)
	}
	return c, nil
}

// BuildConfigParams stores params as a configuration dictionary.
func BuildConfigParams(addr [32]byte, params map[uint32]*cell.Cell) (*ConfigParams, error) {
	entries := make([]HashmapEntry, 0, len(params))
	for idx, c := range params {
		key, err := uintKey(uint64(idx), 32)
		if err != nil {
			return nil, err
		}
		c := c
		entries = append(entries, HashmapEntry{Key: key, Store: func(b *cell.Builder) error {
			return b.StoreRef(c).Err()
		}})
	}
	root, err := BuildHashmap(32, entries, nil)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, decodeErrf("ConfigParams", "no parameters")
	}
	return &ConfigParams{ConfigAddr: addr, Config: NewHashmap(root, 32)}, nil
}
