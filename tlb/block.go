package tlb

import (
	"github.com/tonlight/tonlight/cell"
)

const (
	blockTag     = 0x11ef55aa
	blockInfoTag = 0x9bc7a987
	versionTag   = 0xc4
)

// Block is a decoded block. The value flow and state update are kept as raw
// cells. Extra is nil when the extra reference has been pruned, as in a
// header proof.
//
//	block#11ef55aa global_id:int32
//	  info:^BlockInfo value_flow:^ValueFlow
//	  state_update:^(MERKLE_UPDATE ShardState)
//	  extra:^BlockExtra = Block;
type Block struct {
	GlobalID    int32
	Info        BlockInfo
	ValueFlow   *cell.Cell
	StateUpdate *cell.Cell
	Extra       *BlockExtra

	extraCell *cell.Cell
}

// LoadBlock decodes the block stored in root.
func LoadBlock(root *cell.Cell) (*Block, error) {
	s, err := root.BeginParse()
	if err != nil {
		return nil, decodeErr("Block", err)
	}
	tag, err := s.LoadUint(32)
	if err != nil {
		return nil, decodeErr("Block", err)
	}
	if err := checkTag("Block", tag, blockTag, 32); err != nil {
		return nil, err
	}
	gid, err := s.LoadInt(32)
	if err != nil {
		return nil, decodeErr("Block", err)
	}

	var refs [4]*cell.Cell
	for i := range refs {
		if refs[i], err = s.LoadRef(); err != nil {
			return nil, decodeErr("Block", err)
		}
	}
	if err := s.EnsureEmpty(); err != nil {
		return nil, decodeErr("Block", err)
	}

	b := &Block{
		GlobalID:    int32(gid),
		ValueFlow:   refs[1],
		StateUpdate: refs[2],
		extraCell:   refs[3],
	}
	info, err := refs[0].BeginParse()
	if err != nil {
		return nil, decodeErr("Block", err)
	}
	if b.Info, err = LoadBlockInfo(info); err != nil {
		return nil, err
	}
	if refs[3].Type() == cell.PrunedBranch {
		return b, nil
	}
	extra, err := refs[3].BeginParse()
	if err != nil {
		return nil, decodeErr("Block", err)
	}
	if b.Extra, err = LoadBlockExtra(extra); err != nil {
		return nil, err
	}
	return b, nil
}

// ExtraCell returns the raw extra reference, pruned or not.
func (b *Block) ExtraCell() *cell.Cell { return b.extraCell }

// ToCell encodes the block. When Extra is nil the raw extra reference the
// block was decoded from is reused.
func (b *Block) ToCell() (*cell.Cell, error) {
	info, err := b.Info.ToCell()
	if err != nil {
		return nil, err
	}
	extra := b.extraCell
	if b.Extra != nil {
		if extra, err = b.Extra.ToCell(); err != nil {
			return nil, err
		}
	}
	return cell.NewBuilder().
		StoreUint(blockTag, 32).
		StoreInt(int64(b.GlobalID), 32).
		StoreRef(info).
		StoreRef(b.ValueFlow).
		StoreRef(b.StateUpdate).
		StoreRef(extra).
		EndCell()
}

// ShardIdent identifies the shard a block belongs to.
//
//	shard_ident$00 shard_pfx_bits:(#<= 60)
//	  workchain_id:int32 shard_prefix:uint64 = ShardIdent;
type ShardIdent struct {
	PrefixBits  uint8
	WorkchainID int32
	Prefix      uint64
}

func loadShardIdent(s *cell.Slice) (ShardIdent, error) {
	tag, err := s.LoadUint(2)
	if err != nil {
		return ShardIdent{}, decodeErr("ShardIdent", err)
	}
	if err := checkTag("ShardIdent", tag, 0, 2); err != nil {
		return ShardIdent{}, err
	}
	pfx, err := s.LoadUint(6)
	if err != nil {
		return ShardIdent{}, decodeErr("ShardIdent", err)
	}
	if pfx > 60 {
		return ShardIdent{}, decodeErrf("ShardIdent", "prefix of %d bits", pfx)
	}
	wc, err := s.LoadInt(32)
	if err != nil {
		return ShardIdent{}, decodeErr("ShardIdent", err)
	}
	prefix, err := s.LoadUint(64)
	if err != nil {
		return ShardIdent{}, decodeErr("ShardIdent", err)
	}
	return ShardIdent{PrefixBits: uint8(pfx), WorkchainID: int32(wc), Prefix: prefix}, nil
}

func (si ShardIdent) store(b *cell.Builder) {
	b.StoreUint(0, 2).
		StoreUint(uint64(si.PrefixBits), 6).
		StoreInt(int64(si.WorkchainID), 32).
		StoreUint(si.Prefix, 64)
}

// GlobalVersion is the software version that produced a block.
//
//	capabilities#c4 version:uint32 capabilities:uint64 = GlobalVersion;
type GlobalVersion struct {
	Version      uint32
	Capabilities uint64
}

// ExtBlkRef references another block by logical time, seqno and hashes.
//
//	ext_blk_ref$_ end_lt:uint64 seq_no:uint32
//	  root_hash:bits256 file_hash:bits256 = ExtBlkRef;
type ExtBlkRef struct {
	EndLt    uint64
	SeqNo    uint32
	RootHash [32]byte
	FileHash [32]byte
}

// LoadExtBlkRef reads an ExtBlkRef.
func LoadExtBlkRef(s *cell.Slice) (ExtBlkRef, error) {
	var r ExtBlkRef
	endLt, err := s.LoadUint(64)
	if err != nil {
		return r, decodeErr("ExtBlkRef", err)
	}
	seqno, err := s.LoadUint(32)
	if err != nil {
		return r, decodeErr("ExtBlkRef", err)
	}
	if err := loadBits256(s, &r.RootHash); err != nil {
		return r, decodeErr("ExtBlkRef", err)
	}
	if err := loadBits256(s, &r.FileHash); err != nil {
		return r, decodeErr("ExtBlkRef", err)
	}
	r.EndLt, r.SeqNo = endLt, uint32(seqno)
	return r, nil
}

// Store writes the reference into b.
func (r ExtBlkRef) Store(b *cell.Builder) {
	b.StoreUint(r.EndLt, 64).
		StoreUint(uint64(r.SeqNo), 32).
		StoreBytes(r.RootHash[:]).
		StoreBytes(r.FileHash[:])
}

func (r ExtBlkRef) toCell() (*cell.Cell, error) {
	b := cell.NewBuilder()
	r.Store(b)
	return b.EndCell()
}

func loadRefExtBlkRef(s *cell.Slice) (ExtBlkRef, error) {
	rs, err := s.LoadRefSlice()
	if err != nil {
		return ExtBlkRef{}, decodeErr("ExtBlkRef", err)
	}
	return LoadExtBlkRef(rs)
}

func loadBits256(s *cell.Slice, dst *[32]byte) error {
	b, err := s.LoadBytes(32)
	if err != nil {
		return err
	}
	copy(dst[:], b)
	return nil
}

// BlockInfo is the block header.
//
//	block_info#9bc7a987 version:uint32
//	  not_master:(## 1) after_merge:(## 1) before_split:(## 1)
//	  after_split:(## 1) want_split:Bool want_merge:Bool
//	  key_block:Bool vert_seqno_incr:(## 1)
//	  flags:(## 8) { flags <= 1 }
//	  seq_no:# vert_seq_no:# { vert_seq_no >= vert_seqno_incr }
//	  shard:ShardIdent gen_utime:uint32
//	  start_lt:uint64 end_lt:uint64
//	  gen_validator_list_hash_short:uint32
//	  gen_catchain_seqno:uint32
//	  min_ref_mc_seqno:uint32
//	  prev_key_block_seqno:uint32
//	  gen_software:flags . 0?GlobalVersion
//	  master_ref:not_master?^BlkMasterInfo
//	  prev_ref:^(BlkPrevInfo after_merge)
//	  prev_vert_ref:vert_seqno_incr?^(BlkPrevInfo 0)
//	  = BlockInfo;
type BlockInfo struct {
	Version       uint32
	NotMaster     bool
	AfterMerge    bool
	BeforeSplit   bool
	AfterSplit    bool
	WantSplit     bool
	WantMerge     bool
	KeyBlock      bool
	VertSeqnoIncr bool
	Flags         uint8

	SeqNo     uint32
	VertSeqNo uint32
	Shard     ShardIdent
	GenUtime  uint32
	StartLt   uint64
	EndLt     uint64

	GenValidatorListHashShort uint32
	GenCatchainSeqno          uint32
	MinRefMcSeqno             uint32
	PrevKeyBlockSeqno         uint32

	GenSoftware *GlobalVersion
	MasterRef   *ExtBlkRef
	// Prev is the previous block; after a merge Prev2 is the second one.
	Prev     ExtBlkRef
	Prev2    *ExtBlkRef
	PrevVert *ExtBlkRef
}

// LoadBlockInfo reads a BlockInfo.
func LoadBlockInfo(s *cell.Slice) (BlockInfo, error) {
	var info BlockInfo
	tag, err := s.LoadUint(32)
	if err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	if err := checkTag("BlockInfo", tag, blockInfoTag, 32); err != nil {
		return info, err
	}
	version, err := s.LoadUint(32)
	if err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	info.Version = uint32(version)

	for _, f := range []*bool{
		&info.NotMaster, &info.AfterMerge, &info.BeforeSplit, &info.AfterSplit,
		&info.WantSplit, &info.WantMerge, &info.KeyBlock, &info.VertSeqnoIncr,
	} {
		if *f, err = s.LoadBit(); err != nil {
			return info, decodeErr("BlockInfo", err)
		}
	}

	flags, err := s.LoadUint(8)
	if err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	if flags > 1 {
		return info, decodeErrf("BlockInfo", "flags %d", flags)
	}
	info.Flags = uint8(flags)

	var u32 [2]uint64
	for i := range u32 {
		if u32[i], err = s.LoadUint(32); err != nil {
			return info, decodeErr("BlockInfo", err)
		}
	}
	info.SeqNo, info.VertSeqNo = uint32(u32[0]), uint32(u32[1])
	if info.VertSeqnoIncr && info.VertSeqNo == 0 {
		return info, decodeErrf("BlockInfo", "vert_seq_no 0 with vert_seqno_incr")
	}

	if info.Shard, err = loadShardIdent(s); err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	utime, err := s.LoadUint(32)
	if err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	info.GenUtime = uint32(utime)
	if info.StartLt, err = s.LoadUint(64); err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	if info.EndLt, err = s.LoadUint(64); err != nil {
		return info, decodeErr("BlockInfo", err)
	}

	var tail [4]uint64
	for i := range tail {
		if tail[i], err = s.LoadUint(32); err != nil {
			return info, decodeErr("BlockInfo", err)
		}
	}
	info.GenValidatorListHashShort = uint32(tail[0])
	info.GenCatchainSeqno = uint32(tail[1])
	info.MinRefMcSeqno = uint32(tail[2])
	info.PrevKeyBlockSeqno = uint32(tail[3])

	if info.Flags&1 != 0 {
		tag, err := s.LoadUint(8)
		if err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		if err := checkTag("GlobalVersion", tag, versionTag, 8); err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		version, err := s.LoadUint(32)
		if err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		caps, err := s.LoadUint(64)
		if err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		info.GenSoftware = &GlobalVersion{Version: uint32(version), Capabilities: caps}
	}

	if info.NotMaster {
		ref, err := loadRefExtBlkRef(s)
		if err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		info.MasterRef = &ref
	}

	prev, err := s.LoadRefSlice()
	if err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	if info.AfterMerge {
		if info.Prev, err = loadRefExtBlkRef(prev); err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		prev2, err := loadRefExtBlkRef(prev)
		if err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		info.Prev2 = &prev2
	} else if info.Prev, err = LoadExtBlkRef(prev); err != nil {
		return info, decodeErr("BlockInfo", err)
	}

	if info.VertSeqnoIncr {
		vs, err := s.LoadRefSlice()
		if err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		vert, err := LoadExtBlkRef(vs)
		if err != nil {
			return info, decodeErr("BlockInfo", err)
		}
		info.PrevVert = &vert
	}

	if err := s.EnsureEmpty(); err != nil {
		return info, decodeErr("BlockInfo", err)
	}
	return info, nil
}

// ToCell encodes the header.
func (info BlockInfo) ToCell() (*cell.Cell, error) {
	b := cell.NewBuilder().
		StoreUint(blockInfoTag, 32).
		StoreUint(uint64(info.Version), 32)
	for _, f := range []bool{
		info.NotMaster, info.AfterMerge, info.BeforeSplit, info.AfterSplit,
		info.WantSplit, info.WantMerge, info.KeyBlock, info.VertSeqnoIncr,
	} {
		b.StoreBit(f)
	}

	flags := info.Flags &^ 1
	if info.GenSoftware != nil {
		flags |= 1
	}
	b.StoreUint(uint64(flags), 8).
		StoreUint(uint64(info.SeqNo), 32).
		StoreUint(uint64(info.VertSeqNo), 32)
	info.Shard.store(b)
	b.StoreUint(uint64(info.GenUtime), 32).
		StoreUint(info.StartLt, 64).
		StoreUint(info.EndLt, 64).
		StoreUint(uint64(info.GenValidatorListHashShort), 32).
		StoreUint(uint64(info.GenCatchainSeqno), 32).
		StoreUint(uint64(info.MinRefMcSeqno), 32).
		StoreUint(uint64(info.PrevKeyBlockSeqno), 32)
	if info.GenSoftware != nil {
		b.StoreUint(versionTag, 8).
			StoreUint(uint64(info.GenSoftware.Version), 32).
			StoreUint(info.GenSoftware.Capabilities, 64)
	}

	if info.NotMaster {
		var master ExtBlkRef
		if info.MasterRef != nil {
			master = *info.MasterRef
		}
		c, err := master.toCell()
		if err != nil {
			return nil, err
		}
		b.StoreRef(c)
	}

	pb := cell.NewBuilder()
	if info.AfterMerge {
		var prev2 ExtBlkRef
		if info.Prev2 != nil {
			prev2 = *info.Prev2
		}
		for _, r := range []ExtBlkRef{info.Prev, prev2} {
			c, err := r.toCell()
			if err != nil {
				return nil, err
			}
			pb.StoreRef(c)
		}
	} else {
		info.Prev.Store(pb)
	}
	prev, err := pb.EndCell()
	if err != nil {
		return nil, err
	}
	b.StoreRef(prev)

	if info.VertSeqnoIncr {
		var vert ExtBlkRef
		if info.PrevVert != nil {
			vert = *info.PrevVert
		}
		c, err := vert.toCell()
		if err != nil {
			return nil, err
		}
		b.StoreRef(c)
	}
	return b.EndCell()
}
