package factory

import (
	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/tlb"
	"github.com/tonlight/tonlight/types"
)

// MainnetGlobalID is the global id of the TON mainnet.
const MainnetGlobalID = -239

// BlockSpec describes a synthetic block. Zero values give a masterchain
// block without a configuration.
type BlockSpec struct {
	GlobalID          int32
	Seqno             uint32
	PrevKeyBlockSeqno uint32
	KeyBlock          bool
	NotMaster         bool
	GenUtime          uint32

	// NextValidators is stored as configuration parameter 34 of key blocks.
	NextValidators *types.ValidatorSet
	Accounts       []tlb.AccountBlock
}

// MakeBlock builds the block described by spec.
func MakeBlock(spec BlockSpec) (*cell.Cell, error) {
	empty, err := cell.NewBuilder().EndCell()
	if err != nil {
		return nil, err
	}
	accounts, err := tlb.BuildShardAccountBlocks(spec.Accounts)
	if err != nil {
		return nil, err
	}

	extra := &tlb.BlockExtra{
		InMsgDescr:    empty,
		OutMsgDescr:   empty,
		AccountBlocks: accounts,
	}
	if !spec.NotMaster {
		extra.Custom = &tlb.McBlockExtra{KeyBlock: spec.KeyBlock}
		if spec.KeyBlock {
			params := map[uint32]*cell.Cell{}
			if spec.NextValidators != nil {
				vs, err := spec.NextValidators.ToCell()
				if err != nil {
					return nil, err
				}
				params[tlb.ConfigValidatorSet] = vs
			} else {
				params[0] = empty
			}
			var addr [32]byte
			addr[0] = 0x55
			if extra.Custom.Config, err = tlb.BuildConfigParams(addr, params); err != nil {
				return nil, err
			}
		}
	}

	shard := tlb.ShardIdent{WorkchainID: -1}
	if spec.NotMaster {
		shard = tlb.ShardIdent{WorkchainID: 0, Prefix: 1 << 63}
	}
	block := &tlb.Block{
		GlobalID: spec.GlobalID,
		Info: tlb.BlockInfo{
			NotMaster:         spec.NotMaster,
			KeyBlock:          spec.KeyBlock,
			SeqNo:             spec.Seqno,
			Shard:             shard,
			GenUtime:          spec.GenUtime,
			StartLt:           uint64(spec.Seqno) * 1000000,
			EndLt:             uint64(spec.Seqno)*1000000 + 4,
			PrevKeyBlockSeqno: spec.PrevKeyBlockSeqno,
		},
		ValueFlow:   empty,
		StateUpdate: empty,
		Extra:       extra,
	}
	if spec.Seqno > 0 {
		block.Info.Prev.SeqNo = spec.Seqno - 1
	}
	return block.ToCell()
}

// MakeBlockFile serializes the block described by spec.
func MakeBlockFile(spec BlockSpec) ([]byte, error) {
	root, err := MakeBlock(spec)
	if err != nil {
		return nil, err
	}
	return cell.ToBOC(root)
}

// MakeBlockAndFileHash builds the block described by spec and binds it to
// the hash of its serialization.
func MakeBlockAndFileHash(spec BlockSpec) (*types.BlockAndFileHash, error) {
	boc, err := MakeBlockFile(spec)
	if err != nil {
		return nil, err
	}
	return types.NewBlockAndFileHash(boc)
}

// MakeTransaction returns a stand-in transaction cell unique to lt and
// account.
func MakeTransaction(lt uint64, account [32]byte) tlb.Transaction {
	c, err := cell.NewBuilder().
		StoreUint(0x7, 4).
		StoreBytes(account[:]).
		StoreUint(lt, 64).
		EndCell()
	if err != nil {
		panic(err)
	}
	return tlb.Transaction{Lt: lt, Cell: c}
}

// MakeAccountBlocks returns one account block per account, each with n
// transactions at consecutive logical times starting from lt.
func MakeAccountBlocks(lt uint64, n int, accounts ...[32]byte) []tlb.AccountBlock {
	update, err := cell.NewBuilder().StoreUint(0x72, 8).EndCell()
	if err != nil {
		panic(err)
	}
	out := make([]tlb.AccountBlock, len(accounts))
	for i, acc := range accounts {
		txs := make([]tlb.Transaction, n)
		for j := range txs {
			txs[j] = MakeTransaction(lt, acc)
			lt++
		}
		out[i] = tlb.AccountBlock{Account: acc, Transactions: txs, StateUpdate: update}
	}
	return out
}
