package factory

import (
	"encoding/base64"

	"github.com/tonlight/tonlight/crypto/ed25519"
	"github.com/tonlight/tonlight/types"
)

// Validator returns a new validator of the given weight and its key.
func Validator(weight uint64) (*types.Validator, ed25519.PrivKey) {
	priv := ed25519.GenPrivKey()
	val := types.NewValidator(priv.PubKey().(ed25519.PubKey), weight)
	return val, priv
}

// ValidatorSet returns a set of n validators of equal weight whose total
// weight is the sum of their weights.
func ValidatorSet(n int, weight uint64) (*types.ValidatorSet, []ed25519.PrivKey) {
	weights := make([]uint64, n)
	for i := range weights {
		weights[i] = weight
	}
	return WeightedValidatorSet(weights...)
}

// WeightedValidatorSet returns a set with one validator per weight.
func WeightedValidatorSet(weights ...uint64) (*types.ValidatorSet, []ed25519.PrivKey) {
	var (
		vals  = make([]*types.Validator, len(weights))
		privs = make([]ed25519.PrivKey, len(weights))
		total uint64
	)
	for i, w := range weights {
		vals[i], privs[i] = Validator(w)
		total += w
	}
	vs, err := types.NewValidatorSetWithTotal(vals, total)
	if err != nil {
		panic(err)
	}
	return vs, privs
}

// SignBlock has every key sign the block, in key order.
func SignBlock(block *types.BlockAndFileHash, privs []ed25519.PrivKey) types.SignatureMap {
	rootHash, err := block.RootHash()
	if err != nil {
		panic(err)
	}
	msg := types.BlockSignBytes(rootHash, block.FileHash)

	sigs := make(types.SignatureMap, len(privs))
	for i, priv := range privs {
		sig, err := priv.Sign(msg)
		if err != nil {
			panic(err)
		}
		sigs[i] = types.Signature{
			NodeIDShort: priv.PubKey().NodeIDShort(),
			Signature:   sig,
		}
	}
	return sigs
}

// BlockSignatures has every key sign the block and encodes the signatures
// the way toncenter reports them for the masterchain block seqno.
func BlockSignatures(seqno uint32, block *types.BlockAndFileHash, privs []ed25519.PrivKey) *types.BlockSignatures {
	rootHash, err := block.RootHash()
	if err != nil {
		panic(err)
	}
	id := types.BlockIDExt{
		Type:      "ton.blockIdExt",
		Workchain: -1,
		Shard:     "-9223372036854775808",
		Seqno:     seqno,
		RootHash:  base64.StdEncoding.EncodeToString(rootHash),
		FileHash:  base64.StdEncoding.EncodeToString(block.FileHash),
	}
	return types.NewBlockSignatures(id, SignBlock(block, privs))
}
