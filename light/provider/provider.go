package provider

import (
	"context"
	"fmt"

	"github.com/tonlight/tonlight/types"
)

// BlockProvider serves serialized masterchain blocks, either full blocks or
// header proofs of them.
type BlockProvider interface {
	// Block returns the bag of cells of the masterchain block with the given
	// seqno.
	//
	// If there's no block for the given seqno, ErrBlockNotFound is returned.
	Block(ctx context.Context, seqno uint32) ([]byte, error)
}

// SignatureProvider serves the validator signatures of masterchain blocks.
type SignatureProvider interface {
	// BlockSignatures returns the signatures of the masterchain block with
	// the given seqno, in the order the source lists them.
	//
	// If there are no signatures for the given seqno, ErrBlockNotFound is
	// returned.
	BlockSignatures(ctx context.Context, seqno uint32) (*types.BlockSignatures, error)
}

// Provider provides information for the light client to sync (verification
// happens in the client).
type Provider interface {
	BlockProvider
	SignatureProvider

	String() string
}

type joined struct {
	BlockProvider
	SignatureProvider
}

// Join returns a Provider serving blocks from blocks and signatures from
// sigs.
func Join(blocks BlockProvider, sigs SignatureProvider) Provider {
	return joined{BlockProvider: blocks, SignatureProvider: sigs}
}

func (j joined) String() string {
	return fmt.Sprintf("join{blocks:%v sigs:%v}", j.BlockProvider, j.SignatureProvider)
}
