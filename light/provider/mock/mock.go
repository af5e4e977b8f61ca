package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tonlight/tonlight/light/provider"
	"github.com/tonlight/tonlight/types"
)

// Mock serves blocks and signatures from memory.
type Mock struct {
	mtx        sync.Mutex
	blocks     map[uint32][]byte
	signatures map[uint32]*types.BlockSignatures
	calls      map[uint32]int
}

var _ provider.Provider = (*Mock)(nil)

// New creates a mock provider with the given blocks and signatures.
func New(blocks map[uint32][]byte, signatures map[uint32]*types.BlockSignatures) *Mock {
	return &Mock{
		blocks:     blocks,
		signatures: signatures,
		calls:      make(map[uint32]int),
	}
}

func (p *Mock) String() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	seqnos := make([]string, 0, len(p.blocks))
	for s := range p.blocks {
		seqnos = append(seqnos, fmt.Sprint(s))
	}
	sort.Strings(seqnos)
	return fmt.Sprintf("Mock{blocks: %s}", strings.Join(seqnos, " "))
}

func (p *Mock) Block(ctx context.Context, seqno uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	bz, ok := p.blocks[seqno]
	if !ok {
		return nil, provider.ErrBlockNotFound
	}
	return bz, nil
}

func (p *Mock) BlockSignatures(ctx context.Context, seqno uint32) (*types.BlockSignatures, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.calls[seqno]++
	bs, ok := p.signatures[seqno]
	if !ok {
		return nil, provider.ErrBlockNotFound
	}
	return bs, nil
}

// SignatureCalls returns how many times the signatures of seqno were asked
// for.
func (p *Mock) SignatureCalls(seqno uint32) int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.calls[seqno]
}

// deadMock always fails.
type deadMock struct{}

// NewDeadMock creates a mock provider that always errors.
func NewDeadMock() provider.Provider {
	return deadMock{}
}

func (deadMock) String() string { return "deadMock" }

func (deadMock) Block(context.Context, uint32) ([]byte, error) {
	return nil, provider.ErrNoResponse
}

func (deadMock) BlockSignatures(context.Context, uint32) (*types.BlockSignatures, error) {
	return nil, provider.ErrNoResponse
}
