package light

import (
	"fmt"
	"sync"

	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/light/store"
	"github.com/tonlight/tonlight/types"
)

const (
	defaultPruningSize      = 1000
	defaultFetchConcurrency = 8
)

// Option sets a parameter for the light client.
type Option func(*Client)

// TallyMode option selects how signatures add up towards the quorum.
// Default: types.TallyValidatorWeight.
func TallyMode(m types.TallyMode) Option {
	return func(c *Client) {
		c.tallyMode = m
	}
}

// VerifyTotalWeight option makes the client reject key blocks whose validator
// set declares a total weight below the sum of its members' weights.
// Default: true.
func VerifyTotalWeight(b bool) Option {
	return func(c *Client) {
		c.verifyTotalWeight = b
	}
}

// TrustedStore option makes the client persist every state it accepts.
func TrustedStore(s store.Store) Option {
	return func(c *Client) {
		c.trustedStore = s
	}
}

// PruningSize option sets the maximum number of states kept in the trusted
// store. Default: 1000. A pruning size of 0 will not prune the store at all.
func PruningSize(n uint16) Option {
	return func(c *Client) {
		c.pruningSize = n
	}
}

// FetchConcurrency option sets how many signature requests Sync keeps in
// flight. Default: 8.
func FetchConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.fetchConcurrency = n
		}
	}
}

// Logger option can be used to set a logger for the client.
func Logger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics option sets the metrics the client reports to.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client tracks the validator set of a single network. It starts from a
// trusted state and only moves forward by accepting key blocks signed by
// the validators it already trusts.
//
// Client is safe for concurrent use. Transitions are serialized; checks run
// against the state trusted when they start.
type Client struct {
	tallyMode         types.TallyMode
	verifyTotalWeight bool
	fetchConcurrency  int

	mtx   sync.Mutex
	state *types.TrustedState

	// Where accepted states are stored. Optional.
	trustedStore store.Store
	pruningSize  uint16

	logger  log.Logger
	metrics *Metrics
}

// NewClient returns a light client trusting state. The state usually comes
// from a configuration file or an earlier run; it is the client's only root
// of trust.
func NewClient(state *types.TrustedState, options ...Option) (*Client, error) {
	if err := state.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid trusted state: %w", err)
	}

	c := &Client{
		state:             state.Copy(),
		verifyTotalWeight: true,
		fetchConcurrency:  defaultFetchConcurrency,
		pruningSize:       defaultPruningSize,
		logger:            log.NewNopLogger(),
		metrics:           NopMetrics(),
	}
	for _, o := range options {
		o(c)
	}

	if c.trustedStore != nil {
		if err := c.trustedStore.SaveTrustedState(c.state); err != nil {
			return nil, fmt.Errorf("failed to save trusted state: %w", err)
		}
	}
	c.reportState(c.state)

	return c, nil
}

// NewClientFromTrustedStore initializes a light client from the latest state
// in trustedStore. The store keeps receiving the states the client accepts.
func NewClientFromTrustedStore(trustedStore store.Store, options ...Option) (*Client, error) {
	state, err := trustedStore.LastTrustedState()
	if err != nil {
		return nil, err
	}
	return NewClient(state, append(options, TrustedStore(trustedStore))...)
}

// State returns a copy of the trusted state.
func (c *Client) State() *types.TrustedState {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state.Copy()
}

// NewKeyBlock verifies pb against the trusted state and, if it is a key block
// directly following the trusted one and signed by a quorum of the trusted
// validators, trusts the validator set it carries from its seqno on.
//
// On error the trusted state is unchanged.
func (c *Client) NewKeyBlock(pb *types.ProvableBlock) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	next, err := VerifyKeyBlock(c.state, pb, c.tallyMode, c.verifyTotalWeight)
	if err != nil {
		c.logger.Error("rejected key block", "trusted", c.state.Seqno, "err", err)
		c.metrics.VerificationFailures.With("reason", errorReason(err)).Add(1)
		return err
	}

	if c.trustedStore != nil {
		if err := c.trustedStore.SaveTrustedState(next); err != nil {
			return fmt.Errorf("failed to save trusted state: %w", err)
		}
		if c.pruningSize > 0 {
			if err := c.trustedStore.Prune(c.pruningSize); err != nil {
				c.logger.Error("failed to prune trusted store", "err", err)
			}
		}
	}

	rootHash, _ := pb.Block.RootHash()
	c.logger.Info("accepted key block",
		"seqno", next.Seqno,
		"prev", c.state.Seqno,
		"hash", log.Hexadecimal(rootHash),
		"validators", next.Validators.Size(),
		"total_weight", next.Validators.TotalWeight())

	c.state = next
	c.metrics.KeyBlocks.Add(1)
	c.reportState(next)
	return nil
}

// CheckBlock verifies pb against the trusted state without changing it. The
// block need not be a key block, but it must follow the trusted key block.
func (c *Client) CheckBlock(pb *types.ProvableBlock) error {
	state := c.trusted()

	block, err := VerifyBlock(state, pb, c.tallyMode)
	if err != nil {
		c.logger.Debug("block check failed", "trusted", state.Seqno, "err", err)
		c.metrics.VerificationFailures.With("reason", errorReason(err)).Add(1)
		return err
	}

	c.logger.Debug("block checked", "seqno", block.Info.SeqNo, "key_block", block.Info.KeyBlock)
	c.metrics.CheckedBlocks.Add(1)
	return nil
}

// trusted returns the current state. Installed states are never modified, so
// the result stays valid after the lock is released.
func (c *Client) trusted() *types.TrustedState {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

func (c *Client) reportState(ts *types.TrustedState) {
	c.metrics.TrustedSeqno.Set(float64(ts.Seqno))
	c.metrics.Validators.Set(float64(ts.Validators.Size()))
}
