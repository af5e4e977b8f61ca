package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/light"
	"github.com/tonlight/tonlight/light/provider"
	"github.com/tonlight/tonlight/light/provider/file"
	"github.com/tonlight/tonlight/light/provider/http"
	"github.com/tonlight/tonlight/light/store"
	dbs "github.com/tonlight/tonlight/light/store/db"
	"github.com/tonlight/tonlight/types"
)

// openClient returns a client resuming from the latest state in the trusted
// store, or from the trusted state file when the store is empty. The
// returned function closes the store.
func openClient(conf *config.Config, logger log.Logger, metrics *light.Metrics) (*light.Client, func() error, error) {
	mode, err := conf.Light.Tally()
	if err != nil {
		return nil, nil, err
	}

	db, err := config.DefaultDBProvider(&config.DBContext{ID: config.LightStoreID, Config: conf})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trusted store: %w", err)
	}
	trustedStore := dbs.New(db)

	state, err := trustedStore.LastTrustedState()
	if errors.Is(err, store.ErrTrustedStateNotFound) {
		path := conf.Light.TrustedStatePath()
		state, err = types.LoadTrustedState(path)
		if os.IsNotExist(err) {
			err = fmt.Errorf("no trusted state at %s, run init first", path)
		}
	}
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if state.GlobalID != conf.Light.GlobalID {
		db.Close()
		return nil, nil, fmt.Errorf("trusted state is of network %d, config tracks %d",
			state.GlobalID, conf.Light.GlobalID)
	}

	c, err := light.NewClient(state,
		light.TallyMode(mode),
		light.VerifyTotalWeight(conf.Light.VerifyTotalWeight),
		light.PruningSize(conf.Light.PruningSize),
		light.FetchConcurrency(conf.Light.FetchConcurrency),
		light.TrustedStore(trustedStore),
		light.Logger(logger.With("module", "light")),
		light.WithMetrics(metrics),
	)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return c, db.Close, nil
}

// newProvider serves blocks from the blocks directory and signatures from
// the toncenter API, or from the blocks directory when no API is set.
func newProvider(conf *config.Config) (provider.Provider, error) {
	blocks := file.New(conf.Provider.BlocksPath(), conf.Provider.Network)
	if conf.Provider.SignaturesURL == "" {
		return blocks, nil
	}

	sigs, err := http.New(conf.Provider.SignaturesURL,
		http.APIKey(conf.Provider.APIKey),
		http.Timeout(conf.Provider.Timeout),
	)
	if err != nil {
		return nil, err
	}
	return provider.Join(blocks, sigs), nil
}

func readBlock(path string) (*types.BlockAndFileHash, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, err := types.NewBlockAndFileHash(bz)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return block, nil
}

func readBlockSignatures(path string) (*types.BlockSignatures, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bs, err := types.UnmarshalBlockSignatures(bz)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return bs, nil
}

// readProvableBlock reads a block, or a proof of it, and the signatures of
// the block.
func readProvableBlock(blockPath, sigsPath string) (*types.ProvableBlock, error) {
	block, err := readBlock(blockPath)
	if err != nil {
		return nil, err
	}
	bs, err := readBlockSignatures(sigsPath)
	if err != nil {
		return nil, err
	}
	return light.NewProvableBlock(block, bs)
}
