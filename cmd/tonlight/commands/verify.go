package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/light"
	"github.com/tonlight/tonlight/merkle"
	"github.com/tonlight/tonlight/tlb"
	"github.com/tonlight/tonlight/types"
)

// MakeNewKeyBlockCommand returns the command moving the trusted state to the
// next key block.
func MakeNewKeyBlockCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "new-key-block <block.boc> <signatures.json>",
		Short: "Verify the next key block and trust its validator set",
		Long: `Verify a key block following the trusted one and, if a quorum of the
trusted validators signed it, trust the validator set it installs.

The block is a full block or a config proof of it. The signatures are
a toncenter getMasterchainBlockSignatures result.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			c, closeStore, err := openClient(conf, logger, light.NopMetrics())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); err == nil {
					err = cerr
				}
			}()

			pb, err := readProvableBlock(args[0], args[1])
			if err != nil {
				return err
			}
			if err := c.NewKeyBlock(pb); err != nil {
				return err
			}

			state := c.State()
			fmt.Fprintf(cmd.OutOrStdout(), "trusting key block #%d with %d validators\n",
				state.Seqno, state.Validators.Size())
			return nil
		},
	}
}

// MakeCheckBlockCommand returns the command checking a block against the
// trusted state.
func MakeCheckBlockCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "check-block <block.boc> <signatures.json>",
		Short: "Verify a block signed by the trusted validators",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeStore, err := openClient(conf, logger, light.NopMetrics())
			if err != nil {
				return err
			}
			defer closeStore()

			pb, err := readProvableBlock(args[0], args[1])
			if err != nil {
				return err
			}
			if err := c.CheckBlock(pb); err != nil {
				return err
			}
			return printBlockOK(cmd, pb)
		},
	}
}

// MakeCheckTxCommand returns the command checking that a transaction is part
// of a block signed by the trusted validators.
func MakeCheckTxCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "check-tx <block.boc> <signatures.json> <proof.boc> <tx-hash>",
		Short: "Verify a transaction is included in a signed block",
		Long: `Verify that a transaction is included in a block signed by the trusted
validators.

The proof is a Merkle proof of the block in which the transaction shows
as a pruned branch, as written by header-proof --tx-proof. The hash is
the transaction's level-0 hash in hex. When the transaction is missing,
the transactions the proof does hold are listed.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			txHash, err := hex.DecodeString(args[3])
			if err != nil {
				return fmt.Errorf("invalid transaction hash: %w", err)
			}
			bz, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			proof, err := cell.FromBOC(bz)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", args[2], err)
			}

			c, closeStore, err := openClient(conf, logger, light.NopMetrics())
			if err != nil {
				return err
			}
			defer closeStore()

			pb, err := readProvableBlock(args[0], args[1])
			if err != nil {
				return err
			}
			if err := c.CheckTransaction(pb, proof, txHash); err != nil {
				var notFound light.ErrTransactionNotFound
				if errors.As(err, &notFound) {
					printProofTransactions(cmd, proof, logger)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %X is included\n", txHash)
			return printBlockOK(cmd, pb)
		},
	}
}

// printProofTransactions lists the hashes of the transactions present in a
// transactions proof.
func printProofTransactions(cmd *cobra.Command, proof *cell.Cell, logger log.Logger) {
	root, err := merkle.Unwrap(proof)
	if err != nil {
		logger.Debug("cannot list proof transactions", "err", err)
		return
	}
	txs, err := tlb.ProofTransactions(root)
	if err != nil {
		logger.Debug("cannot list proof transactions", "err", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "proof holds %d transactions:\n", len(txs))
	for _, tx := range txs {
		fmt.Fprintf(cmd.OutOrStdout(), "  %X\n", tx.Hash(0))
	}
}

func printBlockOK(cmd *cobra.Command, pb *types.ProvableBlock) error {
	block, err := pb.Block.Block()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "block #%d is valid\n", block.Info.SeqNo)
	return nil
}
