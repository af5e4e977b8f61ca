package commands

import (
	"fmt"

	"github.com/creachadair/atomicfile"
	"github.com/spf13/cobra"

	"github.com/tonlight/tonlight/cell"
	"github.com/tonlight/tonlight/config"
	"github.com/tonlight/tonlight/libs/log"
	"github.com/tonlight/tonlight/light"
	"github.com/tonlight/tonlight/light/provider/file"
	"github.com/tonlight/tonlight/merkle"
)

// MakeHeaderProofCommand returns the command cutting full blocks down to the
// proofs the light client needs.
func MakeHeaderProofCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var (
		sigsPath    string
		txProofPath string
	)
	cmd := &cobra.Command{
		Use:   "header-proof <block.boc>",
		Short: "Store the proof of a full block the light client needs",
		Long: `Read a full masterchain block and store a Merkle proof of it in the
blocks directory, where sync looks for blocks: the header for ordinary
blocks, the header and the configuration for key blocks.

With --signatures the signatures of the block are stored alongside,
once they are confirmed to name the block. With --tx-proof a proof
naming every transaction of the block is written to the given path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBlock(args[0])
			if err != nil {
				return err
			}
			if b.Root.Type() != cell.Ordinary {
				return fmt.Errorf("%s is a %v, not a full block", args[0], b.Root.Type())
			}
			block, err := b.Block()
			if err != nil {
				return err
			}

			var proof *cell.Cell
			if block.Info.KeyBlock {
				proof, err = merkle.ConfigProof(b.Root)
			} else {
				proof, err = merkle.HeaderProof(b.Root)
			}
			if err != nil {
				return err
			}
			boc, err := cell.ToBOC(proof)
			if err != nil {
				return err
			}

			p := file.New(conf.Provider.BlocksPath(), conf.Provider.Network)
			if err := p.SaveBlock(block.Info.SeqNo, block.Info.KeyBlock, boc); err != nil {
				return err
			}
			logger.Info("Saved block proof", "seqno", block.Info.SeqNo, "key_block", block.Info.KeyBlock,
				"file_hash", log.Hexadecimal(b.FileHash))

			if sigsPath != "" {
				bs, err := readBlockSignatures(sigsPath)
				if err != nil {
					return err
				}
				if _, err := light.NewProvableBlock(b, bs); err != nil {
					return fmt.Errorf("signatures of %s: %w", sigsPath, err)
				}
				if err := p.SaveBlockSignatures(bs); err != nil {
					return err
				}
			}

			if txProofPath != "" {
				if err := writeTransactionsProof(b.Root, txProofPath); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "stored proof of block #%d in %s\n", block.Info.SeqNo, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&sigsPath, "signatures", "", "signatures of the block to store alongside")
	cmd.Flags().StringVar(&txProofPath, "tx-proof", "", "write a proof of the block's transactions to this path")
	return cmd
}

func writeTransactionsProof(root *cell.Cell, path string) error {
	proof, err := merkle.TransactionsProof(root)
	if err != nil {
		return err
	}
	boc, err := cell.ToBOC(proof)
	if err != nil {
		return err
	}
	return atomicfile.WriteData(path, boc, 0644)
}
