package main

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/proofchain-labs/zk-light-client/prover"
)

// proofInfo records how long one block took to prove.
type proofInfo struct {
	blockHeight uint64
	provingTime time.Duration
}

// provingStats accumulates per-block proving times and reports a summary
// with the single lowest and highest samples excluded from the average.
type provingStats struct {
	stats []proofInfo
}

func (s *provingStats) push(blockHeight uint64, provingTime time.Duration) {
	s.stats = append(s.stats, proofInfo{blockHeight: blockHeight, provingTime: provingTime})
}

func (s *provingStats) printSummary(label string) {
	if len(s.stats) < 3 {
		fmt.Printf("Not enough data points for %s summary (need at least 3).\n", label)
		return
	}

	sort.Slice(s.stats, func(i, j int) bool {
		return s.stats[i].provingTime < s.stats[j].provingTime
	})

	trimmed := s.stats[1 : len(s.stats)-1]
	var total time.Duration
	for _, info := range trimmed {
		total += info.provingTime
	}
	avg := total / time.Duration(len(trimmed))

	lowest := s.stats[0]
	highest := s.stats[len(s.stats)-1]

	fmt.Printf("\n=== %s Proof Time Results ===\n", label)
	fmt.Printf("Total blocks processed: %d\n", len(s.stats))
	fmt.Printf("Lowest time:  block %d => %s\n", lowest.blockHeight, lowest.provingTime)
	fmt.Printf("Highest time: block %d => %s\n", highest.blockHeight, highest.provingTime)
	fmt.Printf("Average time (excluding min/max): %s\n", avg)
}

func benchCmd(args *rootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure the time for proof generation",
	}
	cmd.AddCommand(tendermintBenchCmd(args))
	return cmd
}

func tendermintBenchCmd(args *rootArgs) *cobra.Command {
	var (
		rpcURL        string
		initialHeight uint64
		totalBlocks   uint64
		keyPathSpecs  []string
	)

	cmd := &cobra.Command{
		Use:   "tendermint",
		Short: "Bench the proving time for BFT consensus and membership proofs",
		Long: `Proves a contiguous range of blocks starting from the height after
--initial-height, reports proving-time statistics, then proves membership of
the configured state keys at the last height and aggregates both proofs into
one Groth16 proof, which is verified before exiting.

Key paths are slash-separated: the store name followed by hex-encoded key
segments, e.g. "epoching/110000000000000001".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if totalBlocks < 3 {
				return fmt.Errorf("--total-blocks must be at least 3 to compute meaningful statistics, got %d", totalBlocks)
			}
			keyPaths, err := parseKeyPaths(keyPathSpecs)
			if err != nil {
				return err
			}

			logger := args.initLogger()
			ctx := cmd.Context()

			backend, err := prover.NewBackend(args.backendConfig(), prover.Programs())
			if err != nil {
				return err
			}
			source, err := prover.NewCometLightBlockSource(rpcURL)
			if err != nil {
				return err
			}
			chainID, err := source.ChainID(ctx)
			if err != nil {
				return err
			}

			store, err := prover.NewStore(args.resolveBasePath().ConsensusProofDir(chainID))
			if err != nil {
				return err
			}
			consensusProver := prover.NewTendermintProver(backend, store, source, initialHeight, logger)

			startHeight := initialHeight + 1
			endHeight := initialHeight + totalBlocks

			stats := &provingStats{}
			for height := startHeight; height <= endHeight; height++ {
				provingTime, err := consensusProver.Prove(ctx, height)
				if err != nil {
					return err
				}
				stats.push(height, provingTime)
			}
			stats.printSummary("BFT Consensus")

			querier, err := prover.NewCometStateQuerier(rpcURL)
			if err != nil {
				return err
			}
			membershipProver := prover.NewMembershipProver(backend, store, querier, logger)

			proof, provingTime, err := membershipProver.Prove(ctx, keyPaths, endHeight)
			if err != nil {
				return err
			}
			fmt.Printf("Proving time: %s\n", provingTime)

			// The aggregation verifying key lives in-process only for the
			// mock backend; external backends publish theirs out of band.
			if mock, ok := backend.(*prover.MockBackend); ok {
				ok, err := proof.Verify(mock.AggregationVerifyingKey())
				if err != nil {
					return fmt.Errorf("failed to verify the generated Groth16 proof: %w", err)
				}
				if !ok {
					return fmt.Errorf("generated Groth16 proof did not verify")
				}
				fmt.Println("Groth16 proof verified")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rpcURL, "rpc-url", "http://127.0.0.1:26657", "CometBFT RPC URL to fetch block data from")
	cmd.Flags().Uint64Var(&initialHeight, "initial-height", 1, "Trusted height to start from (exclusive); the first proven block is initial-height+1")
	cmd.Flags().Uint64Var(&totalBlocks, "total-blocks", 3, "Number of blocks to prove (at least 3)")
	cmd.Flags().StringSliceVar(&keyPathSpecs, "key", []string{defaultKeyPathSpec()}, "State key path to prove membership for, repeatable")

	return cmd
}

// parseKeyPaths decodes slash-separated key path specs. The first segment
// is the store name kept as raw bytes; the remaining segments are hex.
func parseKeyPaths(specs []string) ([][][]byte, error) {
	keyPaths := make([][][]byte, 0, len(specs))
	for _, spec := range specs {
		segments := strings.Split(spec, "/")
		if len(segments) < 2 {
			return nil, fmt.Errorf("invalid key path %q: want <store>/<hex-key>[/<hex-key>...]", spec)
		}
		keyPath := [][]byte{[]byte(segments[0])}
		for _, segment := range segments[1:] {
			key, err := hex.DecodeString(segment)
			if err != nil {
				return nil, fmt.Errorf("invalid key segment %q in %q: %w", segment, spec, err)
			}
			keyPath = append(keyPath, key)
		}
		keyPaths = append(keyPaths, keyPath)
	}
	return keyPaths, nil
}

// defaultKeyPathSpec points at the first epoch record of the epoching
// store, a key that exists on any height of an epoched chain.
func defaultKeyPathSpec() string {
	key := append([]byte{0x11}, 0, 0, 0, 0, 0, 0, 0, 1)
	return "epoching/" + hex.EncodeToString(key)
}
