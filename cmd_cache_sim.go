package main

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/dot5enko/volume-block-index/manager"
	"github.com/dot5enko/volume-block-index/manager/cache"
	"github.com/dot5enko/volume-block-index/manager/query"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// countingUploader stands in for the renderer and only tallies payloads.
type countingUploader struct {
	uploads  int
	bytes    int
	released int
}

func (u *countingUploader) Upload(block *cache.ResidentBlock) error {
	u.uploads++
	u.bytes += len(block.Data)
	return nil
}

func (u *countingUploader) Release(uint64) {
	u.released++
}

func (c *cliT) newCacheSimCmd() *cobra.Command {
	var requests int
	var visibleFraction float64
	var useMmap bool
	var seed int64
	var where []string

	cmd := &cobra.Command{
		Use:   "cache-sim <index> <raw-volume>",
		Short: "replay random block requests against the block cache",
		Long: `
Mark a random fraction of the non-empty blocks visible, then request
random non-empty blocks and report how the cpu and gpu resident sets
behaved. With --where only blocks selected by the conditions are
requested, as a renderer would for an iso surface.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseConditions(where)
			if err != nil {
				return err
			}

			m := manager.New(c.config(cmd))

			index, err := m.LoadIndex(args[0])
			if err != nil {
				return err
			}

			uploader := &countingUploader{}
			vc, err := m.OpenCache(index, args[1], useMmap, uploader)
			if err != nil {
				return err
			}
			defer vc.Close()

			sel, err := m.SelectBlocks(index, query.Query{Filter: filter})
			if err != nil {
				return err
			}
			candidates := sel.Blocks
			if len(candidates) == 0 {
				warnColor.Fprintln(cmd.OutOrStderr(), "no block is selected, nothing to request")
				return nil
			}

			rng := rand.New(rand.NewSource(seed))
			for _, idx := range candidates {
				vc.SetVisible(idx, rng.Float64() < visibleFraction)
			}

			outcomes := map[cache.Outcome]int{}
			for i := 0; i < requests; i++ {
				idx := candidates[rng.Intn(len(candidates))]
				outcome, err := vc.Process(idx)
				if err != nil {
					return err
				}
				outcomes[outcome]++
			}

			stats := vc.Stats()
			tbl := tablewriter.NewWriter(cmd.OutOrStdout())
			tbl.SetHeader([]string{"Counter", "Value"})
			tbl.AppendBulk([][]string{
				{"requests", strconv.FormatUint(stats.Requests, 10)},
				{"gpu hits", strconv.FormatUint(stats.GPUHits, 10)},
				{"cpu hits", strconv.FormatUint(stats.CPUHits, 10)},
				{"cpu loads", strconv.FormatUint(stats.CPULoads, 10)},
				{"gpu uploads", strconv.FormatUint(stats.GPUUploads, 10)},
				{"cpu evictions", strconv.FormatUint(stats.CPUEvicted, 10)},
				{"gpu evictions", strconv.FormatUint(stats.GPUEvicted, 10)},
				{"cpu skips", strconv.FormatUint(stats.CPUSkipped, 10)},
				{"gpu skips", strconv.FormatUint(stats.GPUSkipped, 10)},
				{"bytes loaded", strconv.FormatUint(stats.BytesLoaded, 10)},
				{"bytes uploaded", strconv.Itoa(uploader.bytes)},
			})
			tbl.Render()

			skipped := outcomes[cache.OutcomeSkippedCPU] + outcomes[cache.OutcomeSkippedGPU]
			if skipped > 0 {
				warnColor.Fprintf(cmd.OutOrStdout(), "%d requests skipped, every resident block was visible\n", skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cpu resident: %d, gpu resident: %d\n", len(vc.CPUBlocks()), len(vc.GPUBlocks()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&requests, "requests", "n", 1000, "number of requests")
	cmd.Flags().Float64Var(&visibleFraction, "visible", 0.25, "fraction of blocks marked visible")
	cmd.Flags().BoolVar(&useMmap, "mmap", false, "read payloads from a memory mapping")
	cmd.Flags().Int64Var(&seed, "seed", 1, "request seed")
	cmd.Flags().StringArrayVar(&where, "where", nil, "only request blocks matching this condition, repeatable")

	return cmd
}
