package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dot5enko/volume-block-index/manager"
	"github.com/dot5enko/volume-block-index/ops"
	"github.com/dot5enko/volume-block-index/schema"
	"github.com/spf13/cobra"
)

type buildFlags struct {
	dims      string
	blocks    string
	dataType  string
	out       string
	ascii     bool
	compress  bool
	nonZero   bool
	relevance []float64
	filter    []float64
}

func (c *cliT) newBuildCmd() *cobra.Command {
	f := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build <raw-volume>",
		Short: "stream a raw volume and write its block index",
		Long: `
Read the raw volume once, compute volume and per-block statistics and
write the binary index. Voxels failing the relevance test are counted as
empty voxels of their block. With --filter tmin,tmax blocks whose average
falls outside the range are flagged empty.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.dims, "dims", "", "voxel extent x,y,z")
	fl.StringVar(&f.blocks, "blocks", "", "block count x,y,z")
	fl.StringVarP(&f.dataType, "type", "t", "uint8", "voxel data type")
	fl.StringVarP(&f.out, "out", "o", "", "index path (default: derived from the raw volume)")
	fl.BoolVar(&f.ascii, "ascii", false, "also write a JSON dump")
	fl.BoolVar(&f.compress, "compress", false, "wrap the index in an lz4 frame")
	fl.BoolVar(&f.nonZero, "nonzero", false, "treat zero voxels as irrelevant")
	fl.Float64SliceVar(&f.relevance, "relevant", nil, "relevant value range min,max")
	fl.Float64SliceVar(&f.filter, "filter", nil, "flag blocks whose avg is outside tmin,tmax as empty")
	cmd.MarkFlagRequired("dims")
	cmd.MarkFlagRequired("blocks")

	return cmd
}

func parseRange(name string, v []float64) (lo, hi float64, err error) {
	if len(v) != 2 {
		return 0, 0, fmt.Errorf("--%s expects two values, got %d", name, len(v))
	}
	if v[0] > v[1] {
		return 0, 0, fmt.Errorf("--%s: %g > %g", name, v[0], v[1])
	}
	return v[0], v[1], nil
}

func (c *cliT) runBuild(cmd *cobra.Command, rawPath string, f *buildFlags) error {

	dims, err := schema.ParseVec3(f.dims)
	if err != nil {
		return fmt.Errorf("--dims: %w", err)
	}
	numBlocks, err := schema.ParseVec3(f.blocks)
	if err != nil {
		return fmt.Errorf("--blocks: %w", err)
	}
	typ, err := schema.ParseDataType(f.dataType)
	if err != nil {
		return err
	}

	var relevance ops.Relevance
	switch {
	case len(f.relevance) > 0:
		lo, hi, err := parseRange("relevant", f.relevance)
		if err != nil {
			return err
		}
		relevance = ops.ValueRange{Min: lo, Max: hi}
	case f.nonZero:
		relevance = ops.NonZero{}
	}

	cfg := c.config(cmd)
	cfg.CompressIndex = f.compress
	m := manager.New(cfg)

	req := manager.BuildRequest{
		RawPath:    rawPath,
		Dims:       dims,
		NumBlocks:  numBlocks,
		DataType:   typ,
		Relevance:  relevance,
		OutputPath: f.out,
		WriteASCII: f.ascii,
	}
	if len(f.filter) > 0 {
		lo, hi, err := parseRange("filter", f.filter)
		if err != nil {
			return err
		}
		req.Filter, req.FilterMin, req.FilterMax = true, lo, hi
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := m.BuildIndex(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	successColor.Fprintf(out, "index written to %s\n", result.Path)
	fmt.Fprintf(out, "uid %s, %d blocks, %d empty, %d bytes read\n",
		result.Index.Header.Uid, len(result.Index.Blocks), result.EmptyCount, result.BytesRead)
	if result.ASCIIPath != "" {
		fmt.Fprintf(out, "json dump written to %s\n", result.ASCIIPath)
	}

	declared := dims.Product() * uint64(typ.Size())
	if result.BytesRead != declared {
		warnColor.Fprintf(cmd.OutOrStderr(), "warning: read %d bytes, dimensions declare %d\n", result.BytesRead, declared)
	}

	return nil
}
