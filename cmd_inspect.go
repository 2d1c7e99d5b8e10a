package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/dot5enko/volume-block-index/compression"
	"github.com/dot5enko/volume-block-index/manager"
	"github.com/dot5enko/volume-block-index/manager/meta"
	"github.com/dot5enko/volume-block-index/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (c *cliT) loadIndex(cmd *cobra.Command, path string) (*meta.IndexFile, error) {
	m := manager.New(c.config(cmd))

	index, err := m.LoadIndex(path)
	if err != nil {
		return nil, err
	}
	if index.Stale {
		warnColor.Fprintf(cmd.OutOrStderr(), "warning: %s was written by format version %d, regenerate it\n", path, index.Header.Version)
	}
	return index, nil
}

func (c *cliT) newInspectCmd() *cobra.Command {
	var raw, blocks, layout bool
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect <index>",
		Short: "print the header and block table of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := c.loadIndex(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				spew.Fdump(out, index.Header)
			} else {
				writeHeaderTable(out, index)
			}
			if blocks {
				writeBlockTable(out, index, limit)
			}
			if layout {
				return writeLayoutTable(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&layout, "layout", false, "check the in-memory layout of the index records")
	cmd.Flags().BoolVar(&raw, "raw", false, "dump the decoded header struct")
	cmd.Flags().BoolVar(&blocks, "blocks", false, "print the block table")
	cmd.Flags().IntVar(&limit, "limit", 64, "max blocks to print, 0 prints all")

	return cmd
}

func writeLayoutTable(w io.Writer) error {
	records := []struct {
		v       any
		encoded int
	}{
		{schema.IndexFileHeader{}, schema.IndexHeaderSize},
		{schema.FileBlock{}, schema.FileBlockSize},
	}

	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Record", "Fields", "Memory", "Optimal", "Encoded", "Padding"})

	var mismatch error
	for _, r := range records {
		layout, err := compression.CheckRecordLayout(r.v, r.encoded)
		if err != nil && mismatch == nil {
			mismatch = err
		}
		tbl.Append([]string{
			layout.Name,
			strconv.Itoa(len(layout.Fields)),
			strconv.FormatUint(uint64(layout.Size), 10),
			strconv.FormatUint(uint64(layout.OptimalSize), 10),
			strconv.Itoa(r.encoded),
			strconv.FormatUint(uint64(layout.Padding()), 10),
		})
	}
	tbl.Render()

	return mismatch
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func writeHeaderTable(w io.Writer, index *meta.IndexFile) {
	h := index.Header

	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Field", "Value"})
	tbl.SetAlignment(tablewriter.ALIGN_LEFT)

	tbl.AppendBulk([][]string{
		{"version", fmt.Sprintf("%d (stale: %t)", h.Version, index.Stale)},
		{"uid", h.Uid.String()},
		{"data type", h.DataType.String()},
		{"dims", h.Dims.String()},
		{"num blocks", h.NumBlocks.String()},
		{"block dims", h.BlockDims.String()},
		{"min", formatFloat(h.Min)},
		{"max", formatFloat(h.Max)},
		{"avg", formatFloat(h.Avg)},
		{"total", formatFloat(h.Total)},
		{"empty voxels", strconv.FormatUint(h.EmptyVoxels, 10)},
		{"empty blocks", fmt.Sprintf("%d of %d", index.EmptyBlocks(), len(index.Blocks))},
		{"checksum", fmt.Sprintf("0x%016x", h.BlocksChecksum)},
	})

	tbl.Render()
}

func writeBlockTable(w io.Writer, index *meta.IndexFile, limit int) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Block", "IJK", "Offset", "Voxels", "Min", "Max", "Avg", "Empty voxels", "Empty"})

	for i := range index.Blocks {
		if limit > 0 && i >= limit {
			break
		}
		b := &index.Blocks[i]
		tbl.Append([]string{
			strconv.FormatUint(b.Index, 10),
			fmt.Sprintf("%d,%d,%d", b.IJK.X, b.IJK.Y, b.IJK.Z),
			strconv.FormatUint(b.DataOffset, 10),
			b.VoxelDims.String(),
			formatFloat(b.Min),
			formatFloat(b.Max),
			formatFloat(b.Avg),
			strconv.FormatUint(b.EmptyVoxels, 10),
			strconv.FormatBool(b.IsEmpty()),
		})
	}

	tbl.Render()

	if limit > 0 && len(index.Blocks) > limit {
		fmt.Fprintf(w, "... %d more blocks\n", len(index.Blocks)-limit)
	}
}

func (c *cliT) newDumpJSONCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "dump-json <index>",
		Short: "write a human readable JSON dump of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := c.loadIndex(cmd, args[0])
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return index.WriteASCIIIndexFile(cmd.OutOrStdout())
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			writeErr := index.WriteASCIIIndexFile(f)
			if closeErr := f.Close(); writeErr == nil {
				writeErr = closeErr
			}
			return writeErr
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, stdout by default")

	return cmd
}

func (c *cliT) newCompressCmd() *cobra.Command {
	var out string
	var decompress bool

	cmd := &cobra.Command{
		Use:   "compress <index>",
		Short: "rewrite an index inside an lz4 frame, or back with --decompress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := c.loadIndex(cmd, args[0])
			if err != nil {
				return err
			}

			target := out
			if target == "" {
				target = args[0]
			}
			if err := index.Save(target, !decompress); err != nil {
				return err
			}

			before, _ := os.Stat(args[0])
			after, err := os.Stat(target)
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("%s written, %d bytes", filepath.Base(target), after.Size())
			if before != nil && target != args[0] {
				msg += fmt.Sprintf(" (source %d bytes)", before.Size())
			}
			successColor.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, rewrites in place by default")
	cmd.Flags().BoolVar(&decompress, "decompress", false, "write the plain binary layout")

	return cmd
}
