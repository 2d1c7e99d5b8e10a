package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dot5enko/volume-block-index/manager"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	warnColor    = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	errColor     = color.New(color.FgRed, color.Bold)
)

// cliT holds the flags shared by every command.
type cliT struct {
	Root *cobra.Command

	verbose     bool
	storage     string
	workers     int
	bufferMb    int
	bufferCount int
	cpuBlocks   int
	gpuBlocks   int
}

func newCLI() *cliT {
	c := &cliT{}

	c.Root = &cobra.Command{
		Use:           "volidx [command] (flags)",
		Short:         "volume block index builder and block cache tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := c.Root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&c.storage, "storage", "", "folder for index files (default: next to the raw volume)")
	pf.IntVarP(&c.workers, "workers", "w", 0, "reduction workers (default: GOMAXPROCS)")
	pf.IntVar(&c.bufferMb, "buffer-mb", manager.DefaultBufferPoolBytes>>20, "stream buffer pool size in MiB")
	pf.IntVar(&c.bufferCount, "buffers", manager.DefaultBufferCount, "number of stream buffers")
	pf.IntVar(&c.cpuBlocks, "cpu-blocks", manager.DefaultCPUCacheBlocks, "cpu resident block capacity")
	pf.IntVar(&c.gpuBlocks, "gpu-blocks", manager.DefaultGPUCacheBlocks, "gpu resident block capacity")

	cobra.EnableCommandSorting = false
	c.Root.AddCommand(
		c.newBuildCmd(),
		c.newInspectCmd(),
		c.newDumpJSONCmd(),
		c.newCompressCmd(),
		c.newSelectCmd(),
		c.newGenCmd(),
		c.newCacheSimCmd(),
	)

	return c
}

func (c *cliT) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (c *cliT) config(cmd *cobra.Command) manager.Config {
	return manager.Config{
		PathToStorage:   c.storage,
		BufferPoolBytes: c.bufferMb << 20,
		BufferCount:     c.bufferCount,
		Workers:         c.workers,
		CPUCacheBlocks:  c.cpuBlocks,
		GPUCacheBlocks:  c.gpuBlocks,
		Logger:          c.logger(cmd.OutOrStderr()),
	}
}

func main() {
	cli := newCLI()

	if err := cli.Root.Execute(); err != nil {
		errColor.Fprintf(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
