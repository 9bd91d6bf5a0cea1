package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/pkgfeed/internal/cli"
)

var (
	configPath   string
	root         string
	verbose      bool
	noColor      bool
	outputFormat string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkgfeed",
		Short: "A self-hosted package feed server",
		Long: `pkgfeed serves a local directory tree of package archives as a
searchable, pushable feed: CLI commands to push, delete, list, search and
rebuild, plus an HTTP surface served by "serve".`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: built-in defaults)")
	cmd.PersistentFlags().StringVar(&root, "root", "", "feed root directory (default: current directory)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format (accepted but not read by any command; output is plain text)")

	cli.ConfigPath = &configPath
	cli.Root = &root
	cli.Verbose = &verbose
	cli.NoColor = &noColor
	cli.OutputFormat = &outputFormat

	cmd.AddCommand(
		cli.NewServeCmd(),
		cli.NewPushCmd(),
		cli.NewDeleteCmd(),
		cli.NewListCmd(),
		cli.NewSearchCmd(),
		cli.NewRebuildCmd(),
		cli.NewCacheCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
