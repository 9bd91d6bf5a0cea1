package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the feed's metadata cache",
	}

	cmd.AddCommand(newCacheInfoCmd())

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		Long:  "Display the metadata cache's location, size, and package count.",
		RunE:  runCacheInfo,
	}

	return cmd
}

func runCacheInfo(*cobra.Command, []string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	info, err := eng.CacheInfo()
	if err != nil {
		return fmt.Errorf("failed to read cache info: %w", err)
	}

	fmt.Printf("Feed Root: %s\n", info.Root)
	fmt.Printf("Cache File: %s\n", info.CacheFileName)
	fmt.Printf("Cache Size: %d bytes\n", info.CacheFileSize)
	fmt.Printf("Packages: %d\n", info.PackageCount)

	return nil
}
