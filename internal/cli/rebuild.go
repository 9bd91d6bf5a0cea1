package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRebuildCmd creates the rebuild command.
func NewRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Force a full metadata cache rebuild",
		Long:  "Walk the feed's on-disk layout and rebuild the metadata cache from scratch, then ingest any loose drop-folder archives.",
		RunE:  runRebuild,
	}

	return cmd
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Println("Rebuild complete")
	return nil
}
