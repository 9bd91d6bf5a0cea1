package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewPushCmd creates the push command.
func NewPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <archive>",
		Short: "Push a package archive into the feed",
		Long:  "Ingest an archive file, validating its manifest and storing it under the feed's canonical layout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, args[0])
		},
	}

	return cmd
}

func runPush(cmd *cobra.Command, archivePath string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", archivePath, err)
	}
	defer func() { _ = f.Close() }()

	record, err := eng.AddPackage(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	fmt.Printf("Pushed %s %s\n", record.ID, record.Version)
	return nil
}
