package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id> <version>",
		Short: "Remove a package from the feed",
		Long:  "Delist or delete a package version, depending on the feed's delisting setting.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], args[1])
		},
	}

	return cmd
}

func runDelete(cmd *cobra.Command, id, version string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.RemovePackage(cmd.Context(), id, version); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Removed %s %s\n", id, version)
	return nil
}
