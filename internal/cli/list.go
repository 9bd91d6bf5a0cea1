package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var maxCompat bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every package in the feed",
		Long:  "List every package record currently held in the feed's metadata cache.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, maxCompat)
		},
	}

	cmd.Flags().BoolVar(&maxCompat, "semver2", false, "include SemVer2-only packages")

	return cmd
}

func runList(cmd *cobra.Command, maxCompat bool) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	compatibility := catalog.CompatibilityDefault
	if maxCompat {
		compatibility = catalog.CompatibilityMax
	}

	packages, err := eng.GetPackages(cmd.Context(), compatibility)
	if err != nil {
		return fmt.Errorf("failed to list packages: %w", err)
	}

	if len(packages) == 0 {
		fmt.Println("No packages in the feed")
		return nil
	}

	printPackageTable(packages)
	return nil
}
