package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	var (
		allowPrerelease bool
		allowUnlisted   bool
	)

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search the feed for packages",
		Long: `Search the feed for packages whose id, tags, description, or authors
match every whitespace-separated word in term.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], allowPrerelease, allowUnlisted)
		},
	}

	cmd.Flags().BoolVar(&allowPrerelease, "prerelease", false, "include prerelease versions")
	cmd.Flags().BoolVar(&allowUnlisted, "unlisted", false, "include unlisted (delisted) packages")

	return cmd
}

func runSearch(cmd *cobra.Command, term string, allowPrerelease, allowUnlisted bool) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	results, err := eng.Search(cmd.Context(), term, nil, allowPrerelease, allowUnlisted, catalog.CompatibilityDefault)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No packages found matching %q\n", term)
		return nil
	}

	printPackageTable(results)
	fmt.Printf("\nFound %d package(s) matching %q\n", len(results), term)
	return nil
}

func printPackageTable(packages []*catalog.Package) {
	fmt.Printf("%-30s %-15s %-10s %s\n", "ID", "VERSION", "LISTED", "DESCRIPTION")
	fmt.Println(strings.Repeat("-", 90))
	for _, p := range packages {
		description := p.Description
		if len(description) > MaxDescriptionLength {
			description = description[:MaxDescriptionLength-3] + "..."
		}
		listed := "yes"
		if !p.Listed {
			listed = "no"
		}
		fmt.Printf("%-30s %-15s %-10s %s\n", p.ID, p.Version, listed, description)
	}
}
