package cli

// Default values for CLI output formatting.
const (
	// MaxDescriptionLength is the maximum length of a package description
	// shown in list/search tables before truncation.
	MaxDescriptionLength = 40
	// TabWidth is the width of tabs in tabwriter-formatted output.
	TabWidth = 2
)
