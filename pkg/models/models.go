package models

// DownloadItem describes one image to fetch and validate. Identifier is the
// bare numeric id, without the "image:" prefix.
type DownloadItem struct {
	Identifier     string
	ExpectedHeight int
	ExpectedWidth  int
	SourceURL      string
}

// Outcome is the result of writing one item
type Outcome int

const (
	// Written means the image was fetched, validated and published
	Written Outcome = iota
	// Skipped means the final file already existed and nothing was fetched
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}
