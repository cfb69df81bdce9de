package dvids

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IDPrefix tags image identifiers in API responses and metadata rows
const IDPrefix = "image:"

// PageInfo describes the paging state of one search response
type PageInfo struct {
	TotalResults   int `json:"total_results"`
	ResultsPerPage int `json:"results_per_page"`
}

// SearchPage is one page of search results
type SearchPage struct {
	PageInfo PageInfo `json:"page_info"`
	Results  []Result `json:"results"`
}

// Result is a single image record returned by the search endpoint. Optional
// fields are pointers so that an absent value is distinguishable from an
// empty one.
type Result struct {
	ID               string   `json:"id"`
	AspectRatio      string   `json:"aspect_ratio"`
	Branch           string   `json:"branch"`
	Credit           *string  `json:"credit,omitempty"`
	Category         *string  `json:"category,omitempty"`
	City             string   `json:"city"`
	Country          *string  `json:"country,omitempty"`
	Keywords         *string  `json:"keywords,omitempty"`
	Date             string   `json:"date"`
	DatePublished    string   `json:"date_published"`
	Height           int      `json:"height"`
	Rating           *float64 `json:"rating,omitempty"`
	ShortDescription string   `json:"short_description"`
	State            *string  `json:"state,omitempty"`
	ThumbHeight      *int     `json:"thumb_height,omitempty"`
	ThumbWidth       *int     `json:"thumb_width,omitempty"`
	Thumbnail        *string  `json:"thumbnail,omitempty"`
	Timestamp        string   `json:"timestamp"`
	Title            string   `json:"title"`
	Type             string   `json:"type"`
	UnitName         string   `json:"unit_name"`
	URL              string   `json:"url"`
	Width            int      `json:"width"`
	// Deprecated by the API, kept while it is still served
	PublishDate *string `json:"publishdate,omitempty"`
}

// Asset is the single-asset lookup result
type Asset struct {
	Image      string     `json:"image"`
	Dimensions Dimensions `json:"dimensions"`
}

// Dimensions as declared by the asset endpoint
type Dimensions struct {
	Height FlexInt `json:"height"`
	Width  FlexInt `json:"width"`
}

type assetResponse struct {
	Results Asset `json:"results"`
}

// FlexInt decodes an integer that the API may send either as a JSON number
// or as a quoted string. Decimal values are truncated.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := ParseDimension(s)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*f = FlexInt(n)
	return nil
}

// ParseDimension parses an integer dimension, accepting and truncating a
// decimal representation such as "1920.0"
func ParseDimension(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// ParseImageID strips IDPrefix from raw, reporting whether it was present
func ParseImageID(raw string) (string, bool) {
	if !strings.HasPrefix(raw, IDPrefix) {
		return "", false
	}
	return strings.TrimPrefix(raw, IDPrefix), true
}

// ValidImageID reports whether id is a non-empty run of ASCII digits
func ValidImageID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

func decodeAsset(data []byte) (*Asset, error) {
	var resp assetResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp.Results, nil
}
