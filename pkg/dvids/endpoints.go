package dvids

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSearchURL is the paged search endpoint
	DefaultSearchURL = "https://api.dvidshub.net/search"

	// DefaultAssetURL is the single-asset lookup endpoint
	DefaultAssetURL = "https://api.dvidshub.net/asset"

	// DefaultCDNURL is the base for full-size photo downloads
	DefaultCDNURL = "https://cdn.dvidshub.net/media/photos"

	// ShortDescriptionLength caps the description length in search results
	ShortDescriptionLength = 300
)

// Endpoints holds the base URLs the client talks to
type Endpoints struct {
	Search string
	Asset  string
	CDN    string
}

// DefaultEndpoints returns the production endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Search: DefaultSearchURL,
		Asset:  DefaultAssetURL,
		CDN:    DefaultCDNURL,
	}
}

// SearchURL builds the search query for images published in [from, to).
// Page 1 carries no page parameter.
func (e Endpoints) SearchURL(apiKey string, from, to time.Time, page int) string {
	params := url.Values{}
	params.Set("api_key", apiKey)
	params.Set("type", "image")
	params.Set("prettyprint", "0")
	params.Set("short_description_length", strconv.Itoa(ShortDescriptionLength))
	params.Set("from_publishdate", from.Format(time.RFC3339))
	params.Set("to_publishdate", to.Format(time.RFC3339))
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	return fmt.Sprintf("%s?%s", e.Search, params.Encode())
}

// AssetURL builds the single-asset lookup for a bare identifier
func (e Endpoints) AssetURL(apiKey, id string) string {
	params := url.Values{}
	params.Set("api_key", apiKey)
	params.Set("id", IDPrefix+id)

	return fmt.Sprintf("%s?%s", e.Asset, params.Encode())
}

// CDNURLFromThumbnail derives the full-size image URL from an API-hosted
// thumbnail URL: ".../<a>/<b>/<file>.jpg" becomes "<cdn>/<a>/<b>.jpg".
func (e Endpoints) CDNURLFromThumbnail(thumbnail string) (string, bool) {
	if !strings.HasSuffix(thumbnail, ".jpg") {
		return "", false
	}
	parts := strings.Split(thumbnail, "/")
	if len(parts) < 3 {
		return "", false
	}
	n := len(parts)
	return fmt.Sprintf("%s/%s/%s.jpg", strings.TrimSuffix(e.CDN, "/"), parts[n-3], parts[n-2]), true
}

// redactURL hides the API key so it never reaches logs or error messages
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
