package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"dvidsharvest/pkg/dvids"
)

// Column positions of a metadata row
const (
	ColID               = 0
	ColAspectRatio      = 1
	ColBranch           = 2
	ColCredit           = 3
	ColCategory         = 4
	ColCity             = 5
	ColCountry          = 6
	ColKeywords         = 7
	ColDate             = 8
	ColDatePublished    = 9
	ColHeight           = 10
	ColRating           = 11
	ColShortDescription = 12
	ColState            = 13
	ColThumbHeight      = 14
	ColThumbWidth       = 15
	ColThumbnail        = 16
	ColTimestamp        = 17
	ColTitle            = 18
	ColUnitName         = 19
	ColURL              = 20
	ColWidth            = 21

	NumColumns = 22
)

// ToRecord lays a search result out as a metadata row. Absent optional
// fields become empty cells.
func ToRecord(r dvids.Result) []string {
	rec := make([]string, NumColumns)
	rec[ColID] = r.ID
	rec[ColAspectRatio] = r.AspectRatio
	rec[ColBranch] = r.Branch
	rec[ColCredit] = optString(r.Credit)
	rec[ColCategory] = optString(r.Category)
	rec[ColCity] = r.City
	rec[ColCountry] = optString(r.Country)
	rec[ColKeywords] = optString(r.Keywords)
	rec[ColDate] = r.Date
	rec[ColDatePublished] = r.DatePublished
	rec[ColHeight] = strconv.Itoa(r.Height)
	if r.Rating != nil {
		rec[ColRating] = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
	}
	rec[ColShortDescription] = r.ShortDescription
	rec[ColState] = optString(r.State)
	rec[ColThumbHeight] = optInt(r.ThumbHeight)
	rec[ColThumbWidth] = optInt(r.ThumbWidth)
	rec[ColThumbnail] = optString(r.Thumbnail)
	rec[ColTimestamp] = r.Timestamp
	rec[ColTitle] = r.Title
	rec[ColUnitName] = r.UnitName
	rec[ColURL] = r.URL
	rec[ColWidth] = strconv.Itoa(r.Width)
	return rec
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// Writer appends metadata rows as CSV
type Writer struct {
	csv   *csv.Writer
	count int
}

// NewWriter wraps w
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteResults appends one row per result, in order
func (w *Writer) WriteResults(results []dvids.Result) error {
	for _, r := range results {
		if err := w.WriteRecord(ToRecord(r)); err != nil {
			return fmt.Errorf("failed to write result %s: %w", r.ID, err)
		}
	}
	return nil
}

// WriteRecord appends a raw row unchanged
func (w *Writer) WriteRecord(rec []string) error {
	if err := w.csv.Write(rec); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of rows written so far
func (w *Writer) Count() int {
	return w.count
}

// Flush writes buffered rows and reports any write error
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// Reader reads metadata rows. Rows may have any number of columns; shape is
// checked by the consumer.
type Reader struct {
	csv  *csv.Reader
	line int
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &Reader{csv: cr}
}

// Next returns the next row, or io.EOF after the last one
func (r *Reader) Next() ([]string, error) {
	rec, err := r.csv.Read()
	if err != nil {
		return nil, err
	}
	r.line++
	return rec, nil
}

// Line returns the 1-based number of the row last returned by Next
func (r *Reader) Line() int {
	return r.line
}
