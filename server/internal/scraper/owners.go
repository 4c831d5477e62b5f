package scraper

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ownerwatch/ownerwatch/pkg/types"
)

// RowSelector matches the first result row of the filter table. The
// container has been served both as an id and as a class.
const RowSelector = "#tableScrollContainer tr#row1, .tableScrollContainer tr#row1"

// rowCells is the exact number of cells in a result row.
const rowCells = 7

var (
	// ErrRowNotFound means the filter returned no usable first row.
	ErrRowNotFound = errors.New("scraper: row not found")

	// ErrMalformedCell is matched by *MalformedCellError.
	ErrMalformedCell = errors.New("scraper: malformed cell")
)

// columns names the cells of a result row, in order.
var columns = [rowCells]string{"sector", "owners", "1d", "1w", "1m", "3m", "ytd"}

// MalformedCellError reports a numeric cell that could not be parsed.
type MalformedCellError struct {
	Column string
	Value  string
	Err    error
}

func (e *MalformedCellError) Error() string {
	return fmt.Sprintf("scraper: malformed %s cell %q: %v", e.Column, e.Value, e.Err)
}

func (e *MalformedCellError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedCell.
func (e *MalformedCellError) Is(target error) bool { return target == ErrMalformedCell }

// Row is one parsed result row.
type Row struct {
	Sector         string
	NumberOfOwners int
	Changes        types.OwnerChanges
}

// ParseRow parses the advanced-filter HTML in r.
func ParseRow(r io.Reader) (*Row, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("scraper: parse html: %w", err)
	}

	row := doc.Find(RowSelector).First()
	if row.Length() == 0 {
		return nil, ErrRowNotFound
	}

	cells := row.ChildrenFiltered("td, th")
	if n := cells.Length(); n != rowCells {
		return nil, fmt.Errorf("%w: row has %d cells, want %d", ErrRowNotFound, n, rowCells)
	}
	texts := cells.Map(func(_ int, s *goquery.Selection) string {
		return strings.TrimSpace(s.Text())
	})
	return parseCells(texts)
}

// parseCells converts the seven cell texts of a row.
func parseCells(cells []string) (*Row, error) {
	if len(cells) != rowCells {
		return nil, fmt.Errorf("%w: row has %d cells, want %d", ErrRowNotFound, len(cells), rowCells)
	}

	var nums [rowCells - 1]int
	for i := 1; i < rowCells; i++ {
		n, err := ParseCount(cells[i])
		if err != nil {
			return nil, &MalformedCellError{Column: columns[i], Value: cells[i], Err: err}
		}
		nums[i-1] = n
	}
	if nums[0] < 0 {
		return nil, &MalformedCellError{
			Column: columns[1],
			Value:  cells[1],
			Err:    errors.New("negative owner count"),
		}
	}

	return &Row{
		Sector:         cells[0],
		NumberOfOwners: nums[0],
		Changes: types.OwnerChanges{
			OneDay:      nums[1],
			OneWeek:     nums[2],
			OneMonth:    nums[3],
			ThreeMonths: nums[4],
			YearToDate:  nums[5],
		},
	}, nil
}

var separators = strings.NewReplacer("\u00a0", "", " ", "")

// ParseCount parses a signed integer cell such as "9 432", "9\u00a0432" or "-45".
func ParseCount(s string) (int, error) {
	return strconv.Atoi(separators.Replace(strings.TrimSpace(s)))
}
