package quotation

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"github.com/xuri/excelize/v2"
)

const (
	// MatchCutoff is the lowest token-sort score accepted as a match.
	MatchCutoff = 60
	// MatchLimit bounds the candidates kept per searched column.
	MatchLimit = 10

	headerScanRows = 20
)

var ErrNoHeaderRow = errors.New("no header row found in price list")

// PriceEntry is one priced item of a price list.
type PriceEntry struct {
	Description string `json:"description"`
	Make        string `json:"make"`
	Code        string `json:"code"`
	Range       string `json:"range"`
	Rate        string `json:"rate"`
}

func (e PriceEntry) field(col string) string {
	switch col {
	case "description":
		return e.Description
	case "make":
		return e.Make
	case "code":
		return e.Code
	case "range":
		return e.Range
	case "rate":
		return e.Rate
	}
	return ""
}

// headerKeywords maps a lower-cased header cell fragment to a field. The
// first fragment found in a cell wins.
var headerKeywords = []struct {
	fragment string
	field    string
}{
	{"code", "code"},
	{"cat no", "code"},
	{"cat.", "code"},
	{"model", "code"},
	{"make", "make"},
	{"brand", "make"},
	{"range", "range"},
	{"size", "range"},
	{"rate", "rate"},
	{"price", "rate"},
	{"mrp", "rate"},
	{"amount", "rate"},
	{"description", "description"},
	{"particular", "description"},
	{"product", "description"},
	{"item", "description"},
}

// PriceList is a parsed price-list workbook.
type PriceList struct {
	Entries []PriceEntry
}

// LoadPriceList reads the first sheet of an xlsx workbook. The header row is
// the row among the first rows that names the most known columns; a rate
// column and a description or code column are required.
func LoadPriceList(data []byte) (*PriceList, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open price list: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeaderRow
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read price list rows: %w", err)
	}
	return priceListFromRows(rows)
}

func priceListFromRows(rows [][]string) (*PriceList, error) {
	headerIdx, cols := detectHeader(rows)
	if headerIdx < 0 {
		return nil, ErrNoHeaderRow
	}

	pl := &PriceList{}
	for _, row := range rows[headerIdx+1:] {
		get := func(field string) string {
			i, ok := cols[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		e := PriceEntry{
			Description: get("description"),
			Make:        get("make"),
			Code:        get("code"),
			Range:       get("range"),
			Rate:        get("rate"),
		}
		if e.Description == "" && e.Code == "" {
			continue
		}
		pl.Entries = append(pl.Entries, e)
	}
	return pl, nil
}

// detectHeader returns the header row index and a field to column map, or
// -1 when no row qualifies.
func detectHeader(rows [][]string) (int, map[string]int) {
	best, bestCols := -1, map[string]int(nil)
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		cols := map[string]int{}
		for j, cell := range rows[i] {
			c := strings.ToLower(strings.TrimSpace(cell))
			if c == "" {
				continue
			}
			for _, kw := range headerKeywords {
				if _, taken := cols[kw.field]; taken {
					continue
				}
				if strings.Contains(c, kw.fragment) {
					cols[kw.field] = j
					break
				}
			}
		}
		_, hasRate := cols["rate"]
		_, hasDesc := cols["description"]
		_, hasCode := cols["code"]
		if !hasRate || (!hasDesc && !hasCode) {
			continue
		}
		if len(cols) > len(bestCols) {
			best, bestCols = i, cols
		}
	}
	return best, bestCols
}

// Match is a price-list entry matched against a query.
type Match struct {
	Entry  PriceEntry `json:"entry"`
	Column string     `json:"column"`
	Value  string     `json:"value"`
	Score  float64    `json:"score"`
}

var searchColumns = []string{"description", "code", "make"}

// Search scores every distinct value of the searched columns against the
// query. Perfect matches win outright; otherwise matches are returned by
// score, highest first.
func (pl *PriceList) Search(query string, limit int, cutoff float64) []Match {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var perfect, results []Match
	for _, col := range searchColumns {
		scores := map[string]float64{}
		for _, e := range pl.Entries {
			v := e.field(col)
			if v == "" {
				continue
			}
			if _, seen := scores[v]; !seen {
				scores[v] = TokenSortRatio(query, v)
			}
		}

		values := make([]string, 0, len(scores))
		for v, s := range scores {
			if s >= cutoff {
				values = append(values, v)
			}
		}
		sort.SliceStable(values, func(i, j int) bool {
			if scores[values[i]] != scores[values[j]] {
				return scores[values[i]] > scores[values[j]]
			}
			return values[i] < values[j]
		})
		if len(values) > limit {
			values = values[:limit]
		}

		for _, v := range values {
			for _, e := range pl.Entries {
				if e.field(col) != v {
					continue
				}
				m := Match{Entry: e, Column: col, Value: v, Score: scores[v]}
				if m.Score == 100 {
					perfect = append(perfect, m)
				} else {
					results = append(results, m)
				}
			}
		}
	}

	if len(perfect) > 0 {
		return truncate(perfect, limit)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return truncate(results, limit)
}

func truncate(m []Match, n int) []Match {
	if len(m) > n {
		return m[:n]
	}
	return m
}

// FillRates sets the rate of every row that has none from its best
// price-list match. Make and code are filled when blank. It returns the
// number of rows changed.
func (pl *PriceList) FillRates(t *Table) int {
	filled := 0
	for i := range t.Rows {
		r := &t.Rows[i]
		if strings.TrimSpace(r.Rate) != "" {
			continue
		}
		query := strings.TrimSpace(r.Code)
		if query == "" {
			query = strings.TrimSpace(r.Description)
		}
		matches := pl.Search(query, MatchLimit, MatchCutoff)
		if len(matches) == 0 || matches[0].Entry.Rate == "" {
			continue
		}
		best := matches[0].Entry
		r.Rate = best.Rate
		if r.Make == "" {
			r.Make = best.Make
		}
		if r.Code == "" {
			r.Code = best.Code
		}
		filled++
	}
	return filled
}

// TokenSortRatio scores two strings from 0 to 100 after lower-casing,
// dropping punctuation and sorting their whitespace separated tokens. The
// score is the normalized Indel similarity 2*LCS/(len(a)+len(b)).
func TokenSortRatio(a, b string) float64 {
	sa, sb := sortTokens(a), sortTokens(b)
	total := utf8.RuneCountInString(sa) + utf8.RuneCountInString(sb)
	if total == 0 {
		return 0
	}
	return 100 * float64(2*edlib.LCS(sa, sb)) / float64(total)
}

func sortTokens(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	tokens := strings.Fields(cleaned)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
