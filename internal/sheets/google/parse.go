package google

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"budgetbot/internal/core"
)

// cellString renders a cell from an UNFORMATTED_VALUE response. Whole
// numbers come back as float64 and must not turn into "1.2e+06".
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

// toCells converts a ledger row for a RAW write. Whole numbers without a
// leading zero are sent as numbers so sheet formulas can sum them.
func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, s := range row {
		if n, ok := wholeNumber(s); ok {
			out[i] = n
			continue
		}
		out[i] = s
	}
	return out
}

func wholeNumber(s string) (int64, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func safeInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err == nil && !math.IsNaN(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return 0
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseCategories reads name, limit, owner rows after the header.
func parseCategories(values [][]any) []core.Category {
	var out []core.Category
	seen := map[string]bool{}
	for i, v := range values {
		if i == 0 {
			continue
		}
		row := toStrings(v)
		name := safeGet(row, 0)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, core.Category{
			Name:  name,
			Limit: safeInt(safeGet(row, 1)),
			Owner: safeGet(row, 2),
		})
	}
	return out
}

// parsePersons reads identity, name, limit rows after the header. Rows
// without a numeric identity still contribute a name and limit.
func parsePersons(values [][]any) []core.Person {
	var out []core.Person
	for i, v := range values {
		if i == 0 {
			continue
		}
		row := toStrings(v)
		name := safeGet(row, 1)
		id, err := strconv.ParseInt(safeGet(row, 0), 10, 64)
		if err != nil {
			id = 0
		}
		if name == "" && id == 0 {
			continue
		}
		out = append(out, core.Person{Identity: id, Name: name, Limit: safeInt(safeGet(row, 2))})
	}
	return out
}

// parseContributions reads a header-driven table: name, total, then one
// column per category named by the header.
func parseContributions(values [][]any) (map[string]map[string]int64, map[string]int64) {
	byCat := map[string]map[string]int64{}
	totals := map[string]int64{}
	if len(values) == 0 {
		return byCat, totals
	}
	header := toStrings(values[0])
	for _, v := range values[1:] {
		row := toStrings(v)
		name := safeGet(row, 0)
		if name == "" {
			continue
		}
		totals[name] = safeInt(safeGet(row, 1))
		cats := map[string]int64{}
		for j := 2; j < len(header); j++ {
			if header[j] == "" {
				continue
			}
			cats[header[j]] = safeInt(safeGet(row, j))
		}
		byCat[name] = cats
	}
	return byCat, totals
}

// findRow returns the 1-based sheet row whose first cell equals key, 0 if none.
func findRow(values [][]any, key string) int {
	for i, v := range values {
		if len(v) > 0 && cellString(v[0]) == key {
			return i + 1
		}
	}
	return 0
}

func decodeToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("decode oauth token: no access or refresh token")
	}
	return &tok, nil
}
