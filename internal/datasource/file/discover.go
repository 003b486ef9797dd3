package file

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Period is the year and month a trip file covers, as encoded in its name.
type Period struct {
	Year  int
	Month int
}

// periodPattern matches the YYYY-MM stamp of names such as
// yellow_tripdata_2023-01.parquet.
var periodPattern = regexp.MustCompile(`(\d{4})-(\d{2})`)

// ParsePeriod extracts the period from a file name. The last YYYY-MM stamp
// wins; months outside 1..12 are not periods.
func ParsePeriod(name string) (Period, bool) {
	m := periodPattern.FindAllStringSubmatch(filepath.Base(name), -1)
	if len(m) == 0 {
		return Period{}, false
	}
	last := m[len(m)-1]
	y, _ := strconv.Atoi(last[1])
	mo, _ := strconv.Atoi(last[2])
	if mo < 1 || mo > 12 {
		return Period{}, false
	}
	return Period{Year: y, Month: mo}, true
}

// Selector narrows discovery to one year and/or month. Zero fields match any
// value.
type Selector struct {
	Year  int
	Month int
}

// IsZero reports whether s selects every file.
func (s Selector) IsZero() bool { return s.Year == 0 && s.Month == 0 }

// Match reports whether p satisfies s.
func (s Selector) Match(p Period) bool {
	return (s.Year == 0 || s.Year == p.Year) && (s.Month == 0 || s.Month == p.Month)
}

// Label renders s as an artifact period: YYYY-MM, YYYY, month-MM or all.
func (s Selector) Label() string {
	switch {
	case s.Year != 0 && s.Month != 0:
		return fmt.Sprintf("%04d-%02d", s.Year, s.Month)
	case s.Year != 0:
		return fmt.Sprintf("%04d", s.Year)
	case s.Month != 0:
		return fmt.Sprintf("month-%02d", s.Month)
	default:
		return "all"
	}
}

func (s Selector) String() string { return s.Label() }

// Discover lists the regular files directly under dir whose extension is one
// of exts and whose name encodes a period matching sel. A zero selector
// accepts every file with a supported extension, stamped or not. Results are
// full paths in lexicographic file-name order.
func Discover(dir string, sel Selector, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		if !sel.IsZero() {
			p, ok := ParsePeriod(e.Name())
			if !ok || !sel.Match(p) {
				continue
			}
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	slices.Sort(out)
	return out, nil
}
