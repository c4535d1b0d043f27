package aggregator

import (
	"sort"
	"strings"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
)

// orderRecords applies the configured grouping and sort to the merged list.
// Returned group keys are the parent directories in render order, empty when
// grouping by directory is off.
func orderRecords(records []Record, s *config.Settings, separator string) ([]Record, []string) {
	if !s.GroupByDirectory {
		return sortGrouped(records, s), nil
	}

	buckets := map[string][]Record{}
	var keys []string
	for _, r := range records {
		key := parentDir(r, separator)
		if _, seen := buckets[key]; !seen {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeys(keys[i], keys[j], s) < 0
	})

	out := make([]Record, 0, len(records))
	for _, key := range keys {
		out = append(out, sortGrouped(buckets[key], s)...)
	}
	return out, keys
}

func parentDir(r Record, sep string) string {
	return strings.TrimSuffix(r.Path, sep)
}

// sortGrouped splits directories from files, sorts each side, and keeps
// directories ahead of files.
func sortGrouped(records []Record, s *config.Settings) []Record {
	dirs := make([]Record, 0, len(records))
	files := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Type == TypeDir {
			dirs = append(dirs, r)
		} else {
			files = append(files, r)
		}
	}
	sortSide(dirs, s)
	sortSide(files, s)
	return append(dirs, files...)
}

func sortSide(records []Record, s *config.Settings) {
	sort.SliceStable(records, func(i, j int) bool {
		c := compareRecords(&records[i], &records[j], s)
		if strings.EqualFold(s.SortOrder, "desc") {
			return c > 0
		}
		return c < 0
	})
}

func compareRecords(a, b *Record, s *config.Settings) int {
	switch strings.ToLower(s.SortBy) {
	case "date", "unixdate":
		if a.UnixDate != b.UnixDate {
			if a.UnixDate < b.UnixDate {
				return -1
			}
			return 1
		}
	case "size":
		if a.Size != b.Size {
			if a.Size < b.Size {
				return -1
			}
			return 1
		}
	case "count":
		if a.Count != b.Count {
			if a.Count < b.Count {
				return -1
			}
			return 1
		}
	case "extension", "ext":
		if c := compareText(a.Ext, b.Ext, s); c != 0 {
			return c
		}
	}
	// Filename is both the default key and the tie breaker.
	return compareText(displayName(a), displayName(b), s)
}

func displayName(r *Record) string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Filename
}

func compareKeys(a, b string, s *config.Settings) int {
	c := compareText(a, b, s)
	if strings.EqualFold(s.SortOrder, "desc") {
		return -c
	}
	return c
}

func compareText(a, b string, s *config.Settings) int {
	if !s.SortByCaseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if s.SortOrderNatural {
		return naturalCompare(a, b)
	}
	return strings.Compare(a, b)
}

// naturalCompare orders embedded digit runs numerically, so file2 sorts
// before file10.
func naturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			ni, numA := digitRun(a, i)
			nj, numB := digitRun(b, j)
			if c := compareDigits(numA, numB); c != 0 {
				return c
			}
			i, j = ni, nj
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(a)-i < len(b)-j:
		return -1
	case len(a)-i > len(b)-j:
		return 1
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func digitRun(s string, start int) (int, string) {
	end := start
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	return end, strings.TrimLeft(s[start:end], "0")
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
