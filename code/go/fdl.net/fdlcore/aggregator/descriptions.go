package aggregator

import "strings"

// ParseDescriptions reads an admin-supplied description chunk. Records are
// separated by "||", each record is a "path|description" pair keyed by the
// canonical path.
func ParseDescriptions(chunk string) map[string]string {
	out := map[string]string{}
	for _, rec := range strings.Split(chunk, "||") {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		parts := strings.SplitN(rec, "|", 2)
		if len(parts) != 2 {
			continue
		}
		path := strings.TrimSpace(parts[0])
		desc := strings.TrimSpace(parts[1])
		if path == "" || desc == "" {
			continue
		}
		out[path] = desc
	}
	return out
}
