package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
)

// ChunkProvider resolves a named chunk with its placeholders filled in. The
// host CMS supplies the real template engine; this package only defines the
// contract and a plain substitution fallback.
type ChunkProvider interface {
	Render(name string, placeholders map[string]string) (string, error)
}

// Flatten turns a record into string placeholders, each key carrying the
// configured prefix. Nested maps are flattened with a dotted key.
func Flatten(prefix string, values map[string]interface{}) map[string]string {
	out := make(map[string]string, len(values))
	flattenInto(out, prefix, values)
	return out
}

func flattenInto(out map[string]string, prefix string, values map[string]interface{}) {
	for k, v := range values {
		switch val := v.(type) {
		case map[string]interface{}:
			flattenInto(out, prefix+k+".", val)
		case nil:
			out[prefix+k] = ""
		case string:
			out[prefix+k] = val
		default:
			out[prefix+k] = fmt.Sprintf("%v", val)
		}
	}
}

// SimpleProvider renders chunks from an in-memory template map, replacing
// [[+key]] tags. It backs tests and headless deployments.
type SimpleProvider struct {
	Chunks map[string]string
}

func (p *SimpleProvider) Render(name string, placeholders map[string]string) (string, error) {
	tpl, ok := p.Chunks[name]
	if !ok {
		return "", common.NewErrorf("chunk_missing", "unknown chunk %v", name)
	}
	keys := make([]string, 0, len(placeholders))
	for k := range placeholders {
		keys = append(keys, k)
	}
	// Longer keys first so fd.filename is not clobbered by fd.file.
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		tpl = strings.ReplaceAll(tpl, "[[+"+k+"]]", placeholders[k])
	}
	return tpl, nil
}
