package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	got := Flatten("fd.", map[string]interface{}{
		"filename": "a.txt",
		"count":    int64(7),
		"extended": map[string]interface{}{"title": "A file"},
		"empty":    nil,
	})
	assert.Equal(t, map[string]string{
		"fd.filename":       "a.txt",
		"fd.count":          "7",
		"fd.extended.title": "A file",
		"fd.empty":          "",
	}, got)
}

func TestSimpleProviderRender(t *testing.T) {
	p := &SimpleProvider{Chunks: map[string]string{
		"row": `<li><a href="[[+fd.link]]">[[+fd.filename]]</a> ([[+fd.sizeText]])</li>`,
	}}

	out, err := p.Render("row", map[string]string{
		"fd.link":     "/download?fdlfile=abc",
		"fd.filename": "report.pdf",
		"fd.sizeText": "1.5 kB",
	})
	require.NoError(t, err)
	assert.Equal(t, `<li><a href="/download?fdlfile=abc">report.pdf</a> (1.5 kB)</li>`, out)

	_, err = p.Render("missing", nil)
	assert.Error(t, err)
}
