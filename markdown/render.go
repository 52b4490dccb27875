// Package markdown renders provider announcements for the terminal.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	mu        sync.Mutex
	styleName = "dark"
	renderers = map[int]*glamour.TermRenderer{}
)

// SetStyle selects a glamour standard style: "dark", "light" or "notty".
func SetStyle(name string) {
	mu.Lock()
	defer mu.Unlock()
	if name == styleName {
		return
	}
	styleName = name
	clear(renderers)
}

func renderer(width int) (*glamour.TermRenderer, error) {
	mu.Lock()
	defer mu.Unlock()
	if r, ok := renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(styleName),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers[width] = r
	return r, nil
}

// RenderWidth renders md wrapped at width. It returns md unchanged when it
// is blank or cannot be rendered.
func RenderWidth(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := renderer(width)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	// glamour adds surrounding blank lines
	return strings.Trim(out, "\n")
}
