package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/ledongthuc/pdf"
)

// DefaultSnippetRunes bounds each reference excerpt placed in a rubric prompt.
const DefaultSnippetRunes = 1000

// ErrUnsupportedFormat is returned for reference files qgen cannot read.
var ErrUnsupportedFormat = errors.New("unsupported reference format")

// ReadReference reads a rubric-mode reference file. Text and markdown are
// returned verbatim, HTML is converted to markdown and PDF pages are joined
// as plain text. An empty path yields "".
func ReadReference(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return readPDF(path)
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read reference: %w", err)
		}
		md, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			return "", fmt.Errorf("convert %s to markdown: %w", path, err)
		}
		return md, nil
	case "", ".txt", ".md", ".markdown", ".text":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read reference: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("read reference %s: %w %q", path, ErrUnsupportedFormat, ext)
}

// readPDF extracts the text of every page, one page per paragraph.
func readPDF(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("read reference: %w", err)
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract text from %s page %d: %w", path, i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// Snippet returns at most n runes of text.
func Snippet(text string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
