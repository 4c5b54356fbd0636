package document

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/textaudit/layered-audit/internal/types"
)

// UnsupportedFormatError is returned for uploads whose text cannot be extracted.
type UnsupportedFormatError struct {
	Filename    string
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported upload format: %s (%s)", e.Filename, e.ContentType)
}

// ExtractText returns the plain text of an upload. HTML is flattened to one
// paragraph per block element; plain text and markdown pass through.
func ExtractText(upload *types.Upload) (string, error) {
	if upload.Empty() {
		return "", fmt.Errorf("upload is empty")
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	contentType := strings.ToLower(upload.ContentType)

	switch {
	case ext == ".html" || ext == ".htm" || strings.HasPrefix(contentType, "text/html"):
		return extractHTML(upload.Data)
	case ext == ".txt" || ext == ".md" || ext == ".markdown" || strings.HasPrefix(contentType, "text/"):
		if !utf8.Valid(upload.Data) {
			return "", fmt.Errorf("upload %s is not valid UTF-8", upload.Filename)
		}
		return normalizeNewlines(string(upload.Data)), nil
	default:
		return "", &UnsupportedFormatError{Filename: upload.Filename, ContentType: upload.ContentType}
	}
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted by their innermost element
		if s.Find("p, li, blockquote").Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
