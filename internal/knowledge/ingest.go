package knowledge

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ExtractText converts raw document bytes to plain text. docType is "pdf",
// "html" or anything else for plain text passthrough.
func ExtractText(docType string, data []byte) (string, error) {
	switch docType {
	case "pdf":
		return extractPDF(data)
	case "html":
		return extractHTML(data)
	default:
		return string(data), nil
	}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return collapseWhitespace(string(text)), nil
}

func extractHTML(data []byte) (string, error) {
	tok := html.NewTokenizer(bytes.NewReader(data))
	var b strings.Builder
	skipDepth := 0
	for {
		switch tok.Next() {
		case html.ErrorToken:
			if tok.Err() == io.EOF {
				return collapseWhitespace(b.String()), nil
			}
			return "", fmt.Errorf("parse html: %w", tok.Err())
		case html.StartTagToken:
			name, _ := tok.TagName()
			if isSkippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if isSkippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tok.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isSkippedTag(name string) bool {
	return name == "script" || name == "style"
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
