package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZip  = "application/zip"
)

var (
	// ErrUnsupportedContentType is returned when no extractor handles the content type.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrEmptyDocument is returned for empty input or input with no extractable text.
	ErrEmptyDocument = errors.New("empty document")
)

// Extractor turns raw document bytes into plain text.
type Extractor func(data []byte) (string, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Extractor{
		mimePDF:                     extractPDF,
		mimeDOCX:                    extractDOCX,
		"text/plain":                extractPlain,
		"text/x-python":             extractPlain,
		"text/x-script.python":      extractPlain,
		"application/x-python-code": extractPlain,
	}
)

// Register adds or replaces the extractor for contentType.
func Register(contentType string, fn Extractor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[normalizeContentType(contentType, nil)] = fn
}

// Supported reports whether contentType has a registered extractor.
func Supported(contentType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[normalizeContentType(contentType, nil)]
	return ok
}

// ExtractText extracts plain text from data according to its content type.
func ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	normalized := normalizeContentType(contentType, data)
	registryMu.RLock()
	fn, ok := registry[normalized]
	registryMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, normalized)
	}

	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", normalized, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func extractPlain(data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), "�"), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// normalizeContentType lowercases, strips parameters and maps zip uploads of
// DOCX files to the DOCX type.
func normalizeContentType(contentType string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if clean == mimeZip && isDOCX(data) {
		return mimeDOCX
	}
	return clean
}

func isDOCX(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
