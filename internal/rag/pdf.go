package rag

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnreadableDocument is returned when the upload is not a parseable PDF
	ErrUnreadableDocument = errors.New("document is not a readable pdf")

	// ErrNoText is returned when a PDF parses but carries no extractable text
	ErrNoText = errors.New("document contains no extractable text")
)

// Page is the plain text of one PDF page
type Page struct {
	Number int
	Text   string
}

// ExtractPages reads the plain text of every page. Pages without text are
// skipped; a document with no text at all is an error.
func ExtractPages(r io.ReaderAt, size int64) (pages []Page, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrUnreadableDocument, i, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}
