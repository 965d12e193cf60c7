package pdfutil

import (
	"bytes"
	"fmt"
	"io"

	pdf "github.com/ledongthuc/pdf"
)

// PageCount reads PDF bytes and returns the number of pages using
// ledongthuc/pdf.
func PageCount(data []byte) (n int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("new pdf reader: %w", err)
	}
	total := doc.NumPage()
	if total <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return total, nil
}

// PageCountFromReader drains the reader before passing along to PageCount.
func PageCountFromReader(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return PageCount(data)
}
