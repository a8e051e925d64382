package loaders

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	. "github.com/stevegt/goadapt"
)

// Pdf extracts the plain text of a PDF file, one block per page.
type Pdf struct{}

// Extract reads the PDF at path.  Pages are separated by a blank
// line; pages without text are skipped.
func (Pdf) Extract(ctx context.Context, path string) (text string, err error) {
	defer Return(&err)
	fh, r, err := pdf.Open(path)
	Ck(err)
	defer fh.Close()
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		Ck(err, "page %d", i)
		txt = strings.TrimSpace(txt)
		if txt != "" {
			pages = append(pages, txt)
		}
	}
	text = strings.Join(pages, "\n\n")
	return
}

// Csv renders each row of a CSV file as "header: value" lines, with
// rows separated by a blank line.
type Csv struct{}

// Extract reads the CSV at path.  The first record is the header.
func (Csv) Extract(ctx context.Context, path string) (text string, err error) {
	defer Return(&err)
	buf, err := os.ReadFile(path)
	Ck(err)
	// tolerate a UTF-8 byte order mark from spreadsheet exports
	buf = bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(buf))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		err = nil
		return
	}
	Ck(err)
	var rows []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		Ck(err)
		var lines []string
		for i, val := range rec {
			name := Spf("column%d", i+1)
			if i < len(header) {
				name = strings.TrimSpace(header[i])
			}
			lines = append(lines, fmt.Sprintf("%s: %s", name, strings.TrimSpace(val)))
		}
		rows = append(rows, strings.Join(lines, "\n"))
	}
	text = strings.Join(rows, "\n\n")
	return
}

// Text returns a plain text file verbatim.
type Text struct{}

// Extract reads the file at path.
func (Text) Extract(ctx context.Context, path string) (text string, err error) {
	defer Return(&err)
	buf, err := os.ReadFile(path)
	Ck(err)
	text = string(buf)
	return
}
