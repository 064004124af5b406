package fileingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultDocumentLimit caps the size of an office or PDF file. These formats
// cannot be parsed from a truncated prefix, so larger files are refused.
const DefaultDocumentLimit = 32 << 20

// maxPartBytes caps one decompressed part of an office archive.
const maxPartBytes = 64 << 20

type extractFunc func(data []byte) (string, error)

var documentExtractors = map[string]extractFunc{
	".docx": extractDOCX,
	".pptx": extractPPTX,
	".xlsx": extractXLSX,
	".pdf":  extractPDF,
}

func openArchive(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open office archive: %w", err)
	}
	return zr, nil
}

func openPart(f *zip.File) (io.ReadCloser, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(rc, maxPartBytes), rc}, nil
}

// numberedParts returns the archive entries named prefix<N>.xml ordered by N.
func numberedParts(zr *zip.Reader, prefix string) []*zip.File {
	type part struct {
		n int
		f *zip.File
	}
	var parts []part
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, prefix), ".xml"))
		if err != nil {
			continue
		}
		parts = append(parts, part{n, f})
	}
	slices.SortFunc(parts, func(a, b part) int { return a.n - b.n })

	out := make([]*zip.File, len(parts))
	for i, p := range parts {
		out[i] = p.f
	}
	return out
}

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// paragraphText collects the <t> runs of a WordprocessingML or DrawingML
// part, one paragraph per line.
func paragraphText(r io.Reader, b *strings.Builder) error {
	dec := xml.NewDecoder(r)
	inText, inTabStops := false, false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tabs":
				inTabStops = true
			case "tab":
				if !inTabStops {
					b.WriteByte('\t')
				}
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tabs":
				inTabStops = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
}

func partText(f *zip.File, b *strings.Builder) error {
	rc, err := openPart(f)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := paragraphText(rc, b); err != nil {
		return fmt.Errorf("parse %s: %w", f.Name, err)
	}
	return nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := openArchive(data)
	if err != nil {
		return "", err
	}
	doc := findPart(zr, "word/document.xml")
	if doc == nil {
		return "", fmt.Errorf("word/document.xml missing")
	}
	var b strings.Builder
	if err := partText(doc, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func extractPPTX(data []byte) (string, error) {
	zr, err := openArchive(data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, slide := range numberedParts(zr, "ppt/slides/slide") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if err := partText(slide, &b); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func extractXLSX(data []byte) (string, error) {
	zr, err := openArchive(data)
	if err != nil {
		return "", err
	}
	var shared []string
	if f := findPart(zr, "xl/sharedStrings.xml"); f != nil {
		if shared, err = sharedStrings(f); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	for i, sheet := range numberedParts(zr, "xl/worksheets/sheet") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if err := sheetText(sheet, shared, &b); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func sharedStrings(f *zip.File) ([]string, error) {
	rc, err := openPart(f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []string
	var cur strings.Builder
	inText, inPhonetic := false, false
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				cur.Reset()
			case "t":
				inText = !inPhonetic
			case "rPh":
				inPhonetic = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				out = append(out, cur.String())
			case "t":
				inText = false
			case "rPh":
				inPhonetic = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
}

// sheetText writes one line per row with cell values separated by tabs.
func sheetText(f *zip.File, shared []string, b *strings.Builder) error {
	rc, err := openPart(f)
	if err != nil {
		return err
	}
	defer rc.Close()

	var row []string
	var cellType string
	var value strings.Builder
	inValue := false
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				row = row[:0]
			case "c":
				cellType = ""
				for _, a := range t.Attr {
					if a.Name.Local == "t" {
						cellType = a.Value
					}
				}
				value.Reset()
			case "v", "t":
				inValue = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				s := value.String()
				if cellType == "s" {
					if idx, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && idx >= 0 && idx < len(shared) {
						s = shared[idx]
					}
				}
				if s != "" {
					row = append(row, s)
				}
			case "row":
				if len(row) > 0 {
					b.WriteString(strings.Join(row, "\t"))
					b.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inValue {
				value.Write(t)
			}
		}
	}
}

// extractPDF returns the plain text of every page. The parser panics on
// some malformed files; that is reported as an error.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("parse pdf: %v", p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	out, err := io.ReadAll(io.LimitReader(plain, maxPartBytes))
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(out), nil
}
