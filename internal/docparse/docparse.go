// Package docparse extracts plain text from uploaded briefs.
package docparse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MinChars is the default minimum number of non-whitespace characters a
// brief must contain.
const MinChars = 50

var (
	// ErrUnsupportedType is returned for files other than pdf, docx and txt.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooShort is returned when the extracted text is too short to analyze.
	ErrTooShort = errors.New("document text too short")
)

// Type is a supported document type.
type Type string

const (
	TypePDF  Type = "pdf"
	TypeDOCX Type = "docx"
	TypeTXT  Type = "txt"
)

// TypeOf returns the document type for filename based on its extension.
func TypeOf(filename string) (Type, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch Type(ext) {
	case TypePDF, TypeDOCX, TypeTXT:
		return Type(ext), nil
	}
	return "", fmt.Errorf("%w: %q (allowed: pdf, docx, txt)", ErrUnsupportedType, filename)
}

// ExtractText returns the plain text of a document of the given type.
func ExtractText(data []byte, typ Type) (string, error) {
	var (
		text string
		err  error
	)
	switch typ {
	case TypePDF:
		text, err = pdfText(data)
	case TypeDOCX:
		text, err = docxText(data)
	case TypeTXT:
		text, err = plainText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
	if err != nil {
		return "", fmt.Errorf("docparse: extract %s: %w", typ, err)
	}
	return strings.TrimSpace(text), nil
}

// ExtractFile checks the filename's type and extracts its text.
func ExtractFile(filename string, data []byte) (string, error) {
	typ, err := TypeOf(filename)
	if err != nil {
		return "", err
	}
	return ExtractText(data, typ)
}

// CheckLength fails with ErrTooShort unless text has at least min
// non-whitespace characters.
func CheckLength(text string, min int) error {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	if n < min {
		return fmt.Errorf("%w: %d non-whitespace characters, need at least %d", ErrTooShort, n, min)
	}
	return nil
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}
	return string(data), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// docxText reads the paragraphs of word/document.xml, one per line.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		out    strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return out.String(), nil
}
