package normalize

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotDocx is returned when the bytes are not a Word document.
var ErrNotDocx = errors.New("not a docx archive")

// wordNS is the WordprocessingML main namespace.
const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// bodyParagraphDepth is the element depth of w:document/w:body/w:p.
const bodyParagraphDepth = 3

// ExtractDocxText returns the body paragraphs of a .docx in document order,
// one per line.
func ExtractDocxText(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotDocx, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("%w: word/document.xml missing", ErrNotDocx)
}

// parseDocumentXML walks the body paragraphs in document order. Text is
// taken from every w:t inside a paragraph's runs at any depth, so
// hyperlinks, insertions and fields keep their text; w:tab becomes a tab
// and w:br/w:cr a newline. Paragraphs nested in text boxes are skipped.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		lines     []string
		b         strings.Builder
		depth     int
		paraDepth int
		runDepth  int
		skipDepth int
		inText    bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if el.Name.Space != wordNS || skipDepth > 0 {
				continue
			}
			switch el.Name.Local {
			case "p":
				if paraDepth == 0 && depth == bodyParagraphDepth {
					paraDepth = depth
					b.Reset()
				} else if paraDepth > 0 {
					skipDepth = depth
				}
			case "r":
				if paraDepth > 0 && runDepth == 0 {
					runDepth = depth
				}
			case "t":
				inText = runDepth > 0
			case "tab":
				if runDepth > 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if runDepth > 0 {
					b.WriteByte('\n')
				}
			}

		case xml.EndElement:
			switch depth {
			case skipDepth:
				skipDepth = 0
			case runDepth:
				runDepth = 0
			case paraDepth:
				lines = append(lines, b.String())
				paraDepth = 0
			}
			if el.Name.Local == "t" {
				inText = false
			}
			depth--

		case xml.CharData:
			if inText && skipDepth == 0 {
				b.Write(el)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
