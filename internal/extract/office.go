package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"sort"
	"strings"
)

// DOCX and PPTX files are zip archives of XML parts. Document text
// lives in <w:t> runs inside word/document.xml; slide text lives in
// <a:t> runs inside ppt/slides/slideN.xml.

// extractDOCX returns the paragraph text of a Word document.
func extractDOCX(path string) (string, error) {
	return extractOffice(path, func(name string) bool {
		return name == "word/document.xml"
	}, "p")
}

// extractPPTX returns the text of every slide, in slide order.
func extractPPTX(path string) (string, error) {
	return extractOffice(path, func(name string) bool {
		return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
	}, "p")
}

// extractOffice collects character data from <t> elements across the
// matching archive parts, inserting a newline at the end of each
// paragraph element.
func extractOffice(path string, match func(string) bool, paragraphElem string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = archive.Close() }()

	var parts []*zip.File
	for _, f := range archive.File {
		if match(f.Name) {
			parts = append(parts, f)
		}
	}
	// Deterministic slide order.
	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })

	var b strings.Builder
	for _, part := range parts {
		if err := appendPartText(&b, part, paragraphElem); err != nil {
			return "", err
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

func appendPartText(b *strings.Builder, part *zip.File, paragraphElem string) error {
	rc, err := part.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	decoder := xml.NewDecoder(rc)
	inText := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inText > 0 {
					inText--
				}
			case paragraphElem:
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText > 0 {
				b.Write(t)
				b.WriteString(" ")
			}
		}
	}
}
