package extract

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.Table))

// extractMarkdown parses a markdown file and returns its text content
// with formatting stripped: headings, paragraphs, list items, and
// code blocks each end with a newline.
func extractMarkdown(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(content) == 0 {
		return "", nil
	}

	doc := markdownParser.Parser().Parse(text.NewReader(content))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Block boundaries become newlines so chunk token
			// boundaries never glue two sections together.
			switch n.(type) {
			case *ast.Heading, *ast.Paragraph, *ast.ListItem:
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(content))
			b.WriteString(" ")
		case *ast.String:
			b.Write(node.Value)
			b.WriteString(" ")
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				b.Write(line.Value(content))
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String()), nil
}
