package brochure

import (
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/creator"
	"github.com/unidoc/unipdf/v3/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockBullet
	blockCode
)

// block is one typeset unit. level is the heading level; depth is the
// list nesting the block sits in.
type block struct {
	kind   blockKind
	level  int
	depth  int
	marker string
	text   string
}

// SetLicense registers a metered unidoc key; PDF export fails without one.
func SetLicense(key string) error {
	if key == "" {
		return fmt.Errorf("no unidoc license key set")
	}
	return license.SetMeteredKey(key)
}

// parseMarkdown walks the markdown AST into flat blocks. Inline markup is
// reduced to its text.
func parseMarkdown(md string) []block {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var blocks []block
	depth := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if _, ok := n.(*ast.List); ok {
			if entering {
				depth++
			} else {
				depth--
			}
			return ast.WalkContinue, nil
		}
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			blocks = append(blocks, block{kind: blockHeading, level: node.Level, depth: depth, text: inlineText(node, src)})
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			b := block{kind: blockParagraph, depth: depth, text: inlineText(node, src)}
			if item, ok := node.Parent().(*ast.ListItem); ok && node.PreviousSibling() == nil {
				b.kind = blockBullet
				b.marker = itemMarker(item)
			}
			if b.text != "" || b.kind == blockBullet {
				blocks = append(blocks, b)
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			blocks = append(blocks, block{kind: blockCode, depth: depth, text: codeText(node, src)})
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

// itemMarker numbers items of ordered lists and bullets the rest.
func itemMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "•"
	}
	n := list.Start
	for sib := item.PreviousSibling(); sib != nil; sib = sib.PreviousSibling() {
		n++
	}
	return fmt.Sprintf("%d.", n)
}

// inlineText keeps the text of emphasis, code spans and links and drops
// raw HTML.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func codeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 20
	case 2:
		return 16
	default:
		return 13
	}
}

// RenderPDF writes the brochure to path as a simple typeset document.
func RenderPDF(b *Brochure, path string) error {
	regular, err := model.NewStandard14Font(model.HelveticaName)
	if err != nil {
		return err
	}
	bold, err := model.NewStandard14Font(model.HelveticaBoldName)
	if err != nil {
		return err
	}
	mono, err := model.NewStandard14Font(model.CourierName)
	if err != nil {
		return err
	}

	c := creator.New()
	c.SetPageMargins(50, 50, 50, 50)

	for _, blk := range parseMarkdown(b.Markdown) {
		indent := 12 * float64(blk.depth)
		var p *creator.Paragraph
		switch blk.kind {
		case blockHeading:
			p = c.NewParagraph(blk.text)
			p.SetFont(bold)
			p.SetFontSize(headingSize(blk.level))
			p.SetMargins(indent, 0, 10, 4)
		case blockBullet:
			p = c.NewParagraph(blk.marker + " " + blk.text)
			p.SetFont(regular)
			p.SetFontSize(11)
			p.SetMargins(indent, 0, 2, 2)
		case blockCode:
			p = c.NewParagraph(blk.text)
			p.SetFont(mono)
			p.SetFontSize(9)
			p.SetMargins(indent+12, 0, 4, 4)
		default:
			p = c.NewParagraph(blk.text)
			p.SetFont(regular)
			p.SetFontSize(11)
			p.SetMargins(indent, 0, 4, 4)
		}
		p.SetEnableWrap(true)
		if err := c.Draw(p); err != nil {
			return fmt.Errorf("draw brochure: %w", err)
		}
	}

	footer := c.NewParagraph(fmt.Sprintf("%s - %s", b.Company, b.URL))
	footer.SetFont(regular)
	footer.SetFontSize(8)
	footer.SetMargins(0, 0, 20, 0)
	if err := c.Draw(footer); err != nil {
		return fmt.Errorf("draw brochure: %w", err)
	}

	return c.WriteToFile(path)
}
