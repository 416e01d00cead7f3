// Package render turns model output into something pleasant to read on the
// console. Models occasionally answer with markdown (a title heading, some
// emphasis) even when asked for plain text.
package render

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/term"
)

// Renderer formats a story for display.
type Renderer interface {
	Render(story string) (string, error)
}

const (
	defaultWidth = 80
	maxWidth     = 100
)

// New picks a renderer for out: glamour when out is a terminal, plain text
// otherwise.
func New(out io.Writer) Renderer {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return Plain{}
	}
	width := defaultWidth
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		width = min(w-4, maxWidth)
	}
	t, err := NewTerminal(width)
	if err != nil {
		return Plain{}
	}
	return t
}

// Terminal renders markdown with glamour, word-wrapped to a fixed width.
type Terminal struct {
	r *glamour.TermRenderer
}

func NewTerminal(width int) (*Terminal, error) {
	if width < 20 {
		width = defaultWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Terminal{r: r}, nil
}

func (t *Terminal) Render(story string) (string, error) {
	out, err := t.r.Render(story)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// Plain strips markdown syntax by walking the goldmark AST, keeping the
// paragraph and line structure of the story.
type Plain struct{}

type block struct {
	text string
	item bool
}

func (Plain) Render(story string) (string, error) {
	src := []byte(story)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var (
		blocks []block
		cur    strings.Builder
		inItem int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			blocks = append(blocks, block{text: s, item: inItem > 0})
		}
		cur.Reset()
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.ListItem:
			if entering {
				inItem++
				cur.WriteString("- ")
			} else {
				inItem--
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				flush()
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			if entering {
				writeLines(&cur, n.Lines(), src)
				flush()
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				cur.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					cur.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				cur.Write(node.Value)
			}
		case *ast.RawHTML:
			if entering {
				for i := 0; i < node.Segments.Len(); i++ {
					seg := node.Segments.At(i)
					cur.Write(seg.Value(src))
				}
			}
		case *ast.ThematicBreak:
			if entering {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	flush()

	var out strings.Builder
	for i, b := range blocks {
		if i > 0 {
			if blocks[i-1].item && b.item {
				out.WriteString("\n")
			} else {
				out.WriteString("\n\n")
			}
		}
		out.WriteString(b.text)
	}
	return out.String(), nil
}

func writeLines(sb *strings.Builder, lines *text.Segments, src []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
}
