// Package render converts markdown document bodies into a portable,
// editor-neutral JSON node tree.
//
// The tree follows the ProseMirror document shape used by the knowledge
// base's editor: a "doc" root with block nodes, inline "text" nodes and
// marks for inline formatting.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer converts markdown into portable content.
type Renderer interface {
	ToPortable(markdown string) (json.RawMessage, error)
}

// Node is one element of the portable tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is inline formatting applied to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Markdown renders with goldmark. The zero value is not usable; call New.
type Markdown struct {
	md goldmark.Markdown
}

// New returns a goldmark-backed renderer with GitHub flavored markdown
// enabled. It is safe for concurrent use.
func New() *Markdown {
	return &Markdown{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// ToPortable parses markdown and returns the JSON encoded node tree.
func (m *Markdown) ToPortable(markdown string) (json.RawMessage, error) {
	doc, err := m.Parse(markdown)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode portable content: %w", err)
	}
	return data, nil
}

// Parse returns the node tree for markdown without encoding it.
func (m *Markdown) Parse(markdown string) (*Node, error) {
	source := []byte(markdown)
	root := m.md.Parser().Parse(text.NewReader(source))

	c := &converter{source: source}
	doc := &Node{Type: "doc", Content: c.blocks(root)}
	if c.err != nil {
		return nil, c.err
	}
	if len(doc.Content) == 0 {
		doc.Content = []*Node{{Type: "paragraph"}}
	}
	return doc, nil
}

type converter struct {
	source []byte
	err    error
}

// blocks converts the block children of parent.
func (c *converter) blocks(parent ast.Node) []*Node {
	var out []*Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if node := c.block(n); node != nil {
			out = append(out, node)
		}
	}
	return out
}

func (c *converter) block(n ast.Node) *Node {
	switch n := n.(type) {
	case *ast.Heading:
		return &Node{
			Type:    "heading",
			Attrs:   map[string]any{"level": n.Level},
			Content: c.inlines(n, nil),
		}
	case *ast.Paragraph, *ast.TextBlock:
		return &Node{Type: "paragraph", Content: c.inlines(n, nil)}
	case *ast.List:
		if n.IsOrdered() {
			return &Node{
				Type:    "ordered_list",
				Attrs:   map[string]any{"order": n.Start},
				Content: c.blocks(n),
			}
		}
		return &Node{Type: "bullet_list", Content: c.blocks(n)}
	case *ast.ListItem:
		content := c.blocks(n)
		if len(content) == 0 {
			content = []*Node{{Type: "paragraph"}}
		}
		return &Node{Type: "list_item", Content: content}
	case *ast.FencedCodeBlock:
		return codeBlock(string(n.Language(c.source)), c.lines(n))
	case *ast.CodeBlock:
		return codeBlock("", c.lines(n))
	case *ast.Blockquote:
		return &Node{Type: "blockquote", Content: c.blocks(n)}
	case *ast.ThematicBreak:
		return &Node{Type: "hr"}
	case *ast.HTMLBlock:
		raw := strings.TrimSpace(c.lines(n))
		if raw == "" {
			return nil
		}
		return &Node{Type: "paragraph", Content: []*Node{{Type: "text", Text: raw}}}
	case *extast.Table:
		return &Node{Type: "table", Content: c.blocks(n)}
	case *extast.TableHeader:
		return c.tableRow(n, "th")
	case *extast.TableRow:
		return c.tableRow(n, "td")
	default:
		if c.err == nil {
			c.err = fmt.Errorf("unsupported block node %s", n.Kind())
		}
		return nil
	}
}

func (c *converter) tableRow(row ast.Node, cellType string) *Node {
	tr := &Node{Type: "tr"}
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		tr.Content = append(tr.Content, &Node{
			Type:    cellType,
			Content: []*Node{{Type: "paragraph", Content: c.inlines(cell, nil)}},
		})
	}
	return tr
}

func codeBlock(language, body string) *Node {
	node := &Node{Type: "code_block", Attrs: map[string]any{"language": language}}
	body = strings.TrimSuffix(body, "\n")
	if body != "" {
		node.Content = []*Node{{Type: "text", Text: body}}
	}
	return node
}

func (c *converter) lines(n ast.Node) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.source))
	}
	return b.String()
}

// inlines converts inline children of parent, applying marks to every text
// node produced.
func (c *converter) inlines(parent ast.Node, marks []Mark) []*Node {
	var out []*Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.inline(n, marks)...)
	}
	return mergeText(out)
}

func (c *converter) inline(n ast.Node, marks []Mark) []*Node {
	switch n := n.(type) {
	case *ast.Text:
		value := string(n.Segment.Value(c.source))
		if n.SoftLineBreak() && !n.HardLineBreak() {
			value += " "
		}
		out := textNodes(value, marks)
		if n.HardLineBreak() {
			out = append(out, &Node{Type: "br"})
		}
		return out
	case *ast.String:
		return textNodes(string(n.Value), marks)
	case *ast.CodeSpan:
		var b strings.Builder
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				b.Write(t.Segment.Value(c.source))
			}
		}
		return textNodes(b.String(), withMark(marks, Mark{Type: "code_inline"}))
	case *ast.Emphasis:
		markType := "em"
		if n.Level >= 2 {
			markType = "strong"
		}
		return c.inlines(n, withMark(marks, Mark{Type: markType}))
	case *extast.Strikethrough:
		return c.inlines(n, withMark(marks, Mark{Type: "strikethrough"}))
	case *ast.Link:
		return c.inlines(n, withMark(marks, linkMark(string(n.Destination), string(n.Title))))
	case *ast.AutoLink:
		url := string(n.URL(c.source))
		return textNodes(string(n.Label(c.source)), withMark(marks, linkMark(url, "")))
	case *ast.Image:
		return []*Node{{
			Type: "image",
			Attrs: map[string]any{
				"src":   string(n.Destination),
				"alt":   plainText(n, c.source),
				"title": string(n.Title),
			},
		}}
	case *ast.RawHTML:
		var b strings.Builder
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(c.source))
		}
		return textNodes(b.String(), marks)
	case *extast.TaskCheckBox:
		return nil
	default:
		return c.inlines(n, marks)
	}
}

func linkMark(href, title string) Mark {
	attrs := map[string]any{"href": href}
	if title != "" {
		attrs["title"] = title
	}
	return Mark{Type: "link", Attrs: attrs}
}

// withMark returns a copy of marks with m appended so sibling subtrees never
// share a backing array.
func withMark(marks []Mark, m Mark) []Mark {
	out := make([]Mark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, m)
}

func textNodes(value string, marks []Mark) []*Node {
	if value == "" {
		return nil
	}
	return []*Node{{Type: "text", Text: value, Marks: marks}}
}

// mergeText joins adjacent text nodes that carry identical marks.
func mergeText(nodes []*Node) []*Node {
	if len(nodes) < 2 {
		return nodes
	}
	out := nodes[:1]
	for _, n := range nodes[1:] {
		last := out[len(out)-1]
		if n.Type == "text" && last.Type == "text" && sameMarks(last.Marks, n.Marks) {
			merged := *last
			merged.Text += n.Text
			out[len(out)-1] = &merged
			continue
		}
		out = append(out, n)
	}
	// Trailing soft break spaces are not content.
	if last := out[len(out)-1]; last.Type == "text" && strings.HasSuffix(last.Text, " ") {
		trimmed := *last
		trimmed.Text = strings.TrimRight(trimmed.Text, " ")
		if trimmed.Text == "" {
			return out[:len(out)-1]
		}
		out[len(out)-1] = &trimmed
	}
	return out
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || fmt.Sprint(a[i].Attrs) != fmt.Sprint(b[i].Attrs) {
			return false
		}
	}
	return true
}

func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
