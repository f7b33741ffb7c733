// Package markdown detects fenced code blocks in markdown host documents.
package markdown

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	tsmarkdown "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
)

// ErrParse is returned when the markdown grammar fails to produce a tree.
var ErrParse = errors.New("markdown: parse failed")

// Fence is one fenced code block.
type Fence struct {
	// Index is the position among all fences of the document.
	Index int

	// Info is the first word of the info string, e.g. "csharp".
	Info string

	// ContentType is the host discriminator the info word maps to.
	ContentType string

	// Text is the fence body without its final newline.
	Text string

	// Start and End delimit the body in the document, in bytes.
	Start, End int
}

// DefaultContentTypes maps common fence info words to discriminators.
var DefaultContentTypes = map[string]string{
	"cs":     "CSharp",
	"c#":     "CSharp",
	"csharp": "CSharp",
	"vb":     "Basic",
	"vbnet":  "Basic",
	"vb.net": "Basic",
}

// Detector finds fenced blocks with the tree-sitter markdown grammar.
// Parsers are pooled; a Detector is safe for concurrent use.
type Detector struct {
	lang         *sitter.Language
	contentTypes map[string]string
	pool         sync.Pool
}

// NewDetector creates a detector. overrides are merged over
// DefaultContentTypes; keys are matched case-insensitively.
func NewDetector(overrides map[string]string) *Detector {
	types := make(map[string]string, len(DefaultContentTypes)+len(overrides))
	for k, v := range DefaultContentTypes {
		types[k] = v
	}
	for k, v := range overrides {
		types[strings.ToLower(k)] = v
	}

	d := &Detector{
		lang:         tsmarkdown.GetLanguage(),
		contentTypes: types,
	}
	d.pool.New = func() any {
		p := sitter.NewParser()
		p.SetLanguage(d.lang)
		return p
	}
	return d
}

// ContentType maps a fence info word to a discriminator. Unknown words are
// returned unchanged so the table lookup downstream can reject them.
func (d *Detector) ContentType(info string) string {
	if ct, ok := d.contentTypes[strings.ToLower(info)]; ok {
		return ct
	}
	return info
}

// Detect returns the fenced blocks of src in document order.
func (d *Detector) Detect(ctx context.Context, src []byte) ([]Fence, error) {
	parser := d.pool.Get().(*sitter.Parser)
	defer d.pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if tree == nil {
		return nil, ErrParse
	}
	defer tree.Close()

	var fences []Fence
	walk(tree.RootNode(), func(n *sitter.Node) {
		fences = append(fences, d.fence(n, src, len(fences)))
	})
	return fences, nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	if n.Type() == "fenced_code_block" {
		visit(n)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

func (d *Detector) fence(n *sitter.Node, src []byte, index int) Fence {
	f := Fence{Index: index}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "info_string":
			if fields := strings.Fields(c.Content(src)); len(fields) > 0 {
				f.Info = fields[0]
			}
		case "code_fence_content":
			f.Start = int(c.StartByte())
			f.End = int(c.EndByte())
		}
	}

	if f.End == 0 {
		// Empty body: anchor at the end of the opening fence line.
		f.Start = lineEnd(src, int(n.StartByte()))
		f.End = f.Start
	}
	f.Text = strings.TrimSuffix(string(src[f.Start:f.End]), "\n")
	f.ContentType = d.ContentType(f.Info)
	return f
}

func lineEnd(src []byte, from int) int {
	for i := from; i < len(src); i++ {
		if src[i] == '\n' {
			return i + 1
		}
	}
	return len(src)
}
