package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Transform rewrites the block-visible text of a document.
type Transform func(snippet string, cmd Command) (string, error)

// SnippetAdapter runs transforms over the snippet part of a document and
// writes the result back to the engine document. The host block follows
// through the document subscription.
type SnippetAdapter struct {
	ctx        AdapterContext
	transforms map[string]Transform
}

// NewSnippetAdapter creates an adapter with the given transforms.
func NewSnippetAdapter(ctx AdapterContext, transforms map[string]Transform) *SnippetAdapter {
	t := make(map[string]Transform, len(transforms))
	for name, fn := range transforms {
		t[name] = fn
	}
	return &SnippetAdapter{ctx: ctx, transforms: t}
}

// Exec implements CommandAdapter.
func (a *SnippetAdapter) Exec(cmd Command) Result {
	fn, ok := a.transforms[cmd.Name]
	if !ok {
		return Error(fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name))
	}

	text, err := a.ctx.Engine.DocumentText(a.ctx.Document)
	if err != nil {
		return Error(err)
	}
	snippet, ok := a.ctx.Profile.Unwrap(text)
	if !ok {
		return Error(ErrWrapperAltered)
	}

	out, err := fn(snippet, cmd)
	if err != nil {
		return Error(fmt.Errorf("%s: %w", cmd.Name, err))
	}
	if out == snippet {
		return NoOp(snippet)
	}

	if err := a.ctx.Engine.UpdateDocumentText(a.ctx.Document, a.ctx.Profile.Wrap(out)); err != nil {
		return Error(err)
	}
	return Success(out)
}

// Commands implements CommandAdapter.
func (a *SnippetAdapter) Commands() []string {
	names := make([]string, 0, len(a.transforms))
	for name := range a.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTextAdapter is the built-in AdapterFactory. It offers "format", which
// strips trailing whitespace and normalizes tabs, and "toggleComment",
// which comments or uncomments the lines selected by the "from" and "to"
// arguments (1-based, inclusive; all lines by default).
func NewTextAdapter(ctx AdapterContext) (CommandAdapter, error) {
	comment := ctx.Profile.LineComment
	transforms := map[string]Transform{
		"format": formatSnippet,
	}
	if comment != "" {
		transforms["toggleComment"] = func(snippet string, cmd Command) (string, error) {
			return toggleComment(snippet, comment, cmd)
		}
	}
	return NewSnippetAdapter(ctx, transforms), nil
}

func formatSnippet(snippet string, cmd Command) (string, error) {
	indent := strings.Repeat(" ", 4)
	if n := cmd.Arg("tabWidth", ""); n != "" {
		var w int
		if _, err := fmt.Sscanf(n, "%d", &w); err != nil || w < 0 {
			return "", fmt.Errorf("invalid tabWidth %q", n)
		}
		indent = strings.Repeat(" ", w)
	}

	lines := strings.Split(snippet, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimLeft(line, "\t")
		lines[i] = strings.Repeat(indent, len(line)-len(trimmed)) + trimmed
	}
	return strings.Join(lines, "\n"), nil
}

func toggleComment(snippet, token string, cmd Command) (string, error) {
	lines := strings.Split(snippet, "\n")

	from, to := 1, len(lines)
	if v := cmd.Arg("from", ""); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &from); err != nil {
			return "", fmt.Errorf("invalid from %q", v)
		}
	}
	if v := cmd.Arg("to", ""); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &to); err != nil {
			return "", fmt.Errorf("invalid to %q", v)
		}
	}
	if from < 1 || to > len(lines) || from > to {
		return "", fmt.Errorf("line range %d-%d outside 1-%d", from, to, len(lines))
	}

	selected := lines[from-1 : to]

	// Uncomment only when every non-blank line is commented.
	commented := true
	for _, line := range selected {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed != "" && !strings.HasPrefix(trimmed, token) {
			commented = false
			break
		}
	}

	for i, line := range selected {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		lead := line[:len(line)-len(trimmed)]
		if commented {
			rest := strings.TrimPrefix(trimmed, token)
			rest = strings.TrimPrefix(rest, " ")
			selected[i] = lead + rest
		} else {
			selected[i] = lead + token + " " + trimmed
		}
	}
	return strings.Join(lines, "\n"), nil
}
