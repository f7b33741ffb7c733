// Package language describes the embedded languages a host document may
// contain: their kind, the content-type discriminators that select them and
// the implicit wrapper text injected around every snippet.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies an embedded language.
type Kind string

// Built-in kinds.
const (
	Primary   Kind = "primary"
	Secondary Kind = "secondary"
)

// Errors returned when building a table.
var (
	ErrDuplicateKind          = errors.New("language: duplicate kind")
	ErrDuplicateDiscriminator = errors.New("language: discriminator mapped twice")
	ErrInvalidProfile         = errors.New("language: invalid profile")
)

// Profile is the static description of one embedded language.
type Profile struct {
	// Kind is the table key.
	Kind Kind

	// ID is the canonical language identifier handed to the analysis engine.
	ID string

	// Name is a human-readable name.
	Name string

	// Discriminators are the host content-type names mapped to this kind.
	Discriminators []string

	// GlobalPrefix is prepended to every snippet before analysis.
	GlobalPrefix string

	// GlobalSuffix is appended to every snippet before analysis.
	GlobalSuffix string

	// References names the libraries attached to projects of this kind.
	References []string

	// LineComment is the single-line comment token of the language.
	LineComment string

	// Adapter optionally names a script implementing the command adapter.
	Adapter string
}

// Wrap returns the engine-visible text for a snippet.
func (p Profile) Wrap(snippet string) string {
	return p.GlobalPrefix + snippet + p.GlobalSuffix
}

// Unwrap recovers the snippet from engine text by stripping the known
// prefix and suffix lengths. ok is false when the wrapper text itself was
// altered; the returned snippet is then the region between the two known
// lengths, clamped to the text.
func (p Profile) Unwrap(engineText string) (snippet string, ok bool) {
	start := len(p.GlobalPrefix)
	end := len(engineText) - len(p.GlobalSuffix)
	ok = strings.HasPrefix(engineText, p.GlobalPrefix) &&
		strings.HasSuffix(engineText, p.GlobalSuffix) &&
		start <= end

	start = min(start, len(engineText))
	end = max(end, start)
	return engineText[start:end], ok
}

// Table is an immutable mapping from discriminators to profiles.
type Table struct {
	profiles        map[Kind]Profile
	byDiscriminator map[string]Kind
}

// NewTable builds a table. Discriminator lookup is case-insensitive.
func NewTable(profiles ...Profile) (*Table, error) {
	t := &Table{
		profiles:        make(map[Kind]Profile, len(profiles)),
		byDiscriminator: make(map[string]Kind),
	}

	for _, p := range profiles {
		if p.Kind == "" || p.ID == "" {
			return nil, fmt.Errorf("%w: kind and id are required (kind=%q id=%q)", ErrInvalidProfile, p.Kind, p.ID)
		}
		if _, exists := t.profiles[p.Kind]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, p.Kind)
		}

		p.Discriminators = append([]string(nil), p.Discriminators...)
		p.References = append([]string(nil), p.References...)
		t.profiles[p.Kind] = p

		for _, d := range p.Discriminators {
			key := strings.ToLower(d)
			if other, exists := t.byDiscriminator[key]; exists {
				return nil, fmt.Errorf("%w: %q (%s, %s)", ErrDuplicateDiscriminator, d, other, p.Kind)
			}
			t.byDiscriminator[key] = p.Kind
		}
	}

	return t, nil
}

// Lookup maps a host content-type discriminator to its kind.
func (t *Table) Lookup(discriminator string) (Kind, bool) {
	k, ok := t.byDiscriminator[strings.ToLower(discriminator)]
	return k, ok
}

// Profile returns the profile for a kind.
func (t *Table) Profile(k Kind) (Profile, bool) {
	p, ok := t.profiles[k]
	return p, ok
}

// Kinds returns all kinds in sorted order.
func (t *Table) Kinds() []Kind {
	kinds := make([]Kind, 0, len(t.profiles))
	for k := range t.profiles {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// GlobalPrefix returns the wrapper prefix for a kind, or "" if unknown.
func (t *Table) GlobalPrefix(k Kind) string {
	return t.profiles[k].GlobalPrefix
}

// GlobalSuffix returns the wrapper suffix for a kind, or "" if unknown.
func (t *Table) GlobalSuffix(k Kind) string {
	return t.profiles[k].GlobalSuffix
}
