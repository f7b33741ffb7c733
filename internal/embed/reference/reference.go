// Package reference resolves the library references attached to embedded
// projects and shares the resulting immutable sets between projects of the
// same language kind.
package reference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/memo"
	"github.com/dshills/embedsync/internal/logging"
)

// ErrNotFound indicates a named reference could not be located.
var ErrNotFound = errors.New("reference: not found")

// Descriptor identifies one resolved reference.
type Descriptor struct {
	Name string
	Path string
}

// Set is an immutable list of references.
type Set struct {
	descriptors []Descriptor
}

// NewSet creates a set from descriptors.
func NewSet(descriptors ...Descriptor) *Set {
	return &Set{descriptors: append([]Descriptor(nil), descriptors...)}
}

// Descriptors returns a copy of the references.
func (s *Set) Descriptors() []Descriptor {
	if s == nil {
		return nil
	}
	return append([]Descriptor(nil), s.descriptors...)
}

// Names returns the reference names in order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.descriptors))
	for i, d := range s.descriptors {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of references.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.descriptors)
}

// ResolutionError reports a reference that could not be located.
type ResolutionError struct {
	Name     string
	Searched []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("reference %q not found in [%s]", e.Name, strings.Join(e.Searched, ", "))
}

// Unwrap returns ErrNotFound.
func (e *ResolutionError) Unwrap() error {
	return ErrNotFound
}

// Resolver locates reference files by name.
type Resolver struct {
	searchPaths []string
	extensions  []string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSearchPaths sets the directories searched, in order.
func WithSearchPaths(paths ...string) ResolverOption {
	return func(r *Resolver) {
		r.searchPaths = append([]string(nil), paths...)
	}
}

// WithExtensions sets the file extensions tried for each name, in order.
func WithExtensions(exts ...string) ResolverOption {
	return func(r *Resolver) {
		r.extensions = append([]string(nil), exts...)
	}
}

// NewResolver creates a resolver. By default it searches no directories
// and tries the ".dll" extension.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{extensions: []string{".dll"}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve locates every name. Names that cannot be found are left out of
// the set and reported as *ResolutionError values.
func (r *Resolver) Resolve(names []string) (*Set, []error) {
	var (
		found []Descriptor
		errs  []error
	)
	for _, name := range names {
		path, err := r.resolveOne(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found = append(found, Descriptor{Name: name, Path: path})
	}
	return &Set{descriptors: found}, errs
}

func (r *Resolver) resolveOne(name string) (string, error) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return name, nil
		}
		return "", &ResolutionError{Name: name, Searched: []string{name}}
	}

	var searched []string
	for _, dir := range r.searchPaths {
		candidates := []string{filepath.Join(dir, name)}
		for _, ext := range r.extensions {
			candidates = append(candidates, filepath.Join(dir, name+ext))
		}
		for _, c := range candidates {
			searched = append(searched, c)
			if fileExists(c) {
				return c, nil
			}
		}
	}
	return "", &ResolutionError{Name: name, Searched: searched}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Catalog resolves each kind's references once and shares the set.
type Catalog struct {
	resolver *Resolver
	sets     memo.Group[language.Kind, *Set]
	logger   *logging.Logger
}

// NewCatalog creates a catalog backed by resolver.
func NewCatalog(resolver *Resolver, logger *logging.Logger) *Catalog {
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Catalog{
		resolver: resolver,
		logger:   logging.OrNull(logger).WithComponent("references"),
	}
}

// ForProfile returns the shared reference set for p.Kind. References that
// cannot be resolved are logged and omitted; the set is still returned.
func (c *Catalog) ForProfile(p language.Profile) *Set {
	set, _, _ := c.sets.Do(p.Kind, func() (*Set, error) {
		set, errs := c.resolver.Resolve(p.References)
		for _, err := range errs {
			c.logger.Warn("%s: %v", p.Kind, err)
		}
		c.logger.Debug("%s: resolved %d of %d references", p.Kind, set.Len(), len(p.References))
		return set, nil
	})
	return set
}
