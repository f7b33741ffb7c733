package workspace

import (
	"fmt"

	"github.com/dshills/embedsync/internal/analysis"
	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/memo"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/logging"
)

// Project is a handle to an engine project.
type Project struct {
	ID   analysis.ProjectID
	Kind language.Kind
	Name string

	// References is the set attached at creation. It is shared with every
	// other project of the same kind, and empty when Degraded.
	References *reference.Set

	// Degraded is set when the references could not be attached.
	Degraded bool
}

type projectKey struct {
	doc  host.Document
	kind language.Kind
}

// Registry creates one project per (host document, kind).
type Registry struct {
	engine   analysis.Engine
	table    *language.Table
	catalog  *reference.Catalog
	logger   *logging.Logger
	projects memo.Group[projectKey, *Project]
}

// NewRegistry creates a registry.
func NewRegistry(engine analysis.Engine, table *language.Table, catalog *reference.Catalog, logger *logging.Logger) *Registry {
	logger = logging.OrNull(logger)
	if catalog == nil {
		catalog = reference.NewCatalog(nil, logger)
	}
	return &Registry{
		engine:  engine,
		table:   table,
		catalog: catalog,
		logger:  logger.WithComponent("registry"),
	}
}

// ProjectName returns the engine project name for a profile.
func ProjectName(p language.Profile) string {
	return fmt.Sprintf("Embedded %s Project", p.ID)
}

// GetOrCreateProject returns the project for (doc, kind), creating it and
// attaching the kind's references on first use. Concurrent first calls
// share one creation.
func (r *Registry) GetOrCreateProject(doc host.Document, kind language.Kind) (*Project, error) {
	profile, ok := r.table.Profile(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	p, _, err := r.projects.Do(projectKey{doc, kind}, func() (*Project, error) {
		return r.create(doc, profile)
	})
	return p, err
}

func (r *Registry) create(doc host.Document, profile language.Profile) (*Project, error) {
	name := ProjectName(profile)
	id, err := r.engine.CreateProject(name, profile.Kind)
	if err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}

	p := &Project{
		ID:         id,
		Kind:       profile.Kind,
		Name:       name,
		References: r.catalog.ForProfile(profile),
	}
	if p.References.Len() > 0 {
		if err := r.engine.AddReferences(id, p.References.Descriptors()); err != nil {
			r.logger.Warn("%s: references not attached to %s: %v", doc.ID(), name, err)
			p.Degraded = true
			p.References = reference.NewSet()
		}
	}

	r.logger.Debug("%s: project %s %q with %d references", doc.ID(), id, name, p.References.Len())
	return p, nil
}

// Project returns an existing project.
func (r *Registry) Project(doc host.Document, kind language.Kind) (*Project, bool) {
	return r.projects.Get(projectKey{doc, kind})
}

// Projects returns the projects of doc ordered by kind.
func (r *Registry) Projects(doc host.Document) []*Project {
	var out []*Project
	for _, k := range r.table.Kinds() {
		if p, ok := r.projects.Get(projectKey{doc, k}); ok {
			out = append(out, p)
		}
	}
	return out
}

// Remove drops every project of doc from the registry and the engine.
func (r *Registry) Remove(doc host.Document) {
	for _, k := range r.table.Kinds() {
		p, ok := r.projects.Forget(projectKey{doc, k})
		if !ok {
			continue
		}
		if err := r.engine.RemoveProject(p.ID); err != nil {
			r.logger.Warn("%s: remove project %s: %v", doc.ID(), p.ID, err)
		}
	}
}
