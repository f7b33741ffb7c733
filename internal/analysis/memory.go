package analysis

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/embed/reference"
	"github.com/dshills/embedsync/internal/engine/buffer"
	"github.com/dshills/embedsync/internal/host"
	"github.com/dshills/embedsync/internal/logging"
	"github.com/dshills/embedsync/internal/textsync"
)

// AdapterContext is handed to an AdapterFactory.
type AdapterContext struct {
	Engine   Engine
	Profile  language.Profile
	View     host.View
	Surface  host.Surface
	Document DocumentID
}

// AdapterFactory builds the command adapter for one surface.
type AdapterFactory func(ctx AdapterContext) (CommandAdapter, error)

// ProjectInfo describes a project.
type ProjectInfo struct {
	ID         ProjectID
	Name       string
	Kind       language.Kind
	References []reference.Descriptor
	Documents  []DocumentID
}

// DocumentInfo describes a document.
type DocumentInfo struct {
	ID      DocumentID
	Project ProjectID
	Name    string
	Length  int
}

type project struct {
	info ProjectInfo
}

type document struct {
	id      DocumentID
	project ProjectID
	name    string
	buf     *buffer.Buffer
	surface host.Surface
}

// MemoryOption configures a Memory engine.
type MemoryOption func(*Memory)

// WithSync sets the sync engine used for document edits.
func WithSync(s *textsync.Engine) MemoryOption {
	return func(m *Memory) {
		if s != nil {
			m.sync = s
		}
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *logging.Logger) MemoryOption {
	return func(m *Memory) {
		m.logger = logging.OrNull(l).WithComponent("analysis")
	}
}

// WithAdapter registers the command adapter factory of a kind,
// replacing the built-in text adapter.
func WithAdapter(kind language.Kind, f AdapterFactory) MemoryOption {
	return func(m *Memory) {
		m.factories[kind] = f
	}
}

// Memory is an in-memory Engine. It is safe for concurrent use.
type Memory struct {
	table  *language.Table
	sync   *textsync.Engine
	logger *logging.Logger

	mu        sync.RWMutex
	projects  map[ProjectID]*project
	documents map[DocumentID]*document
	surfaces  map[host.Surface]DocumentID
	factories map[language.Kind]AdapterFactory
	loads     map[language.Kind]int
}

// NewMemory creates an engine serving the kinds of table. Every kind gets
// the built-in text adapter unless WithAdapter overrides it.
func NewMemory(table *language.Table, opts ...MemoryOption) *Memory {
	if table == nil {
		table = language.DefaultTable()
	}
	m := &Memory{
		table:     table,
		sync:      textsync.New(),
		logger:    logging.NullLogger,
		projects:  make(map[ProjectID]*project),
		documents: make(map[DocumentID]*document),
		surfaces:  make(map[host.Surface]DocumentID),
		factories: make(map[language.Kind]AdapterFactory),
		loads:     make(map[language.Kind]int),
	}
	for _, k := range table.Kinds() {
		m.factories[k] = NewTextAdapter
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateProject implements Engine.
func (m *Memory) CreateProject(name string, kind language.Kind) (ProjectID, error) {
	if _, ok := m.table.Profile(kind); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	id := ProjectID(uuid.NewString())

	m.mu.Lock()
	m.projects[id] = &project{info: ProjectInfo{ID: id, Name: name, Kind: kind}}
	m.mu.Unlock()

	m.logger.Debug("created project %q (%s) %s", name, kind, id)
	return id, nil
}

// AddReferences implements Engine.
func (m *Memory) AddReferences(p ProjectID, refs []reference.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	proj, ok := m.projects[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, p)
	}
	proj.info.References = append(proj.info.References, refs...)
	return nil
}

// RemoveProject implements Engine.
func (m *Memory) RemoveProject(p ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	proj, ok := m.projects[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, p)
	}
	for _, id := range proj.info.Documents {
		if doc, ok := m.documents[id]; ok && doc.surface != nil {
			delete(m.surfaces, doc.surface)
		}
		delete(m.documents, id)
	}
	delete(m.projects, p)
	return nil
}

// CreateDocument implements Engine.
func (m *Memory) CreateDocument(p ProjectID, name, text string) (DocumentID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	proj, ok := m.projects[p]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProject, p)
	}

	id := DocumentID(uuid.NewString())
	m.documents[id] = &document{
		id:      id,
		project: p,
		name:    name,
		buf:     buffer.NewBufferFromString(text, buffer.WithName(name)),
	}
	proj.info.Documents = append(proj.info.Documents, id)
	return id, nil
}

// OpenDocument implements Engine.
func (m *Memory) OpenDocument(d DocumentID, surface host.Surface) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[d]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, d)
	}
	if doc.surface != nil {
		delete(m.surfaces, doc.surface)
	}
	doc.surface = surface
	m.surfaces[surface] = d
	return nil
}

func (m *Memory) document(d DocumentID) (*document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[d]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, d)
	}
	return doc, nil
}

// DocumentText implements Engine.
func (m *Memory) DocumentText(d DocumentID) (string, error) {
	doc, err := m.document(d)
	if err != nil {
		return "", err
	}
	return doc.buf.Text(), nil
}

// EditDocument implements Engine.
func (m *Memory) EditDocument(d DocumentID, changes []textsync.Change) error {
	doc, err := m.document(d)
	if err != nil {
		return err
	}
	return m.sync.ApplyChanges(doc.buf, changes)
}

// UpdateDocumentText implements Engine.
func (m *Memory) UpdateDocumentText(d DocumentID, text string) error {
	doc, err := m.document(d)
	if err != nil {
		return err
	}
	_, err = m.sync.Sync(doc.buf, text)
	return err
}

// SubscribeDocument implements Engine.
func (m *Memory) SubscribeDocument(d DocumentID, fn func(DocumentChange)) (func(), error) {
	doc, err := m.document(d)
	if err != nil {
		return nil, err
	}
	return doc.buf.Subscribe(func(ev buffer.ChangeEvent) {
		fn(DocumentChange{Document: d, Revision: ev.Revision, Text: ev.Text})
	}), nil
}

// EnsureLoaded implements Engine.
func (m *Memory) EnsureLoaded(kind language.Kind) error {
	if _, ok := m.table.Profile(kind); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loads[kind] == 0 {
		m.logger.Debug("loading %s language services", kind)
	}
	m.loads[kind]++
	return nil
}

// Loaded reports whether EnsureLoaded has succeeded for kind.
func (m *Memory) Loaded(kind language.Kind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads[kind] > 0
}

// ResolveCommandAdapter implements Engine.
func (m *Memory) ResolveCommandAdapter(kind language.Kind, view host.View, surface host.Surface) (CommandAdapter, error) {
	profile, ok := m.table.Profile(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	m.mu.RLock()
	loaded := m.loads[kind] > 0
	factory := m.factories[kind]
	docID, open := m.surfaces[surface]
	m.mu.RUnlock()

	switch {
	case !loaded:
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, kind)
	case factory == nil:
		return nil, fmt.Errorf("%w: %s", ErrNoCommandHandler, kind)
	case !open:
		return nil, ErrUnknownSurface
	}

	return factory(AdapterContext{
		Engine:   m,
		Profile:  profile,
		View:     view,
		Surface:  surface,
		Document: docID,
	})
}

// Project describes a project.
func (m *Memory) Project(p ProjectID) (ProjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proj, ok := m.projects[p]
	if !ok {
		return ProjectInfo{}, fmt.Errorf("%w: %s", ErrUnknownProject, p)
	}
	return copyInfo(proj.info), nil
}

// Projects describes all projects sorted by name then id.
func (m *Memory) Projects() []ProjectInfo {
	m.mu.RLock()
	out := make([]ProjectInfo, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, copyInfo(p.info))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Document describes a document.
func (m *Memory) Document(d DocumentID) (DocumentInfo, error) {
	doc, err := m.document(d)
	if err != nil {
		return DocumentInfo{}, err
	}
	return DocumentInfo{
		ID:      doc.id,
		Project: doc.project,
		Name:    doc.name,
		Length:  int(doc.buf.Len()),
	}, nil
}

func copyInfo(info ProjectInfo) ProjectInfo {
	info.References = append([]reference.Descriptor(nil), info.References...)
	info.Documents = append([]DocumentID(nil), info.Documents...)
	return info
}

var _ Engine = (*Memory)(nil)
