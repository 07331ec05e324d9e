package utils

import (
	"sync"

	"equireach/models"
)

// Workspace is one operator's session state: the current candidates, the selection
// over them and the shared message template.
type Workspace struct {
	mu         sync.RWMutex
	workflow   string
	candidates []models.Contact
	byID       map[string]int
	template   string

	Selection *SelectionSet
}

func NewWorkspace() *Workspace {
	return &Workspace{
		workflow:  WorkflowPartners,
		byID:      make(map[string]int),
		template:  DefaultTemplate(WorkflowPartners),
		Selection: NewSelectionSet(),
	}
}

// ReplaceCandidates installs a fresh discovery/import batch. The selection is rebuilt
// from scratch and the template re-seeded when the workflow changes.
func (w *Workspace) ReplaceCandidates(workflow string, contacts []models.Contact) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if workflow != "" && workflow != w.workflow {
		w.workflow = workflow
		w.template = DefaultTemplate(workflow)
	}
	w.candidates = append([]models.Contact(nil), contacts...)
	w.byID = make(map[string]int, len(contacts))
	for i, c := range w.candidates {
		if _, dup := w.byID[c.ID]; !dup {
			w.byID[c.ID] = i
		}
	}
	w.Selection.Clear()
}

func (w *Workspace) Workflow() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.workflow
}

// Candidates returns a copy of the current candidate list
func (w *Workspace) Candidates() []models.Contact {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.Contact(nil), w.candidates...)
}

func (w *Workspace) CandidateIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return ContactIDs(w.candidates)
}

func (w *Workspace) HasCandidate(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.byID[id]
	return ok
}

// ToggleContact toggles a known candidate in the selection
func (w *Workspace) ToggleContact(id string) (bool, error) {
	if !w.HasCandidate(id) {
		return false, ErrUnknownContact
	}
	return w.Selection.Toggle(id)
}

// SelectedContacts snapshots the selection as an ordered contact list
func (w *Workspace) SelectedContacts() []models.Contact {
	ids := w.Selection.IDs()

	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.Contact, 0, len(ids))
	for _, id := range ids {
		if pos, ok := w.byID[id]; ok {
			out = append(out, w.candidates[pos])
		}
	}
	return out
}

func (w *Workspace) Template() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.template
}

func (w *Workspace) SetTemplate(template string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.template = template
}

// WorkspaceRegistry hands out one workspace per operator
type WorkspaceRegistry struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
}

func NewWorkspaceRegistry() *WorkspaceRegistry {
	return &WorkspaceRegistry{workspaces: make(map[string]*Workspace)}
}

func (r *WorkspaceRegistry) Get(operatorID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[operatorID]
	if !ok {
		ws = NewWorkspace()
		r.workspaces[operatorID] = ws
	}
	return ws
}
