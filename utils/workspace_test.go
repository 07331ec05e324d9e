package utils

import (
	"testing"

	"equireach/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContacts() []models.Contact {
	return []models.Contact{
		{ID: "a", DisplayName: "Alpha Stables", LocationCity: "Riyadh"},
		{ID: "b", DisplayName: "Beta Ranch", LocationCity: "Doha"},
		{ID: "c", DisplayName: "Gamma Feeds", LocationCity: "Doha"},
	}
}

func TestWorkspace_ReplaceCandidates(t *testing.T) {
	ws := NewWorkspace()
	assert.Equal(t, WorkflowPartners, ws.Workflow())
	assert.Equal(t, DefaultTemplate(WorkflowPartners), ws.Template())

	ws.ReplaceCandidates(WorkflowPartners, sampleContacts())
	_, err := ws.ToggleContact("b")
	require.NoError(t, err)

	t.Run("same workflow keeps an edited template", func(t *testing.T) {
		ws.SetTemplate("Custom [Partner Name]")
		ws.ReplaceCandidates(WorkflowPartners, sampleContacts())
		assert.Equal(t, "Custom [Partner Name]", ws.Template())
		assert.Equal(t, 0, ws.Selection.Len())
	})

	t.Run("new workflow reseeds the template", func(t *testing.T) {
		ws.ReplaceCandidates(WorkflowExhibitors, sampleContacts()[:1])
		assert.Equal(t, WorkflowExhibitors, ws.Workflow())
		assert.Equal(t, DefaultTemplate(WorkflowExhibitors), ws.Template())
		assert.Equal(t, []string{"a"}, ws.CandidateIDs())
	})
}

func TestWorkspace_ToggleContact(t *testing.T) {
	ws := NewWorkspace()
	ws.ReplaceCandidates(WorkflowPartners, sampleContacts())

	_, err := ws.ToggleContact("missing")
	assert.ErrorIs(t, err, ErrUnknownContact)

	selected, err := ws.ToggleContact("c")
	require.NoError(t, err)
	assert.True(t, selected)
}

func TestWorkspace_SelectedContacts(t *testing.T) {
	ws := NewWorkspace()
	ws.ReplaceCandidates(WorkflowPartners, sampleContacts())

	for _, id := range []string{"c", "a"} {
		_, err := ws.ToggleContact(id)
		require.NoError(t, err)
	}

	targets := ws.SelectedContacts()
	require.Len(t, targets, 2)
	assert.Equal(t, "Gamma Feeds", targets[0].DisplayName)
	assert.Equal(t, "Alpha Stables", targets[1].DisplayName)

	// the snapshot does not follow later selection changes
	_, err := ws.ToggleContact("b")
	require.NoError(t, err)
	assert.Len(t, targets, 2)
}

func TestWorkspaceRegistry_Get(t *testing.T) {
	r := NewWorkspaceRegistry()
	first := r.Get("op-1")
	assert.Same(t, first, r.Get("op-1"))
	assert.NotSame(t, first, r.Get("op-2"))
}
