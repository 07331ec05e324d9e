package controller

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"equireach/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDispatch(t *testing.T) {
	t.Run("empty selection is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		status, resp := env.do(t, "POST", "/api/v1/dispatch", nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.False(t, resp.Success)
	})

	t.Run("runs the frozen selection and clears it", func(t *testing.T) {
		env := newTestEnv(t)
		env.importCSV(t, "name,city,email\nAlpha Stables,Riyadh,alpha@stables.example\nBeta Ranch,Doha,beta@ranch.example\n")
		_, _ = env.do(t, "POST", "/api/v1/outreach/selection/toggle-all", nil)
		_, _ = env.do(t, "PUT", "/api/v1/outreach/template", fiber.Map{"template": "Hi [Partner Name] in [City]"})

		status, resp := env.do(t, "POST", "/api/v1/dispatch", nil)
		require.Equal(t, fiber.StatusAccepted, status, resp.Error)
		started := decodeData[struct {
			RunID string `json:"run_id"`
			Total int    `json:"total"`
		}](t, resp)
		assert.NotEmpty(t, started.RunID)
		assert.Equal(t, 2, started.Total)

		env.engine.Wait()

		require.Len(t, env.mailer.sent, 2)
		assert.True(t, strings.HasPrefix(env.mailer.sent[0].Body, "Hi Alpha Stables in Riyadh"))
		assert.True(t, strings.HasPrefix(env.mailer.sent[1].Body, "Hi Beta Ranch in Doha"))
		assert.Equal(t, 0, env.workspaces.Get("op-1").Selection.Len())

		status, resp = env.do(t, "GET", "/api/v1/dispatch/status", nil)
		require.Equal(t, fiber.StatusOK, status)
		progress := decodeData[models.DispatchProgress](t, resp)
		assert.Equal(t, models.DispatchCompleted, progress.State)
		assert.Equal(t, 2, progress.Cursor)
		assert.Equal(t, started.RunID, progress.RunID)

		status, resp = env.do(t, "GET", "/api/v1/history?limit=10", nil)
		require.Equal(t, fiber.StatusOK, status)
		history := decodeData[struct {
			Records []models.OutreachRecord `json:"records"`
		}](t, resp)
		require.Len(t, history.Records, 2)
		for _, rec := range history.Records {
			assert.Equal(t, models.StatusSent, rec.Status)
			assert.Equal(t, started.RunID, rec.RunID)
		}
	})

	t.Run("cancel without a run conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.do(t, "POST", "/api/v1/dispatch/cancel", nil)
		assert.Equal(t, fiber.StatusConflict, status)
	})
}

func TestDispatchOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.importCSV(t, "name,email\nAlpha Stables,alpha@stables.example\nBeta Ranch,beta@ranch.example\n")
	_, _ = env.do(t, "POST", "/api/v1/outreach/selection/toggle-all", nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce, releaseOnce sync.Once
	env.mailer.hook = func() {
		startOnce.Do(func() { close(started) })
		<-release
	}
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	defer unblock()

	status, resp := env.do(t, "POST", "/api/v1/dispatch", nil)
	require.Equal(t, fiber.StatusAccepted, status, resp.Error)
	runID := decodeData[struct {
		RunID string `json:"run_id"`
	}](t, resp).RunID

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch never reached the mailer")
	}

	t.Run("other operator sees idle", func(t *testing.T) {
		status, resp := env.doAs(t, "op-2", "GET", "/api/v1/dispatch/status", nil)
		require.Equal(t, fiber.StatusOK, status)
		progress := decodeData[models.DispatchProgress](t, resp)
		assert.Equal(t, models.DispatchIdle, progress.State)
		assert.Empty(t, progress.RunID)
		assert.Empty(t, progress.Owner)
	})

	t.Run("other operator cannot cancel", func(t *testing.T) {
		status, _ := env.doAs(t, "op-2", "POST", "/api/v1/dispatch/cancel", nil)
		assert.Equal(t, fiber.StatusConflict, status)
	})

	t.Run("owner sees the run", func(t *testing.T) {
		status, resp := env.do(t, "GET", "/api/v1/dispatch/status", nil)
		require.Equal(t, fiber.StatusOK, status)
		progress := decodeData[models.DispatchProgress](t, resp)
		assert.Equal(t, models.DispatchRunning, progress.State)
		assert.Equal(t, runID, progress.RunID)
		assert.Equal(t, "op-1", progress.Owner)
	})

	unblock()
	env.engine.Wait()

	require.Len(t, env.mailer.sent, 2)
	progress := env.engine.Status()
	assert.Equal(t, models.DispatchCompleted, progress.State)
	assert.Equal(t, 2, progress.Sent)
	assert.Equal(t, 0, env.workspaces.Get("op-1").Selection.Len())
}

func TestVisibleTo(t *testing.T) {
	run := models.DispatchProgress{RunID: "run-1", Owner: "op-1", State: models.DispatchRunning, Phase: "transmitting to Alpha Stables"}

	assert.Equal(t, run, visibleTo(run, "op-1"))
	assert.Equal(t, models.DispatchProgress{State: models.DispatchIdle, Phase: "idle"}, visibleTo(run, "op-2"))
	assert.Equal(t, models.DispatchIdle, visibleTo(run, "").State)
}

func TestHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.importCSV(t, "name,email\nAlpha Stables,alpha@stables.example\n")
	_, _ = env.do(t, "POST", "/api/v1/outreach/selection/toggle-all", nil)
	status, _ := env.do(t, "POST", "/api/v1/dispatch", nil)
	require.Equal(t, fiber.StatusAccepted, status)
	env.engine.Wait()

	records, err := env.history.QueryAll(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	seq := records[0].Seq

	t.Run("update status", func(t *testing.T) {
		status, resp := env.do(t, "PUT", fmt.Sprintf("/api/v1/history/%d/status", seq), fiber.Map{"status": "Not Interested"})
		require.Equal(t, fiber.StatusOK, status, resp.Error)
		rec := decodeData[models.OutreachRecord](t, resp)
		assert.Equal(t, models.StatusNotInterested, rec.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		status, _ := env.do(t, "PUT", fmt.Sprintf("/api/v1/history/%d/status", seq), fiber.Map{"status": "Maybe"})
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("unknown record", func(t *testing.T) {
		status, _ := env.do(t, "PUT", "/api/v1/history/9999/status", fiber.Map{"status": "Replied"})
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("invalid seq", func(t *testing.T) {
		status, _ := env.do(t, "PUT", "/api/v1/history/abc/status", fiber.Map{"status": "Replied"})
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("export", func(t *testing.T) {
		resp, err := env.app.Test(httptest.NewRequest("GET", "/api/v1/history/export", nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "seq,id,name,email,status,date,run_id,detail", lines[0])
		assert.Contains(t, lines[1], "Alpha Stables")
		assert.Contains(t, lines[1], "Not Interested")
	})
}
