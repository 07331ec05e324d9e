package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"equireach/config"
	"equireach/models"
	"equireach/utils"
	"equireach/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubSearcher struct {
	contacts []models.Contact
	err      error
}

func (s *stubSearcher) SearchPartners(ctx context.Context, q utils.PartnerQuery) ([]models.Contact, error) {
	if err := utils.ValidateStruct(q); err != nil {
		return nil, err
	}
	return s.contacts, s.err
}

func (s *stubSearcher) SearchExhibitors(ctx context.Context, q utils.ExhibitorQuery) ([]models.Contact, error) {
	if err := utils.ValidateStruct(q); err != nil {
		return nil, err
	}
	return s.contacts, s.err
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []models.OutboundMessage
	hook func()
}

func (m *recordingMailer) Send(ctx context.Context, msg models.OutboundMessage) error {
	if m.hook != nil {
		m.hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type testEnv struct {
	app        *fiber.App
	workspaces *utils.WorkspaceRegistry
	history    *utils.HistoryStore
	engine     *worker.DispatchEngine
	mailer     *recordingMailer
	searcher   *stubSearcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	log := logrus.NewEntry(quiet)

	env := &testEnv{
		workspaces: utils.NewWorkspaceRegistry(),
		history:    utils.NewHistoryStore(db),
		mailer:     &recordingMailer{},
		searcher:   &stubSearcher{},
	}
	renderer := utils.NewMessageRenderer("Equine Vitality")
	env.engine = worker.NewDispatchEngine(env.mailer, env.history, renderer, worker.DispatchConfig{
		SenderLabel:   "Equine Vitality Team",
		CampaignLabel: "Spring Outreach",
	}, log)

	outreach := NewOutreachController(env.searcher, env.workspaces, renderer, log)
	dispatch := NewDispatchController(env.engine, env.workspaces, log)
	history := NewHistoryController(env.history, log)

	app := fiber.New()
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		operator := c.Get("X-Operator")
		if operator == "" {
			operator = "op-1"
		}
		c.Locals("operator", operator)
		return c.Next()
	})
	api.Post("/outreach/discover", outreach.Discover)
	api.Post("/outreach/import", outreach.ImportContacts)
	api.Get("/outreach/contacts", outreach.GetContacts)
	api.Get("/outreach/contacts/export", outreach.ExportContacts)
	api.Get("/outreach/selection", outreach.GetSelection)
	api.Post("/outreach/selection/top", outreach.SelectTop)
	api.Post("/outreach/selection/toggle-all", outreach.ToggleAll)
	api.Post("/outreach/selection/:id/toggle", outreach.ToggleSelection)
	api.Delete("/outreach/selection", outreach.ClearSelection)
	api.Get("/outreach/template", outreach.GetTemplate)
	api.Put("/outreach/template", outreach.UpdateTemplate)
	api.Post("/dispatch", dispatch.StartDispatch)
	api.Get("/dispatch/status", dispatch.GetStatus)
	api.Post("/dispatch/cancel", dispatch.CancelDispatch)
	api.Get("/history", history.GetHistory)
	api.Get("/history/export", history.ExportHistory)
	api.Put("/history/:seq/status", history.UpdateStatus)
	env.app = app

	return env
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Details string          `json:"details"`
	Data    json.RawMessage `json:"data"`
}

func (env *testEnv) do(t *testing.T, method, target string, body interface{}) (int, envelope) {
	t.Helper()
	return env.doAs(t, "", method, target, body)
}

func (env *testEnv) doAs(t *testing.T, operator, method, target string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if operator != "" {
		req.Header.Set("X-Operator", operator)
	}
	return env.send(t, req)
}

func (env *testEnv) send(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func decodeData[T any](t *testing.T, e envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(e.Data, &v))
	return v
}

func (env *testEnv) importCSV(t *testing.T, csvText string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/outreach/import", strings.NewReader(csvText))
	req.Header.Set("Content-Type", "text/csv")
	status, resp := env.send(t, req)
	require.Equal(t, fiber.StatusOK, status, resp.Error)
}

type selectionData struct {
	IDs      []string `json:"ids"`
	Count    int      `json:"count"`
	Max      int      `json:"max"`
	Selected bool     `json:"selected"`
}

type contactsData struct {
	Workflow string           `json:"workflow"`
	Count    int              `json:"count"`
	Contacts []models.Contact `json:"contacts"`
}
