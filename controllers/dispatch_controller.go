package controller

import (
	"context"
	"errors"

	"equireach/models"
	"equireach/utils"
	"equireach/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type DispatchController struct {
	Engine     *worker.DispatchEngine
	Workspaces *utils.WorkspaceRegistry
	Logger     *logrus.Entry
}

func NewDispatchController(engine *worker.DispatchEngine, workspaces *utils.WorkspaceRegistry, logger *logrus.Entry) *DispatchController {
	return &DispatchController{
		Engine:     engine,
		Workspaces: workspaces,
		Logger:     logger,
	}
}

// StartDispatch freezes the operator's selection and starts a run over it
func (dc *DispatchController) StartDispatch(c *fiber.Ctx) error {
	operator := operatorID(c)
	ws := dc.Workspaces.Get(operator)

	targets := ws.SelectedContacts()
	if len(targets) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Select at least one contact before dispatching", nil)
	}

	runID, err := dc.Engine.Start(context.Background(), worker.RunRequest{
		Owner:    operator,
		Targets:  targets,
		Template: ws.Template(),
		OnComplete: func(summary models.DispatchSummary) {
			ws.Selection.Clear()
		},
	})
	if errors.Is(err, worker.ErrDispatchActive) {
		return utils.ErrorResponse(c, fiber.StatusConflict, "A dispatch run is already in progress", err)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start dispatch", err)
	}

	dc.Logger.WithFields(logrus.Fields{
		"operator": operator,
		"run_id":   runID,
		"targets":  len(targets),
	}).Info("Dispatch requested")

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{
		"run_id": runID,
		"total":  len(targets),
	}))
}

// GetStatus reports the caller's run; other operators' runs read as idle
func (dc *DispatchController) GetStatus(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(visibleTo(dc.Engine.Status(), operatorID(c))))
}

// CancelDispatch asks the caller's active run to stop at its next checkpoint
func (dc *DispatchController) CancelDispatch(c *fiber.Ctx) error {
	operator := operatorID(c)
	if !dc.Engine.CancelFor(operator) {
		return utils.ErrorResponse(c, fiber.StatusConflict, "No dispatch run is in progress", nil)
	}
	status := dc.Engine.Status()
	utils.LogEvent("dispatch_cancel_requested", map[string]interface{}{
		"operator": operator,
		"run_id":   status.RunID,
	})
	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(visibleTo(status, operator)))
}

func visibleTo(progress models.DispatchProgress, operator string) models.DispatchProgress {
	if operator == "" || progress.Owner != operator {
		return models.DispatchProgress{State: models.DispatchIdle, Phase: "idle"}
	}
	return progress
}

// HandleProgressWS streams progress snapshots until the client disconnects
func (dc *DispatchController) HandleProgressWS(c *websocket.Conn) {
	defer c.Close()

	operator, _ := c.Locals("operator").(string)
	updates, unsubscribe := dc.Engine.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last *models.DispatchProgress
	for {
		select {
		case <-closed:
			return
		case progress, ok := <-updates:
			if !ok {
				return
			}
			// another operator's run shows up once, as idle
			progress = visibleTo(progress, operator)
			if last != nil && progress.Owner == "" && *last == progress {
				continue
			}
			last = &progress
			if err := c.WriteJSON(progress); err != nil {
				dc.Logger.WithError(err).Debug("Progress subscriber went away")
				return
			}
		}
	}
}
