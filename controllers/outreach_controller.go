package controller

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"equireach/models"
	"equireach/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const maxImportSize = 5 * 1024 * 1024

type OutreachController struct {
	Searcher   utils.ContactSearcher
	Workspaces *utils.WorkspaceRegistry
	Renderer   *utils.MessageRenderer
	Logger     *logrus.Entry
}

func NewOutreachController(searcher utils.ContactSearcher, workspaces *utils.WorkspaceRegistry, renderer *utils.MessageRenderer, logger *logrus.Entry) *OutreachController {
	return &OutreachController{
		Searcher:   searcher,
		Workspaces: workspaces,
		Renderer:   renderer,
		Logger:     logger,
	}
}

// operatorID returns the authenticated operator set by middleware.Protected
func operatorID(c *fiber.Ctx) string {
	id, _ := c.Locals("operator").(string)
	return id
}

func (oc *OutreachController) workspace(c *fiber.Ctx) *utils.Workspace {
	return oc.Workspaces.Get(operatorID(c))
}

// Discover runs an AI contact search and replaces the candidate list with its results
func (oc *OutreachController) Discover(c *fiber.Ctx) error {
	if oc.Searcher == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Contact discovery is not configured", nil)
	}

	var input struct {
		Workflow     string `json:"workflow" validate:"required,oneof=partners exhibitors"`
		Country      string `json:"country"`
		City         string `json:"city"`
		BusinessType string `json:"business_type"`
		Continent    string `json:"continent"`
		Industry     string `json:"industry"`
		EventFilter  string `json:"event_filter"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 90*time.Second)
	defer cancel()

	var (
		contacts []models.Contact
		err      error
	)
	switch input.Workflow {
	case utils.WorkflowExhibitors:
		contacts, err = oc.Searcher.SearchExhibitors(ctx, utils.ExhibitorQuery{
			Continent:   input.Continent,
			Country:     input.Country,
			Industry:    input.Industry,
			EventFilter: input.EventFilter,
		})
	default:
		contacts, err = oc.Searcher.SearchPartners(ctx, utils.PartnerQuery{
			Country:      input.Country,
			BusinessType: input.BusinessType,
			City:         input.City,
		})
	}
	if err != nil {
		if errors.Is(err, utils.ErrValidation) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
		}
		utils.LogError("discovery", err, map[string]interface{}{
			"operator": operatorID(c),
			"workflow": input.Workflow,
		})
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Contact discovery failed", err)
	}

	ws := oc.workspace(c)
	ws.ReplaceCandidates(input.Workflow, contacts)

	oc.Logger.WithFields(logrus.Fields{
		"operator": operatorID(c),
		"workflow": input.Workflow,
		"found":    len(contacts),
	}).Info("Discovery completed")

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"workflow": ws.Workflow(),
		"count":    len(contacts),
		"contacts": contacts,
	}))
}

// ImportContacts parses delimited text into the candidate list
func (oc *OutreachController) ImportContacts(c *fiber.Ctx) error {
	delimiter, err := parseDelimiter(c.Query("delimiter"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid delimiter", err)
	}

	ws := oc.workspace(c)
	workflow := c.Query("workflow", ws.Workflow())
	if workflow != utils.WorkflowPartners && workflow != utils.WorkflowExhibitors {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown workflow", nil)
	}

	var text string
	if file, err := c.FormFile("file"); err == nil {
		if file.Size > maxImportSize {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
		}
		f, err := file.Open()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxImportSize))
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read file", err)
		}
		text = string(data)
	} else {
		body := c.Body()
		if len(body) > maxImportSize {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
		}
		text = string(body)
	}

	contacts, err := utils.ParseContactsCSV(text, utils.ImportOptions{Delimiter: delimiter})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse CSV file", err)
	}

	ws.ReplaceCandidates(workflow, contacts)

	utils.LogEvent("contacts_imported", map[string]interface{}{
		"operator": operatorID(c),
		"count":    len(contacts),
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"workflow": ws.Workflow(),
		"imported": len(contacts),
		"contacts": contacts,
	}))
}

func parseDelimiter(v string) (rune, error) {
	switch strings.ToLower(v) {
	case "", ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "tab", "\\t", "\t":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, errors.New("delimiter must be one of comma, semicolon, tab or pipe")
}

// GetContacts lists the current candidates, optionally grouped by city
func (oc *OutreachController) GetContacts(c *fiber.Ctx) error {
	ws := oc.workspace(c)
	contacts := ws.Candidates()

	if c.QueryBool("grouped") {
		return c.JSON(utils.SuccessResponse(fiber.Map{
			"workflow": ws.Workflow(),
			"groups":   utils.GroupByCity(contacts),
		}))
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"workflow": ws.Workflow(),
		"count":    len(contacts),
		"contacts": contacts,
	}))
}

// ExportContacts streams the candidate list as CSV
func (oc *OutreachController) ExportContacts(c *fiber.Ctx) error {
	contacts := oc.workspace(c).Candidates()

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=contacts_export_"+time.Now().Format("20060102")+".csv")

	if err := utils.WriteContactsCSV(c, contacts); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
	}
	return nil
}

func selectionView(ws *utils.Workspace) fiber.Map {
	ids := ws.Selection.IDs()
	return fiber.Map{
		"ids":   ids,
		"count": len(ids),
		"max":   utils.MaxSelection,
	}
}

func (oc *OutreachController) GetSelection(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(selectionView(oc.workspace(c))))
}

// ToggleSelection adds or removes one candidate from the selection
func (oc *OutreachController) ToggleSelection(c *fiber.Ctx) error {
	ws := oc.workspace(c)
	selected, err := ws.ToggleContact(c.Params("id"))
	switch {
	case errors.Is(err, utils.ErrUnknownContact):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
	case errors.Is(err, utils.ErrSelectionFull):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Selection limit reached: at most 50 contacts per batch", err)
	case err != nil:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update selection", err)
	}

	view := selectionView(ws)
	view["selected"] = selected
	return c.JSON(utils.SuccessResponse(view))
}

// SelectTop selects the first n candidates, capped at the selection limit
func (oc *OutreachController) SelectTop(c *fiber.Ctx) error {
	var input struct {
		N int `json:"n" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ws := oc.workspace(c)
	ws.Selection.SelectUpTo(input.N, ws.CandidateIDs())
	return c.JSON(utils.SuccessResponse(selectionView(ws)))
}

func (oc *OutreachController) ToggleAll(c *fiber.Ctx) error {
	ws := oc.workspace(c)
	ws.Selection.ToggleAll(ws.CandidateIDs())
	return c.JSON(utils.SuccessResponse(selectionView(ws)))
}

func (oc *OutreachController) ClearSelection(c *fiber.Ctx) error {
	ws := oc.workspace(c)
	ws.Selection.Clear()
	return c.JSON(utils.SuccessResponse(selectionView(ws)))
}

func (oc *OutreachController) GetTemplate(c *fiber.Ctx) error {
	ws := oc.workspace(c)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"workflow":     ws.Workflow(),
		"template":     ws.Template(),
		"placeholders": utils.Placeholders,
		"notice":       oc.Renderer.Notice(),
	}))
}

// UpdateTemplate replaces the shared message template for the next run
func (oc *OutreachController) UpdateTemplate(c *fiber.Ctx) error {
	var input struct {
		Template string `json:"template" validate:"required,max=10000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ws := oc.workspace(c)
	ws.SetTemplate(input.Template)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"workflow": ws.Workflow(),
		"template": ws.Template(),
	}))
}
