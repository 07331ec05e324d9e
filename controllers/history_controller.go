package controller

import (
	"errors"
	"time"

	"equireach/models"
	"equireach/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type HistoryController struct {
	Store  *utils.HistoryStore
	Logger *logrus.Entry
}

func NewHistoryController(store *utils.HistoryStore, logger *logrus.Entry) *HistoryController {
	return &HistoryController{Store: store, Logger: logger}
}

// GetHistory returns the most recent outreach records first
func (hc *HistoryController) GetHistory(c *fiber.Ctx) error {
	limit := utils.QueryInt(c, "limit", defaultHistoryLimit, maxHistoryLimit)

	records, err := hc.Store.QueryRecent(c.UserContext(), limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch history", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"count":   len(records),
		"records": records,
	}))
}

// ExportHistory streams the full history as CSV, oldest first
func (hc *HistoryController) ExportHistory(c *fiber.Ctx) error {
	records, err := hc.Store.QueryAll(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch history", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=outreach_history_"+time.Now().Format("20060102")+".csv")

	if err := utils.WriteHistoryCSV(c, records); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
	}
	return nil
}

// UpdateStatus applies an out-of-band status change to one record
func (hc *HistoryController) UpdateStatus(c *fiber.Ctx) error {
	seq := utils.ParseUint(c.Params("seq"))
	if seq == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid record sequence", nil)
	}

	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	record, err := hc.Store.UpdateStatus(c.UserContext(), seq, models.OutreachStatus(input.Status))
	switch {
	case errors.Is(err, utils.ErrValidation):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, utils.ErrRecordNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "History record not found", nil)
	case err != nil:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update record", err)
	}

	hc.Logger.WithFields(logrus.Fields{
		"seq":    seq,
		"status": input.Status,
	}).Info("History status updated")

	return c.JSON(utils.SuccessResponse(record))
}
