package utils

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"equireach/models"
)

var contactExportHeader = []string{
	"id", "name", "city", "country", "website", "profile", "category", "email", "event",
	"has_email", "has_form", "has_phone", "estimated_value", "standing", "scale",
}

var historyExportHeader = []string{"seq", "id", "name", "email", "status", "date", "run_id", "detail"}

// WriteContactsCSV writes contacts in a layout ParseContactsCSV reads back
func WriteContactsCSV(w io.Writer, contacts []models.Contact) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(contactExportHeader); err != nil {
		return err
	}
	for _, c := range contacts {
		record := []string{
			c.ID,
			c.DisplayName,
			c.LocationCity,
			c.LocationCountry,
			c.WebsiteURL,
			c.ProfessionalProfileURL,
			c.Category,
			c.Email,
			c.EventAffiliation,
			boolFlag(c.Channels.Email),
			boolFlag(c.Channels.Form),
			boolFlag(c.Channels.Phone),
			c.Analysis.EstimatedValue,
			c.Analysis.Standing,
			c.Analysis.Scale,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteHistoryCSV writes outreach history records, oldest first as given
func WriteHistoryCSV(w io.Writer, records []models.OutreachRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(historyExportHeader); err != nil {
		return err
	}
	for _, r := range records {
		record := []string{
			strconv.FormatUint(uint64(r.Seq), 10),
			r.ContactID,
			r.Name,
			r.Email,
			string(r.Status),
			r.Date.UTC().Format(time.RFC3339),
			r.RunID,
			r.Detail,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func boolFlag(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
