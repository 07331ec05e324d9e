package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"equireach/models"
)

// ImportOptions controls delimited-text parsing
type ImportOptions struct {
	Delimiter rune
	Now       func() time.Time
}

const (
	defaultAnalysisValue = "N/A"
	unnamedContact       = "Unnamed Business"
)

// column aliases, most specific first
var (
	nameColumns     = []string{"name", "company", "business", "business name", "company name"}
	cityColumns     = []string{"city", "location", "town"}
	countryColumns  = []string{"country", "nation"}
	websiteColumns  = []string{"website", "url", "site"}
	profileColumns  = []string{"linkedin", "profile", "profile url", "professional profile"}
	categoryColumns = []string{"category", "type", "business type", "industry"}
	emailColumns    = []string{"email", "e-mail", "email address"}
	eventColumns    = []string{"event", "event name", "exhibition"}
	hasEmailColumns = []string{"has_email", "has email"}
	hasFormColumns  = []string{"has_form", "has form"}
	hasPhoneColumns = []string{"has_phone", "has phone"}
	valueColumns    = []string{"estimated_value", "estimated value"}
	standingColumns = []string{"standing"}
	scaleColumns    = []string{"scale"}
)

// ParseContactsCSV turns delimited text with a mandatory header row into contacts.
// Blank rows are skipped; a header without data rows is rejected.
func ParseContactsCSV(text string, opts ImportOptions) ([]models.Contact, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, ErrImportMissingHeader
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrImportMissingHeader
		}
		return nil, fmt.Errorf("%w: header: %v", ErrImportMalformed, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	stamp := opts.Now().UnixNano()
	var contacts []models.Contact
	for rowIndex := 0; ; rowIndex++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrImportMalformed, rowIndex+1, err)
		}
		if isBlankRecord(record) {
			continue
		}

		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(record) && key != "" {
				if _, exists := row[key]; !exists {
					row[key] = strings.TrimSpace(record[i])
				}
			}
		}
		contacts = append(contacts, contactFromRow(row, fmt.Sprintf("imp-%d-%d", rowIndex, stamp)))
	}

	if len(contacts) == 0 {
		return nil, ErrImportNoRows
	}
	return contacts, nil
}

func contactFromRow(row map[string]string, id string) models.Contact {
	name := lookup(row, nameColumns)
	if name == "" {
		name = unnamedContact
	}
	return models.Contact{
		ID:                     id,
		DisplayName:            name,
		LocationCity:           lookup(row, cityColumns),
		LocationCountry:        lookup(row, countryColumns),
		WebsiteURL:             lookup(row, websiteColumns),
		ProfessionalProfileURL: lookup(row, profileColumns),
		Category:               lookup(row, categoryColumns),
		Email:                  lookup(row, emailColumns),
		EventAffiliation:       lookup(row, eventColumns),
		Channels: models.ContactChannels{
			Email: lookup(row, hasEmailColumns) == "TRUE",
			Form:  lookup(row, hasFormColumns) == "TRUE",
			Phone: lookup(row, hasPhoneColumns) == "TRUE",
		},
		Analysis: models.ContactAnalysis{
			EstimatedValue: orDefault(lookup(row, valueColumns), defaultAnalysisValue),
			Standing:       orDefault(lookup(row, standingColumns), defaultAnalysisValue),
			Scale:          orDefault(lookup(row, scaleColumns), defaultAnalysisValue),
		},
	}
}

// lookup returns the first non-empty value among the aliases
func lookup(row map[string]string, aliases []string) string {
	for _, alias := range aliases {
		if v := row[alias]; v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
