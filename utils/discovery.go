package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"equireach/models"

	"google.golang.org/genai"
)

// PartnerQuery describes a stockist/partner discovery search
type PartnerQuery struct {
	Country      string `json:"country" validate:"required,max=100"`
	BusinessType string `json:"business_type" validate:"required,max=100"`
	City         string `json:"city" validate:"omitempty,max=100"`
}

// ExhibitorQuery describes an event-exhibitor discovery search
type ExhibitorQuery struct {
	Continent   string `json:"continent" validate:"omitempty,max=100"`
	Country     string `json:"country" validate:"required,max=100"`
	Industry    string `json:"industry" validate:"required,max=100"`
	EventFilter string `json:"event_filter" validate:"omitempty,max=200"`
}

// ContactSearcher is the structured contact search collaborator
type ContactSearcher interface {
	SearchPartners(ctx context.Context, q PartnerQuery) ([]models.Contact, error)
	SearchExhibitors(ctx context.Context, q ExhibitorQuery) ([]models.Contact, error)
}

// GeminiSearcher discovers contacts through a Gemini model in JSON response mode
type GeminiSearcher struct {
	generate func(ctx context.Context, prompt string) (string, error)
	now      func() time.Time
}

func NewGeminiSearcher(ctx context.Context, apiKey, model string) (*GeminiSearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(discoveryInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    discoverySchema,
	}

	return &GeminiSearcher{
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
		now: time.Now,
	}, nil
}

func (s *GeminiSearcher) SearchPartners(ctx context.Context, q PartnerQuery) ([]models.Contact, error) {
	if err := ValidateStruct(q); err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("List real %s businesses in %s", q.BusinessType, q.Country)
	if q.City != "" {
		prompt += fmt.Sprintf(", focusing on %s", q.City)
	}
	prompt += " that could stock or recommend premium equine supplements."
	return s.search(ctx, prompt)
}

func (s *GeminiSearcher) SearchExhibitors(ctx context.Context, q ExhibitorQuery) ([]models.Contact, error) {
	if err := ValidateStruct(q); err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("List companies in the %s industry from %s", q.Industry, q.Country)
	if q.Continent != "" {
		prompt += fmt.Sprintf(" (%s)", q.Continent)
	}
	prompt += " that exhibit at equestrian trade shows or events"
	if q.EventFilter != "" {
		prompt += fmt.Sprintf(", limited to events matching %q", q.EventFilter)
	}
	prompt += ". Set the event field to the event each company exhibits at."
	return s.search(ctx, prompt)
}

func (s *GeminiSearcher) search(ctx context.Context, prompt string) ([]models.Contact, error) {
	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	contacts, err := decodeDiscovered(raw, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	return contacts, nil
}

type discoveredItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	City           string `json:"city"`
	Country        string `json:"country"`
	Website        string `json:"website"`
	ProfileURL     string `json:"profile_url"`
	Category       string `json:"category"`
	Email          string `json:"email"`
	Event          string `json:"event"`
	HasEmail       bool   `json:"has_email"`
	HasForm        bool   `json:"has_form"`
	HasPhone       bool   `json:"has_phone"`
	EstimatedValue string `json:"estimated_value"`
	Standing       string `json:"standing"`
	Scale          string `json:"scale"`
}

// decodeDiscovered maps collaborator items 1:1 onto contacts, defaulting omitted fields
func decodeDiscovered(raw string, now time.Time) ([]models.Contact, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty response")
	}

	var items []discoveredItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	stamp := now.UnixNano()
	seen := make(map[string]struct{}, len(items))
	contacts := make([]models.Contact, 0, len(items))
	for i, item := range items {
		// ids are unique within a batch; blank or repeated ids are synthesized
		id := strings.TrimSpace(item.ID)
		if _, dup := seen[id]; dup || id == "" {
			id = fmt.Sprintf("ai-%d-%d", i, stamp)
		}
		seen[id] = struct{}{}
		contacts = append(contacts, models.Contact{
			ID:                     id,
			DisplayName:            orDefault(strings.TrimSpace(item.Name), unnamedContact),
			LocationCity:           item.City,
			LocationCountry:        item.Country,
			WebsiteURL:             item.Website,
			ProfessionalProfileURL: item.ProfileURL,
			Category:               item.Category,
			Email:                  item.Email,
			EventAffiliation:       item.Event,
			Channels: models.ContactChannels{
				Email: item.HasEmail,
				Form:  item.HasForm,
				Phone: item.HasPhone,
			},
			Analysis: models.ContactAnalysis{
				EstimatedValue: orDefault(item.EstimatedValue, defaultAnalysisValue),
				Standing:       orDefault(item.Standing, defaultAnalysisValue),
				Scale:          orDefault(item.Scale, defaultAnalysisValue),
			},
		})
	}
	return contacts, nil
}

const discoveryInstruction = "You research B2B leads for a boutique equine supplement brand. " +
	"Return only businesses you are confident exist. Leave unknown fields empty rather than guessing contact details."

var discoverySchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":              {Type: genai.TypeString},
			"name":            {Type: genai.TypeString},
			"city":            {Type: genai.TypeString},
			"country":         {Type: genai.TypeString},
			"website":         {Type: genai.TypeString},
			"profile_url":     {Type: genai.TypeString},
			"category":        {Type: genai.TypeString},
			"email":           {Type: genai.TypeString},
			"event":           {Type: genai.TypeString},
			"has_email":       {Type: genai.TypeBoolean},
			"has_form":        {Type: genai.TypeBoolean},
			"has_phone":       {Type: genai.TypeBoolean},
			"estimated_value": {Type: genai.TypeString},
			"standing":        {Type: genai.TypeString},
			"scale":           {Type: genai.TypeString},
		},
		Required: []string{"name"},
	},
}
