package utils

import (
	"fmt"
	"strings"

	"equireach/models"
)

// Recognized template placeholders
const (
	PlaceholderName    = "[Partner Name]"
	PlaceholderCity    = "[City]"
	PlaceholderCountry = "[Country]"
	PlaceholderEvent   = "[Event Name]"
)

var Placeholders = []string{PlaceholderName, PlaceholderCity, PlaceholderCountry, PlaceholderEvent}

// Workflows seed different default templates
const (
	WorkflowPartners   = "partners"
	WorkflowExhibitors = "exhibitors"
)

const (
	defaultEventAffiliation = "your upcoming equestrian events"
	noticeSeparator         = "\n\n---\n"
)

var defaultTemplates = map[string]string{
	WorkflowPartners: `Dear [Partner Name],

We have been following the work of equestrian businesses in [City], [Country], and believe our premium equine supplements would be a natural fit for your clients.

Would you be open to a short call to discuss a stockist or referral partnership?

Warm regards`,
	WorkflowExhibitors: `Dear [Partner Name],

We noticed your participation in [Event Name] and would love to explore a collaboration around our premium equine nutrition range for visitors in [City], [Country].

Could we arrange a brief conversation ahead of the event?

Warm regards`,
}

// DefaultTemplate returns the seed template for a workflow, falling back to partners
func DefaultTemplate(workflow string) string {
	if t, ok := defaultTemplates[workflow]; ok {
		return t
	}
	return defaultTemplates[WorkflowPartners]
}

// OptOutNotice is the fixed professional-intent notice appended to every message
func OptOutNotice(organization string) string {
	return fmt.Sprintf(
		"This message was sent by %s for professional partnership purposes only. "+
			"If you would prefer not to hear from us again, reply with \"unsubscribe\" and you will not be contacted further.",
		organization,
	)
}

// MessageRenderer expands outreach templates for a single sending organization
type MessageRenderer struct {
	notice string
}

func NewMessageRenderer(organization string) *MessageRenderer {
	return &MessageRenderer{notice: OptOutNotice(organization)}
}

// Notice returns the notice appended by Render
func (r *MessageRenderer) Notice() string {
	return r.notice
}

// Render substitutes every recognized placeholder with the contact's fields and appends
// the opt-out notice. Unrecognized tokens are left as they are.
func (r *MessageRenderer) Render(template string, contact models.Contact) string {
	event := contact.EventAffiliation
	if strings.TrimSpace(event) == "" {
		event = defaultEventAffiliation
	}

	replacer := strings.NewReplacer(
		PlaceholderName, contact.DisplayName,
		PlaceholderCity, contact.LocationCity,
		PlaceholderCountry, contact.LocationCountry,
		PlaceholderEvent, event,
	)
	return replacer.Replace(template) + noticeSeparator + r.notice
}

// Subject derives the message subject from the campaign label and the contact name
func Subject(campaignLabel string, contact models.Contact) string {
	return fmt.Sprintf("%s | %s", campaignLabel, contact.DisplayName)
}
