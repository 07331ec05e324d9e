package models

// Contact represents a prospective business partner produced by discovery or import
type Contact struct {
	ID                     string          `json:"id"`
	DisplayName            string          `json:"display_name"`
	LocationCity           string          `json:"location_city"`
	LocationCountry        string          `json:"location_country"`
	WebsiteURL             string          `json:"website_url,omitempty"`
	ProfessionalProfileURL string          `json:"professional_profile_url,omitempty"`
	Category               string          `json:"category,omitempty"`
	Email                  string          `json:"email,omitempty"`
	EventAffiliation       string          `json:"event_affiliation,omitempty"`
	Channels               ContactChannels `json:"channels"`
	Analysis               ContactAnalysis `json:"analysis"`
}

// ContactChannels lists the contact methods believed available. Advisory only.
type ContactChannels struct {
	Email bool `json:"email"`
	Form  bool `json:"form"`
	Phone bool `json:"phone"`
}

// ContactAnalysis is advisory scoring metadata, never read by dispatch
type ContactAnalysis struct {
	EstimatedValue string `json:"estimated_value"`
	Standing       string `json:"standing"`
	Scale          string `json:"scale"`
}

// ContactGroup is a presentation bucket of contacts sharing a city
type ContactGroup struct {
	City     string    `json:"city"`
	Contacts []Contact `json:"contacts"`
}
