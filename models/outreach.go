package models

import "time"

type OutreachStatus string

const (
	StatusSent          OutreachStatus = "Sent"
	StatusReplied       OutreachStatus = "Replied"
	StatusNotInterested OutreachStatus = "Not Interested"
	StatusPending       OutreachStatus = "Pending"
	StatusFailed        OutreachStatus = "Failed"
)

// Valid reports whether s is one of the known history statuses
func (s OutreachStatus) Valid() bool {
	switch s {
	case StatusSent, StatusReplied, StatusNotInterested, StatusPending, StatusFailed:
		return true
	}
	return false
}

// OutreachRecord is one append-only history entry per dispatch attempt.
// ContactID is serialized as "id" since the record is keyed by the contact id at send time.
type OutreachRecord struct {
	Seq       uint           `gorm:"primaryKey;autoIncrement" json:"seq"`
	ContactID string         `gorm:"not null;index" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"index" json:"email"`
	Status    OutreachStatus `gorm:"not null;default:'Sent'" json:"status"`
	Date      time.Time      `gorm:"not null;index" json:"date"`
	RunID     string         `gorm:"index" json:"run_id"`
	Detail    string         `gorm:"type:text" json:"detail,omitempty"`
}

// OutboundMessage is what the dispatch engine hands to the transmitter
type OutboundMessage struct {
	SenderLabel      string `json:"sender_label"`
	RecipientName    string `json:"recipient_name"`
	RecipientAddress string `json:"recipient_address"`
	Subject          string `json:"subject"`
	Body             string `json:"body"`
}
