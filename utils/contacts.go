package utils

import (
	"strings"

	"equireach/models"
)

// DefaultCityGroup collects contacts without a city
const DefaultCityGroup = "Regional Hub"

// GroupByCity partitions contacts by city for display, keeping first-seen group order
func GroupByCity(contacts []models.Contact) []models.ContactGroup {
	var groups []models.ContactGroup
	positions := make(map[string]int)

	for _, contact := range contacts {
		city := strings.TrimSpace(contact.LocationCity)
		if city == "" {
			city = DefaultCityGroup
		}
		pos, ok := positions[city]
		if !ok {
			pos = len(groups)
			positions[city] = pos
			groups = append(groups, models.ContactGroup{City: city})
		}
		groups[pos].Contacts = append(groups[pos].Contacts, contact)
	}
	return groups
}

// ContactIDs returns the ids of contacts in list order
func ContactIDs(contacts []models.Contact) []string {
	ids := make([]string, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}
	return ids
}
