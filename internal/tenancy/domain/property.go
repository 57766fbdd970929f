package domain

import (
	"strings"
	"time"
)

type Property struct {
	ID          string
	OwnerID     string
	Name        string
	Category    string
	AddressLine string
	City        string
	Region      string
	PostalCode  string
	Country     string
	CreatedAt   time.Time
}

// PropertyPreview is everything an anonymous caller holding a usable invite
// may learn about a property.
type PropertyPreview struct {
	Name           string
	Category       string
	CoarseLocation string
}

// Preview copies the public fields. New Property fields stay private unless
// added here.
func (p Property) Preview() PropertyPreview {
	var parts []string
	for _, s := range []string{p.City, p.Region} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return PropertyPreview{
		Name:           p.Name,
		Category:       p.Category,
		CoarseLocation: strings.Join(parts, ", "),
	}
}
