package domain

import "strings"

// Contact is the read model this pipeline needs from the contact store:
// address fields for delivery and template variables. Contact CRUD lives in a
// separate service.
type Contact struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Country   string
}

// HasEmail reports whether the contact is deliverable at all.
func (c Contact) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}

// Template is the read model for a stored subject/body template.
type Template struct {
	ID          string
	SubjectLine string
	ContentHTML string
}
