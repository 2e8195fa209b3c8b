// Package render substitutes per-recipient variables into subject and body
// templates. It is a pure string transformation with no I/O.
package render

import (
	"strings"

	"github.com/mailpilot/campaign-engine/internal/domain"
)

// Vars is the fixed set of recognized template placeholders.
type Vars struct {
	FirstName string
	LastName  string
	Email     string
	Country   string
}

// VarsFromContact binds placeholders to contact fields.
func VarsFromContact(c domain.Contact) Vars {
	return Vars{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Country:   strings.TrimSpace(c.Country),
	}
}

// Render replaces {{first_name}}, {{last_name}}, {{email}} and {{country}}
// with the bound values. Unrecognized placeholders are left verbatim so a
// malformed template never aborts a batch send; authors find mistakes by
// inspecting the rendered output.
func Render(text string, vars Vars) string {
	if text == "" {
		return text
	}

	replacer := strings.NewReplacer(
		"{{first_name}}", vars.FirstName,
		"{{last_name}}", vars.LastName,
		"{{email}}", vars.Email,
		"{{country}}", vars.Country,
	)
	return replacer.Replace(text)
}
