package intake

import (
	"errors"
	"fmt"

	"loancrm/models"
)

// DefaultIdentitySection is the section title that carries the identity
// fields. Definitions authored by the questionnaire builder use this
// literal title.
const DefaultIdentitySection = "个人信息"

// Identity field ids inside the marker section, by convention.
const (
	emailFieldID = "email"
	nameFieldID  = "name"
	phoneFieldID = "phone"
)

var ErrMalformedDefinition = errors.New("malformed questionnaire definition")

// IdentityFields locates the deduplication fields of a definition.
// EmailFieldID is always set; name and phone are optional.
type IdentityFields struct {
	EmailFieldID string
	NameFieldID  string
	PhoneFieldID string
}

// ResolveIdentityFields walks the definition once and returns the typed
// identity accessors. It fails with ErrMalformedDefinition when the
// marker section is absent or declares no email field; that is a defect
// in the authored definition, not in the submission.
func ResolveIdentityFields(sections models.Sections, sectionMarker string) (IdentityFields, error) {
	var personal *models.Section
	for i := range sections {
		if sections[i].Title == sectionMarker {
			personal = &sections[i]
			break
		}
	}
	if personal == nil {
		return IdentityFields{}, fmt.Errorf("%w: no section titled %q", ErrMalformedDefinition, sectionMarker)
	}

	var ids IdentityFields
	for _, f := range personal.Fields {
		switch f.ID {
		case emailFieldID:
			ids.EmailFieldID = f.ID
		case nameFieldID:
			ids.NameFieldID = f.ID
		case phoneFieldID:
			ids.PhoneFieldID = f.ID
		}
	}
	if ids.EmailFieldID == "" {
		return IdentityFields{}, fmt.Errorf("%w: section %q declares no %q field", ErrMalformedDefinition, sectionMarker, emailFieldID)
	}
	return ids, nil
}
