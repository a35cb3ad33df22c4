package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loancrm/models"
)

func personalSection(fieldIDs ...string) models.Section {
	s := models.Section{Title: DefaultIdentitySection}
	for _, id := range fieldIDs {
		s.Fields = append(s.Fields, models.Field{ID: id, Label: id, Type: models.FieldTypeShortText})
	}
	return s
}

func TestResolveIdentityFields(t *testing.T) {
	sections := models.Sections{
		{Title: "贷款需求", Fields: []models.Field{{ID: "amount", Type: models.FieldTypeShortText}}},
		personalSection("email", "name", "phone"),
	}

	ids, err := ResolveIdentityFields(sections, DefaultIdentitySection)
	require.NoError(t, err)
	assert.Equal(t, "email", ids.EmailFieldID)
	assert.Equal(t, "name", ids.NameFieldID)
	assert.Equal(t, "phone", ids.PhoneFieldID)
}

func TestResolveIdentityFieldsEmailOnly(t *testing.T) {
	sections := models.Sections{personalSection("email")}

	ids, err := ResolveIdentityFields(sections, DefaultIdentitySection)
	require.NoError(t, err)
	assert.Equal(t, "email", ids.EmailFieldID)
	assert.Empty(t, ids.NameFieldID)
	assert.Empty(t, ids.PhoneFieldID)
}

func TestResolveIdentityFieldsMissingSection(t *testing.T) {
	sections := models.Sections{
		{Title: "贷款需求", Fields: []models.Field{{ID: "email"}}},
	}

	_, err := ResolveIdentityFields(sections, DefaultIdentitySection)
	assert.ErrorIs(t, err, ErrMalformedDefinition)
}

func TestResolveIdentityFieldsMissingEmailField(t *testing.T) {
	sections := models.Sections{personalSection("name", "phone")}

	_, err := ResolveIdentityFields(sections, DefaultIdentitySection)
	assert.ErrorIs(t, err, ErrMalformedDefinition)
}

func TestResolveIdentityFieldsCustomMarker(t *testing.T) {
	sections := models.Sections{
		{Title: "Personal Information", Fields: []models.Field{{ID: "email"}}},
	}

	ids, err := ResolveIdentityFields(sections, "Personal Information")
	require.NoError(t, err)
	assert.Equal(t, "email", ids.EmailFieldID)
}
