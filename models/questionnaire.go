package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	QuestionnaireStatusDraft     = "draft"
	QuestionnaireStatusPublished = "published"
)

// Field types an advisor can declare in a definition.
const (
	FieldTypeShortText    = "short-text"
	FieldTypeLongText     = "long-text"
	FieldTypeSingleChoice = "single-choice"
	FieldTypeMultiChoice  = "multi-choice"
	FieldTypeDate         = "date"
	FieldTypeEmail        = "email"
	FieldTypePhone        = "phone"
)

// Field is one question inside a section. The ID is unique within the
// definition and is the key submissions use in their answer payload.
type Field struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Sections is the ordered definition body, stored as a jsonb column.
type Sections []Section

func (s Sections) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sections: %w", err)
	}
	return string(data), nil
}

func (s *Sections) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported sections column type %T", value)
	}
	return json.Unmarshal(data, s)
}

// Questionnaire is an authored intake definition. PublicID is the share
// token embedded in the anonymous form URL. Sections become immutable
// once Status reaches published; no edit path exists past that point.
type Questionnaire struct {
	gorm.Model
	PublicID    string `gorm:"not null;uniqueIndex"`
	Title       string `gorm:"not null"`
	Description string
	Sections    Sections `gorm:"type:jsonb"`
	Status      string   `gorm:"not null;default:draft"`
	PublishedAt *time.Time
}

// JSONPayload is a raw JSON column kept verbatim. Responses store their
// answer payload this way so historical data survives definition drift.
type JSONPayload []byte

func (p JSONPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	if !json.Valid(p) {
		return nil, errors.New("payload is not valid JSON")
	}
	return string(p), nil
}

func (p *JSONPayload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*p = append((*p)[:0], v...)
	case string:
		*p = JSONPayload(v)
	default:
		return fmt.Errorf("unsupported payload column type %T", value)
	}
	return nil
}

func (p JSONPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *JSONPayload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// QuestionnaireResponse is one submitted answer set. Append-only: the
// service exposes no update or delete path for responses.
type QuestionnaireResponse struct {
	gorm.Model
	QuestionnaireID uint `gorm:"not null;index"`
	ClientID        uint `gorm:"not null;index"`
	Client          Client
	Answers         JSONPayload `gorm:"type:jsonb"`
}
