package intake

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerValue is one submitted answer: either a scalar (text,
// single-choice, date, email, phone) or an ordered list of strings
// (multi-choice). Internal code never touches untyped JSON; the union
// converts at the wire boundary and marshals back to the exact shape it
// was submitted with.
type AnswerValue struct {
	text  string
	list  []string
	multi bool
}

func Text(v string) AnswerValue {
	return AnswerValue{text: v}
}

func Choices(vs ...string) AnswerValue {
	return AnswerValue{list: vs, multi: true}
}

// IsMulti reports whether the answer was submitted as a list.
func (a AnswerValue) IsMulti() bool { return a.multi }

// Text returns the scalar value, or "" for a multi-choice answer.
func (a AnswerValue) Text() string { return a.text }

// List returns the submitted choices in submission order. A scalar
// answer yields a single-element list so defensive readers can treat
// any answer as a list.
func (a AnswerValue) List() []string {
	if a.multi {
		return a.list
	}
	if a.text == "" {
		return nil
	}
	return []string{a.text}
}

// Empty reports whether the answer carries no usable value.
func (a AnswerValue) Empty() bool {
	if a.multi {
		return len(a.list) == 0
	}
	return strings.TrimSpace(a.text) == ""
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.multi {
		if a.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(a.list)
	}
	return json.Marshal(a.text)
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*a = AnswerValue{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("malformed multi-choice answer: %w", err)
		}
		*a = AnswerValue{list: list, multi: true}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = AnswerValue{text: text}
		return nil
	}
	// Numbers and booleans show up from loosely built forms; keep their
	// literal text rather than rejecting the whole submission.
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = AnswerValue{text: string(raw)}
	return nil
}

// Answers is a raw submission payload keyed by field id. Unknown keys
// are tolerated and stored verbatim.
type Answers map[string]AnswerValue

// Get returns the answer for a field id; a missing id yields an empty
// scalar.
func (as Answers) Get(fieldID string) AnswerValue {
	return as[fieldID]
}
