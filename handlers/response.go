package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loancrm/intake"
	"loancrm/models"
)

// ResponseHandler is the advisor-facing review surface: read-only
// formatting of stored submissions against the declared definition.
type ResponseHandler struct {
	repo models.Repository
}

func NewResponseHandler(repo models.Repository) *ResponseHandler {
	return &ResponseHandler{repo: repo}
}

// RenderedAnswer is one declared field paired with its stored answer.
// Value is set for scalar answers, Values for multi-choice. Historical
// payloads that disagree with the field's declared type are rendered in
// the shape they were stored with rather than dropped.
type RenderedAnswer struct {
	FieldID string   `json:"field_id"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Value   string   `json:"value,omitempty"`
	Values  []string `json:"values,omitempty"`
}

type ReviewedResponse struct {
	ID          uint             `json:"id"`
	ClientID    uint             `json:"client_id"`
	ClientName  string           `json:"client_name"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Answers     []RenderedAnswer `json:"answers"`
}

// ListResponses renders every submission for a questionnaire, joined
// with the owning client's display name.
func (h *ResponseHandler) ListResponses(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid questionnaire ID format"})
		return
	}

	q, err := h.repo.GetQuestionnaireByID(c.Request.Context(), id)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "questionnaire not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load questionnaire"})
		return
	}

	responses, err := h.repo.ListResponsesByQuestionnaire(c.Request.Context(), q.ID)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list responses"})
		return
	}

	out := make([]ReviewedResponse, len(responses))
	for i := range responses {
		out[i] = renderResponse(q.Sections, &responses[i])
	}
	c.JSON(http.StatusOK, out)
}

func renderResponse(sections models.Sections, resp *models.QuestionnaireResponse) ReviewedResponse {
	var answers intake.Answers
	if len(resp.Answers) > 0 {
		// A payload that no longer parses is rendered as empty answers
		// rather than failing the whole listing.
		_ = json.Unmarshal(resp.Answers, &answers)
	}

	reviewed := ReviewedResponse{
		ID:          resp.ID,
		ClientID:    resp.ClientID,
		ClientName:  resp.Client.Name,
		SubmittedAt: resp.CreatedAt,
	}

	for _, section := range sections {
		for _, field := range section.Fields {
			reviewed.Answers = append(reviewed.Answers, renderAnswer(field, answers.Get(field.ID)))
		}
	}
	return reviewed
}

func renderAnswer(field models.Field, value intake.AnswerValue) RenderedAnswer {
	rendered := RenderedAnswer{
		FieldID: field.ID,
		Label:   field.Label,
		Type:    field.Type,
	}
	switch {
	case field.Type == models.FieldTypeMultiChoice:
		rendered.Values = value.List()
	case value.IsMulti():
		// Stored as a list although the field is declared scalar; show
		// what was actually written.
		rendered.Values = value.List()
	default:
		rendered.Value = value.Text()
	}
	return rendered
}
