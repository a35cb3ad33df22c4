package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"loancrm/intake"
	"loancrm/models"
	"loancrm/monitoring"
	"loancrm/utils"
)

// definitionCacheTTL bounds how stale a cached published definition can
// get. Definitions are immutable once published, so the TTL only
// matters for evicting deleted share links.
const definitionCacheTTL = 10 * time.Minute

type QuestionnaireHandler struct {
	repo      models.Repository
	processor *intake.Processor
	cache     utils.RedisClient
	kafka     utils.KafkaProducer
}

func NewQuestionnaireHandler(repo models.Repository, processor *intake.Processor, cache utils.RedisClient, kafka utils.KafkaProducer) *QuestionnaireHandler {
	return &QuestionnaireHandler{
		repo:      repo,
		processor: processor,
		cache:     cache,
		kafka:     kafka,
	}
}

type QuestionnaireRequest struct {
	Title       string          `json:"title" binding:"required,min=1,max=200"`
	Description string          `json:"description"`
	Sections    models.Sections `json:"sections" binding:"required"`
}

type QuestionnaireResponseDTO struct {
	ID          uint            `json:"id"`
	PublicID    string          `json:"public_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Sections    models.Sections `json:"sections"`
	Status      string          `json:"status"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (h *QuestionnaireHandler) CreateQuestionnaire(c *gin.Context) {
	var req QuestionnaireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := &models.Questionnaire{
		PublicID:    uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Sections:    req.Sections,
		Status:      models.QuestionnaireStatusDraft,
	}

	if err := h.repo.CreateQuestionnaire(c.Request.Context(), q); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create questionnaire"})
		return
	}

	c.JSON(http.StatusCreated, toQuestionnaireDTO(q))
}

func (h *QuestionnaireHandler) ListQuestionnaires(c *gin.Context) {
	qs, err := h.repo.ListQuestionnaires(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list questionnaires"})
		return
	}

	out := make([]QuestionnaireResponseDTO, len(qs))
	for i := range qs {
		out[i] = toQuestionnaireDTO(&qs[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *QuestionnaireHandler) GetQuestionnaire(c *gin.Context) {
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

	c.JSON(http.StatusOK, toQuestionnaireDTO(q))
}

// PublishQuestionnaire performs the one-way draft -> published
// transition. Publishing is terminal: there is no unpublish and no edit
// path afterwards.
func (h *QuestionnaireHandler) PublishQuestionnaire(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid questionnaire ID format"})
		return
	}

	q, err := h.repo.PublishQuestionnaire(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "questionnaire not found"})
		case errors.Is(err, models.ErrAlreadyPublished):
			c.JSON(http.StatusConflict, gin.H{"error": "questionnaire is already published"})
		default:
			c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish questionnaire"})
		}
		return
	}

	c.JSON(http.StatusOK, toQuestionnaireDTO(q))
}

// GetPublicQuestionnaire serves the definition behind the anonymous
// form. Only published questionnaires are visible; drafts 404.
func (h *QuestionnaireHandler) GetPublicQuestionnaire(c *gin.Context) {
	publicID := c.Param("publicId")

	if h.cache != nil {
		if cached, err := h.cache.GetFromCache(c.Request.Context(), definitionCacheKey(publicID)); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		}
	}

	q, err := h.repo.GetQuestionnaireByPublicID(c.Request.Context(), publicID)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "questionnaire not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load questionnaire"})
		return
	}
	if q.Status != models.QuestionnaireStatusPublished {
		c.JSON(http.StatusNotFound, gin.H{"error": "questionnaire not found"})
		return
	}

	dto := toQuestionnaireDTO(q)
	if h.cache != nil {
		if data, err := json.Marshal(dto); err == nil {
			if err := h.cache.SetToCache(c.Request.Context(), definitionCacheKey(publicID), string(data), definitionCacheTTL); err != nil {
				log.Printf("Failed to cache questionnaire %s: %v", publicID, err)
			}
		}
	}

	c.JSON(http.StatusOK, dto)
}

// SubmitQuestionnaire is the anonymous intake endpoint. The body is the
// raw field-id to answer object; the processor owns all semantics.
func (h *QuestionnaireHandler) SubmitQuestionnaire(c *gin.Context) {
	publicID := c.Param("publicId")

	var answers intake.Answers
	if err := c.ShouldBindJSON(&answers); err != nil {
		monitoring.IntakeSubmissions.WithLabelValues("validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object of field answers"})
		return
	}

	result, err := h.processor.Submit(c.Request.Context(), publicID, answers)
	if err != nil {
		h.renderSubmitError(c, publicID, err)
		return
	}

	monitoring.IntakeSubmissions.WithLabelValues("ok").Inc()
	if result.ClientCreated {
		monitoring.IntakeClientsCreated.Inc()
	}

	if h.kafka != nil {
		go h.sendIntakeEvent(publicID, result)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "questionnaire submitted",
		"response_id": result.ResponseID,
	})
}

func (h *QuestionnaireHandler) renderSubmitError(c *gin.Context, publicID string, err error) {
	var validationErr *intake.ValidationError
	switch {
	case errors.Is(err, intake.ErrQuestionnaireNotFound):
		monitoring.IntakeSubmissions.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "questionnaire not found"})
	case errors.Is(err, intake.ErrMalformedDefinition):
		// Server-side data defect, but the submitter cannot proceed
		// either way. Logged loudly so the authored definition gets
		// fixed.
		monitoring.IntakeSubmissions.WithLabelValues("malformed_definition").Inc()
		log.Printf("Malformed questionnaire definition %s: %v", publicID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "questionnaire definition is malformed"})
	case errors.As(err, &validationErr):
		monitoring.IntakeSubmissions.WithLabelValues("validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.FieldID})
	default:
		monitoring.IntakeSubmissions.WithLabelValues("error").Inc()
		c.Error(err)
		log.Printf("Failed to process submission for questionnaire %s: %v", publicID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process submission"})
	}
}

func (h *QuestionnaireHandler) sendIntakeEvent(publicID string, result *intake.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := map[string]interface{}{
		"event":            "response_submitted",
		"questionnaire_id": publicID,
		"response_id":      result.ResponseID,
		"client": map[string]interface{}{
			"id": result.ClientID,
		},
		"client_created": result.ClientCreated,
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal Kafka event: %v", err)
		return
	}
	if err := h.kafka.SendMessage(ctx, utils.EventsTopic, nil, jsonData); err != nil {
		log.Printf("Failed to send Kafka message: %v", err)
	}
}

func definitionCacheKey(publicID string) string {
	return "questionnaire:" + publicID
}

func toQuestionnaireDTO(q *models.Questionnaire) QuestionnaireResponseDTO {
	return QuestionnaireResponseDTO{
		ID:          q.ID,
		PublicID:    q.PublicID,
		Title:       q.Title,
		Description: q.Description,
		Sections:    q.Sections,
		Status:      q.Status,
		PublishedAt: q.PublishedAt,
		CreatedAt:   q.CreatedAt,
	}
}
