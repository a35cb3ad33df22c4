package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loancrm/intake"
	"loancrm/models"
)

func newTestRouter(repo models.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	processor := intake.NewProcessor(repo, "")
	qh := NewQuestionnaireHandler(repo, processor, nil, nil)
	rh := NewResponseHandler(repo)

	router := gin.New()
	router.GET("/api/v1/public/questionnaires/:publicId", qh.GetPublicQuestionnaire)
	router.POST("/api/v1/public/questionnaires/:publicId/submit", qh.SubmitQuestionnaire)
	router.POST("/api/v1/questionnaires", qh.CreateQuestionnaire)
	router.POST("/api/v1/questionnaires/:id/publish", qh.PublishQuestionnaire)
	router.GET("/api/v1/questionnaires/:id/responses", rh.ListResponses)
	return router
}

func seedQuestionnaire(t *testing.T, repo *fakeRepo, status string) *models.Questionnaire {
	t.Helper()
	q := &models.Questionnaire{
		PublicID: "pub-1",
		Title:    "贷款意向问卷",
		Status:   status,
		Sections: models.Sections{
			{
				Title: intake.DefaultIdentitySection,
				Fields: []models.Field{
					{ID: "email", Label: "邮箱", Type: models.FieldTypeEmail, Required: true},
					{ID: "name", Label: "姓名", Type: models.FieldTypeShortText},
					{ID: "phone", Label: "电话", Type: models.FieldTypePhone},
				},
			},
			{
				Title: "贷款需求",
				Fields: []models.Field{
					{ID: "purpose", Label: "用途", Type: models.FieldTypeMultiChoice, Options: []string{"A", "B", "C"}},
				},
			},
		},
	}
	require.NoError(t, repo.CreateQuestionnaire(context.Background(), q))
	return q
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitEndpointSuccess(t *testing.T) {
	repo := newFakeRepo()
	seedQuestionnaire(t, repo, models.QuestionnaireStatusPublished)
	router := newTestRouter(repo)

	w := doJSON(router, http.MethodPost, "/api/v1/public/questionnaires/pub-1/submit",
		`{"email":"a@x.com","name":"Zhang","phone":"123","purpose":["A","C"]}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotZero(t, body["response_id"])

	client, err := repo.FindClientByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Zhang", client.Name)
}

func TestSubmitEndpointErrorMapping(t *testing.T) {
	repo := newFakeRepo()
	published := seedQuestionnaire(t, repo, models.QuestionnaireStatusPublished)

	malformed := &models.Questionnaire{
		PublicID: "pub-broken",
		Title:    "broken",
		Status:   models.QuestionnaireStatusPublished,
		Sections: models.Sections{{Title: "no identity here"}},
	}
	require.NoError(t, repo.CreateQuestionnaire(context.Background(), malformed))

	draft := &models.Questionnaire{
		PublicID: "pub-draft",
		Title:    "draft",
		Status:   models.QuestionnaireStatusDraft,
		Sections: published.Sections,
	}
	require.NoError(t, repo.CreateQuestionnaire(context.Background(), draft))

	router := newTestRouter(repo)

	cases := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"unknown questionnaire", "/api/v1/public/questionnaires/missing/submit", `{"email":"a@x.com"}`, http.StatusNotFound},
		{"draft is invisible", "/api/v1/public/questionnaires/pub-draft/submit", `{"email":"a@x.com"}`, http.StatusNotFound},
		{"malformed definition", "/api/v1/public/questionnaires/pub-broken/submit", `{"email":"a@x.com"}`, http.StatusBadRequest},
		{"missing email answer", "/api/v1/public/questionnaires/pub-1/submit", `{"name":"Zhang"}`, http.StatusBadRequest},
		{"empty email answer", "/api/v1/public/questionnaires/pub-1/submit", `{"email":""}`, http.StatusBadRequest},
		{"non-object body", "/api/v1/public/questionnaires/pub-1/submit", `["not","an","object"]`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.wantCode, w.Code, w.Body.String())
		})
	}

	// None of the failures may leave partial state behind.
	assert.Empty(t, repo.clientEmails)
	assert.Empty(t, repo.responses)
}

func TestSubmitEndpointIdentifiesMissingField(t *testing.T) {
	repo := newFakeRepo()
	seedQuestionnaire(t, repo, models.QuestionnaireStatusPublished)
	router := newTestRouter(repo)

	w := doJSON(router, http.MethodPost, "/api/v1/public/questionnaires/pub-1/submit", `{"name":"Zhang"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "email", body["field"])
}

func TestPublicGetHidesDrafts(t *testing.T) {
	repo := newFakeRepo()
	seedQuestionnaire(t, repo, models.QuestionnaireStatusDraft)
	router := newTestRouter(repo)

	w := doJSON(router, http.MethodGet, "/api/v1/public/questionnaires/pub-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishIsOneWay(t *testing.T) {
	repo := newFakeRepo()
	q := seedQuestionnaire(t, repo, models.QuestionnaireStatusDraft)
	router := newTestRouter(repo)

	w := doJSON(router, http.MethodPost, "/api/v1/questionnaires/1/publish", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dto QuestionnaireResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, models.QuestionnaireStatusPublished, dto.Status)
	assert.NotNil(t, dto.PublishedAt)

	w = doJSON(router, http.MethodPost, "/api/v1/questionnaires/1/publish", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Published definitions become reachable from the public form.
	w = doJSON(router, http.MethodGet, "/api/v1/public/questionnaires/"+q.PublicID, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateQuestionnaireAssignsPublicID(t *testing.T) {
	repo := newFakeRepo()
	router := newTestRouter(repo)

	w := doJSON(router, http.MethodPost, "/api/v1/questionnaires",
		`{"title":"意向问卷","sections":[{"title":"个人信息","fields":[{"id":"email","label":"邮箱","type":"email","required":true}]}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var dto QuestionnaireResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.NotEmpty(t, dto.PublicID)
	assert.Equal(t, models.QuestionnaireStatusDraft, dto.Status)
}

func TestListResponsesRendersAnswers(t *testing.T) {
	repo := newFakeRepo()
	q := seedQuestionnaire(t, repo, models.QuestionnaireStatusPublished)
	router := newTestRouter(repo)

	w := doJSON(router, http.MethodPost, "/api/v1/public/questionnaires/"+q.PublicID+"/submit",
		`{"email":"a@x.com","name":"Zhang","purpose":["A","C"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/v1/questionnaires/1/responses", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reviewed []ReviewedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviewed))
	require.Len(t, reviewed, 1)
	assert.Equal(t, "Zhang", reviewed[0].ClientName)

	byField := make(map[string]RenderedAnswer)
	for _, a := range reviewed[0].Answers {
		byField[a.FieldID] = a
	}
	assert.Equal(t, "a@x.com", byField["email"].Value)
	assert.Equal(t, []string{"A", "C"}, byField["purpose"].Values, "multi-choice order is preserved")
	assert.Empty(t, byField["phone"].Value, "unanswered declared fields render empty")
}
