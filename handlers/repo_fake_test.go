package handlers

import (
	"context"
	"sync"
	"time"

	"loancrm/models"
)

// fakeRepo is an in-memory models.Repository with the same email
// uniqueness guarantee the Postgres index provides.
type fakeRepo struct {
	mu             sync.Mutex
	clients        map[uint]*models.Client
	clientEmails   map[string]uint
	users          map[uint]*models.User
	userEmails     map[string]uint
	questionnaires map[uint]*models.Questionnaire
	responses      []models.QuestionnaireResponse
	nextID         uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients:        make(map[uint]*models.Client),
		clientEmails:   make(map[string]uint),
		users:          make(map[uint]*models.User),
		userEmails:     make(map[string]uint),
		questionnaires: make(map[uint]*models.Questionnaire),
	}
}

func (r *fakeRepo) id() uint {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) CreateClient(_ context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clientEmails[client.Email]; exists {
		return models.ErrDuplicateEmail
	}
	client.ID = r.id()
	client.CreatedAt = time.Now()
	copied := *client
	r.clients[client.ID] = &copied
	r.clientEmails[client.Email] = client.ID
	return nil
}

func (r *fakeRepo) GetClientByID(_ context.Context, id uint) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (r *fakeRepo) FindClientByEmail(_ context.Context, email string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.clientEmails[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *r.clients[id]
	return &copied, nil
}

func (r *fakeRepo) ListClients(_ context.Context) ([]models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeRepo) UpdateClient(_ context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.clients[client.ID]
	if !ok {
		return models.ErrNotFound
	}
	if other, exists := r.clientEmails[client.Email]; exists && other != client.ID {
		return models.ErrDuplicateEmail
	}
	delete(r.clientEmails, old.Email)
	copied := *client
	r.clients[client.ID] = &copied
	r.clientEmails[client.Email] = client.ID
	return nil
}

func (r *fakeRepo) DeleteClient(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[id]
	if !ok {
		return models.ErrNotFound
	}
	delete(r.clientEmails, client.Email)
	delete(r.clients, id)
	return nil
}

func (r *fakeRepo) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.userEmails[user.Email]; exists {
		return models.ErrDuplicateEmail
	}
	user.ID = r.id()
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.ID] = &copied
	r.userEmails[user.Email] = user.ID
	return nil
}

func (r *fakeRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.userEmails[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *r.users[id]
	return &copied, nil
}

func (r *fakeRepo) ListUsers(_ context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeRepo) CreateQuestionnaire(_ context.Context, q *models.Questionnaire) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q.ID = r.id()
	q.CreatedAt = time.Now()
	copied := *q
	r.questionnaires[q.ID] = &copied
	return nil
}

func (r *fakeRepo) GetQuestionnaireByID(_ context.Context, id uint) (*models.Questionnaire, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questionnaires[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *fakeRepo) GetQuestionnaireByPublicID(_ context.Context, publicID string) (*models.Questionnaire, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questionnaires {
		if q.PublicID == publicID {
			copied := *q
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *fakeRepo) ListQuestionnaires(_ context.Context) ([]models.Questionnaire, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Questionnaire, 0, len(r.questionnaires))
	for _, q := range r.questionnaires {
		out = append(out, *q)
	}
	return out, nil
}

func (r *fakeRepo) PublishQuestionnaire(_ context.Context, id uint) (*models.Questionnaire, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questionnaires[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if q.Status == models.QuestionnaireStatusPublished {
		return nil, models.ErrAlreadyPublished
	}
	now := time.Now()
	q.Status = models.QuestionnaireStatusPublished
	q.PublishedAt = &now
	copied := *q
	return &copied, nil
}

func (r *fakeRepo) CreateResponse(_ context.Context, resp *models.QuestionnaireResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp.ID = r.id()
	resp.CreatedAt = time.Now()
	r.responses = append(r.responses, *resp)
	return nil
}

func (r *fakeRepo) ListResponsesByQuestionnaire(_ context.Context, questionnaireID uint) ([]models.QuestionnaireResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.QuestionnaireResponse
	for _, resp := range r.responses {
		if resp.QuestionnaireID != questionnaireID {
			continue
		}
		if client, ok := r.clients[resp.ClientID]; ok {
			resp.Client = *client
		}
		out = append(out, resp)
	}
	return out, nil
}

func (r *fakeRepo) Ping(_ context.Context) error { return nil }
func (r *fakeRepo) Close() error                 { return nil }
