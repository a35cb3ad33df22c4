package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"loancrm/models"
	"loancrm/monitoring"
)

var ErrQuestionnaireNotFound = errors.New("questionnaire not found")

// ValidationError means the submission itself is unusable; the message
// names the offending field so the form can surface it.
type ValidationError struct {
	FieldID string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required answer for field %q", e.FieldID)
}

// PlaceholderName is assigned when a first-time submitter leaves the
// name field blank.
const PlaceholderName = "unnamed"

// Store is the persistence port the processor needs. models.Repository
// satisfies it; tests inject an in-memory fake.
type Store interface {
	GetQuestionnaireByPublicID(ctx context.Context, publicID string) (*models.Questionnaire, error)
	FindClientByEmail(ctx context.Context, email string) (*models.Client, error)
	CreateClient(ctx context.Context, client *models.Client) error
	CreateResponse(ctx context.Context, resp *models.QuestionnaireResponse) error
}

// Processor turns one raw submission into at most one new client and
// exactly one response row. It holds no state between submissions.
type Processor struct {
	store         Store
	sectionMarker string
}

func NewProcessor(store Store, sectionMarker string) *Processor {
	if sectionMarker == "" {
		sectionMarker = DefaultIdentitySection
	}
	return &Processor{store: store, sectionMarker: sectionMarker}
}

// Result reports what a submission produced.
type Result struct {
	ResponseID    uint
	ClientID      uint
	ClientCreated bool
}

// Submit resolves the questionnaire, extracts the identity fields,
// attaches the submission to a client (creating one on first contact
// with a new email) and appends the response. Nothing is written before
// client resolution, so validation failures leave no partial state.
func (p *Processor) Submit(ctx context.Context, publicID string, answers Answers) (*Result, error) {
	q, err := p.store.GetQuestionnaireByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrQuestionnaireNotFound
		}
		return nil, fmt.Errorf("failed to load questionnaire %s: %w", publicID, err)
	}
	// Drafts are invisible to the public endpoint.
	if q.Status != models.QuestionnaireStatusPublished {
		return nil, ErrQuestionnaireNotFound
	}

	ids, err := ResolveIdentityFields(q.Sections, p.sectionMarker)
	if err != nil {
		return nil, err
	}

	email := answers.Get(ids.EmailFieldID)
	if email.Empty() || email.IsMulti() {
		return nil, &ValidationError{FieldID: ids.EmailFieldID}
	}

	client, created, err := p.resolveClient(ctx, ids, answers)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize answers: %w", err)
	}

	resp := &models.QuestionnaireResponse{
		QuestionnaireID: q.ID,
		ClientID:        client.ID,
		Answers:         models.JSONPayload(payload),
	}
	if err := p.store.CreateResponse(ctx, resp); err != nil {
		return nil, fmt.Errorf("failed to persist response: %w", err)
	}

	return &Result{ResponseID: resp.ID, ClientID: client.ID, ClientCreated: created}, nil
}

// resolveClient looks up the client by the submitted email and creates
// one if absent. An existing record is reused unmodified: a returning
// client submitting a different name on a later form must not overwrite
// what an advisor already curated. The unique index on email is the
// real guard against the concurrent-create race; a duplicate rejection
// is recovered by retrying the lookup and adopting the winner's row.
func (p *Processor) resolveClient(ctx context.Context, ids IdentityFields, answers Answers) (*models.Client, bool, error) {
	email := answers.Get(ids.EmailFieldID).Text()

	client, err := p.store.FindClientByEmail(ctx, email)
	if err == nil {
		return client, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up client by email: %w", err)
	}

	name := answers.Get(ids.NameFieldID).Text()
	if name == "" {
		name = PlaceholderName
	}
	fresh := &models.Client{
		Name:   name,
		Email:  email,
		Phone:  answers.Get(ids.PhoneFieldID).Text(),
		Status: models.ClientStatusPotential,
	}

	err = p.store.CreateClient(ctx, fresh)
	if err == nil {
		return fresh, true, nil
	}
	if !errors.Is(err, models.ErrDuplicateEmail) {
		return nil, false, fmt.Errorf("failed to create client: %w", err)
	}

	// A concurrent submission won the insert between our lookup and
	// create. Adopt its row.
	monitoring.IntakeDedupRaces.Inc()
	client, err = p.store.FindClientByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-read client after duplicate insert: %w", err)
	}
	return client, false, nil
}
