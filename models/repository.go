package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateEmail   = errors.New("email already exists")
	ErrAlreadyPublished = errors.New("questionnaire already published")
)

type Repository interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClientByID(ctx context.Context, id uint) (*Client, error)
	FindClientByEmail(ctx context.Context, email string) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	UpdateClient(ctx context.Context, client *Client) error
	DeleteClient(ctx context.Context, id uint) error

	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	CreateQuestionnaire(ctx context.Context, q *Questionnaire) error
	GetQuestionnaireByID(ctx context.Context, id uint) (*Questionnaire, error)
	GetQuestionnaireByPublicID(ctx context.Context, publicID string) (*Questionnaire, error)
	ListQuestionnaires(ctx context.Context) ([]Questionnaire, error)
	PublishQuestionnaire(ctx context.Context, id uint) (*Questionnaire, error)

	CreateResponse(ctx context.Context, resp *QuestionnaireResponse) error
	ListResponsesByQuestionnaire(ctx context.Context, questionnaireID uint) ([]QuestionnaireResponse, error)

	Ping(ctx context.Context) error
	Close() error
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Client{}, &User{}, &Questionnaire{}, &QuestionnaireResponse{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) CreateClient(ctx context.Context, client *Client) error {
	client.Status = NormalizeClientStatus(client.Status)
	if err := r.db.WithContext(ctx).Create(client).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) GetClientByID(ctx context.Context, id uint) (*Client, error) {
	var client Client
	if err := r.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	client.Status = NormalizeClientStatus(client.Status)
	return &client, nil
}

func (r *PostgresRepository) FindClientByEmail(ctx context.Context, email string) (*Client, error) {
	var client Client
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&client).Error; err != nil {
		return nil, translateNotFound(err)
	}
	client.Status = NormalizeClientStatus(client.Status)
	return &client, nil
}

func (r *PostgresRepository) ListClients(ctx context.Context) ([]Client, error) {
	var clients []Client
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&clients).Error; err != nil {
		return nil, err
	}
	for i := range clients {
		clients[i].Status = NormalizeClientStatus(clients[i].Status)
	}
	return clients, nil
}

func (r *PostgresRepository) UpdateClient(ctx context.Context, client *Client) error {
	client.Status = NormalizeClientStatus(client.Status)
	if err := r.db.WithContext(ctx).Save(client).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) DeleteClient(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&Client{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PostgresRepository) CreateQuestionnaire(ctx context.Context, q *Questionnaire) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *PostgresRepository) GetQuestionnaireByID(ctx context.Context, id uint) (*Questionnaire, error) {
	var q Questionnaire
	if err := r.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &q, nil
}

func (r *PostgresRepository) GetQuestionnaireByPublicID(ctx context.Context, publicID string) (*Questionnaire, error) {
	var q Questionnaire
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&q).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &q, nil
}

func (r *PostgresRepository) ListQuestionnaires(ctx context.Context) ([]Questionnaire, error) {
	var qs []Questionnaire
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&qs).Error; err != nil {
		return nil, err
	}
	return qs, nil
}

// PublishQuestionnaire performs the one-way draft -> published
// transition. The guarded UPDATE keeps the transition race-free without
// a separate read.
func (r *PostgresRepository) PublishQuestionnaire(ctx context.Context, id uint) (*Questionnaire, error) {
	result := r.db.WithContext(ctx).
		Model(&Questionnaire{}).
		Where("id = ? AND status = ?", id, QuestionnaireStatusDraft).
		Updates(map[string]interface{}{
			"status":       QuestionnaireStatusPublished,
			"published_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		q, err := r.GetQuestionnaireByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if q.Status == QuestionnaireStatusPublished {
			return nil, ErrAlreadyPublished
		}
		return nil, ErrNotFound
	}
	return r.GetQuestionnaireByID(ctx, id)
}

func (r *PostgresRepository) CreateResponse(ctx context.Context, resp *QuestionnaireResponse) error {
	return r.db.WithContext(ctx).Omit("Client").Create(resp).Error
}

func (r *PostgresRepository) ListResponsesByQuestionnaire(ctx context.Context, questionnaireID uint) ([]QuestionnaireResponse, error) {
	var responses []QuestionnaireResponse
	err := r.db.WithContext(ctx).
		Where("questionnaire_id = ?", questionnaireID).
		Preload("Client").
		Order("created_at DESC").
		Find(&responses).Error
	if err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// rejection (SQLSTATE 23505). The intake flow relies on this to detect
// the concurrent create race on the client email index.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
