package repository

import (
	"context"
	"database/sql"
	"time"

	"dream_incubator/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// EventQuery narrows an event listing. Zero values mean "no bound".
type EventQuery struct {
	From     time.Time
	To       time.Time
	Type     string
	DeviceID string
	Limit    int
}

type EventRepo interface {
	Append(ctx context.Context, e models.RemEvent) error
	List(ctx context.Context, q EventQuery) ([]models.RemEvent, error)
}

type ScenarioRepo interface {
	Save(ctx context.Context, l models.ScenarioList) error
	Get(ctx context.Context, sessionID string) (*models.ScenarioList, error)
	LoadAll(ctx context.Context) ([]models.ScenarioList, error)
}

type Repository struct {
	EventRepo    EventRepo
	ScenarioRepo ScenarioRepo
	Auth         Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:    NewEventSQLite(db),
		ScenarioRepo: NewScenarioSQLite(db),
		Auth:         NewUserSQLite(db),
	}
}
