package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrConflict = errors.New("resource conflict")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, projectID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error

	GetIntegrationKey(ctx context.Context, key string) (*models.IntegrationKey, error)
	UpdateIntegrationKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateIntegrationKey(ctx context.Context, key *models.IntegrationKey) error
	ListIntegrationKeys(ctx context.Context, projectID uuid.UUID) ([]*models.IntegrationKey, error)
	RevokeIntegrationKey(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error

	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id uuid.UUID, projectID uuid.UUID) (*models.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, int, error)
	ListReportsInWindow(ctx context.Context, projectID uuid.UUID, from, to time.Time) ([]models.Report, error)
	UpdateReport(ctx context.Context, id uuid.UUID, projectID uuid.UUID, opts ...ReportUpdateOption) (*models.Report, error)
	DeleteReport(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error

	CreateAttachment(ctx context.Context, a *models.Attachment) error
	GetAttachments(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*models.Attachment, error)
	LinkAttachments(ctx context.Context, reportID uuid.UUID, projectID uuid.UUID, ids []uuid.UUID) error
	ListReportAttachments(ctx context.Context, reportID uuid.UUID) ([]*models.Attachment, error)
}

// ReportFilter selects and pages a project's report list.
type ReportFilter struct {
	ProjectID uuid.UUID
	Type      string
	Status    string
	Priority  string
	Search    string
	From      time.Time
	To        time.Time
	SortBy    string // created_at, updated_at, priority, title
	SortOrder string // asc or desc
	Page      int
	Limit     int
}

type reportUpdateParams struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

type ReportUpdateOption func(*reportUpdateParams)

func WithTitle(t string) ReportUpdateOption {
	return func(p *reportUpdateParams) { p.Title = &t }
}

func WithDescription(d string) ReportUpdateOption {
	return func(p *reportUpdateParams) { p.Description = &d }
}

func WithStatus(s string) ReportUpdateOption {
	return func(p *reportUpdateParams) { p.Status = &s }
}

func WithPriority(pr string) ReportUpdateOption {
	return func(p *reportUpdateParams) { p.Priority = &pr }
}
