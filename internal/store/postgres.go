package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Slug, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Slug, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM projects WHERE slug = $1`, slug,
	).Scan(&p.ID, &p.Name, &p.Slug, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project by slug: %w", err)
	}
	return &p, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, project_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.ProjectID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, projectID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE project_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL`, id, projectID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Integration Keys ---

func (s *PostgresStore) GetIntegrationKey(ctx context.Context, key string) (*models.IntegrationKey, error) {
	var k models.IntegrationKey
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, key, label, last_used_at, deleted_at, created_at
		 FROM integration_keys WHERE key = $1 AND deleted_at IS NULL`, key,
	).Scan(&k.ID, &k.ProjectID, &k.Key, &k.Label, &k.LastUsedAt, &k.DeletedAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration key: %w", err)
	}
	return &k, nil
}

func (s *PostgresStore) UpdateIntegrationKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE integration_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update integration key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateIntegrationKey(ctx context.Context, key *models.IntegrationKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO integration_keys (id, project_id, key, label, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		key.ID, key.ProjectID, key.Key, key.Label, key.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create integration key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListIntegrationKeys(ctx context.Context, projectID uuid.UUID) ([]*models.IntegrationKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, key, label, last_used_at, deleted_at, created_at
		 FROM integration_keys WHERE project_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list integration keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.IntegrationKey
	for rows.Next() {
		var k models.IntegrationKey
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.Key, &k.Label, &k.LastUsedAt, &k.DeletedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan integration key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeIntegrationKey(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE integration_keys SET deleted_at = NOW()
		 WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL`, id, projectID)
	if err != nil {
		return fmt.Errorf("revoke integration key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Reports ---

const reportColumns = `id, project_id, type, title, description, status, priority,
	reporter_name, reporter_email, url, user_agent,
	console_logs, network_requests, performance_metrics, error_context, interaction_data,
	created_at, updated_at`

func (s *PostgresStore) CreateReport(ctx context.Context, report *models.Report) error {
	consoleLogs, networkRequests, perfMetrics, errorContext, err := marshalDiagnostics(report)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, project_id, type, title, description, status, priority,
		   reporter_name, reporter_email, url, user_agent,
		   console_logs, network_requests, performance_metrics, error_context, interaction_data,
		   created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		report.ID, report.ProjectID, report.Type, report.Title, report.Description,
		report.Status, report.Priority, report.ReporterName, report.ReporterEmail, report.URL, report.UserAgent,
		consoleLogs, networkRequests, perfMetrics, errorContext, interactionData(report),
		report.CreatedAt, report.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id uuid.UUID, projectID uuid.UUID) (*models.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1 AND project_id = $2`, id, projectID)
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

var reportSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"priority":   "priority",
	"title":      "title",
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, int, error) {
	conditions := []string{"project_id = $1"}
	args := []any{filter.ProjectID}
	argIdx := 2

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, filter.Priority)
		argIdx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.From)
		argIdx++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, filter.To)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM reports WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	sortCol, ok := reportSortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	sortDir := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortDir = "ASC"
	}

	dataQuery := fmt.Sprintf(
		`SELECT `+reportColumns+` FROM reports WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		where, sortCol, sortDir, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, total, rows.Err()
}

// ListReportsInWindow loads every report for a project inside the time
// window, ordered oldest first. The analytical read path fetches its input
// set through this single call; correlation and pattern detection then run
// purely in memory.
func (s *PostgresStore) ListReportsInWindow(ctx context.Context, projectID uuid.UUID, from, to time.Time) ([]models.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE project_id = $1 AND created_at >= $2 AND created_at <= $3
		 ORDER BY created_at ASC`, projectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reports in window: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) UpdateReport(ctx context.Context, id uuid.UUID, projectID uuid.UUID, opts ...ReportUpdateOption) (*models.Report, error) {
	params := &reportUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id, projectID}
	argIdx := 3

	if params.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argIdx))
		args = append(args, *params.Title)
		argIdx++
	}
	if params.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *params.Description)
		argIdx++
	}
	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Priority != nil {
		sets = append(sets, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, *params.Priority)
		argIdx++
	}

	query := fmt.Sprintf(
		`UPDATE reports SET %s WHERE id = $1 AND project_id = $2 RETURNING `+reportColumns,
		strings.Join(sets, ", "))

	row := s.pool.QueryRow(ctx, query, args...)
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) DeleteReport(ctx context.Context, id uuid.UUID, projectID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM reports WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Attachments ---

func (s *PostgresStore) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attachments (id, project_id, report_id, object_key, filename, content_type, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ProjectID, a.ReportID, a.ObjectKey, a.Filename, a.ContentType, a.SizeBytes, a.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAttachments(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*models.Attachment, error) {
	if len(ids) == 0 {
		return []*models.Attachment{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, report_id, object_key, filename, content_type, size_bytes, created_at
		 FROM attachments WHERE project_id = $1 AND id = ANY($2)`, projectID, ids)
	if err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.ReportID, &a.ObjectKey, &a.Filename,
			&a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, &a)
	}
	return attachments, rows.Err()
}

// LinkAttachments binds pre-uploaded attachments to a report. The UPDATE only
// touches rows that are still unlinked; if any requested attachment is
// already linked elsewhere (or missing), the row count comes up short and the
// whole link fails with ErrConflict.
func (s *PostgresStore) LinkAttachments(ctx context.Context, reportID uuid.UUID, projectID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE attachments SET report_id = $1
		 WHERE project_id = $2 AND id = ANY($3) AND report_id IS NULL`,
		reportID, projectID, ids)
	if err != nil {
		return fmt.Errorf("link attachments: %w", err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) ListReportAttachments(ctx context.Context, reportID uuid.UUID) ([]*models.Attachment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, report_id, object_key, filename, content_type, size_bytes, created_at
		 FROM attachments WHERE report_id = $1 ORDER BY created_at ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.ReportID, &a.ObjectKey, &a.Filename,
			&a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, &a)
	}
	return attachments, rows.Err()
}

// --- helpers ---

func marshalDiagnostics(report *models.Report) (consoleLogs, networkRequests, perfMetrics, errorContext []byte, err error) {
	if report.ConsoleLogs != nil {
		if consoleLogs, err = json.Marshal(report.ConsoleLogs); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal console logs: %w", err)
		}
	}
	if report.NetworkRequests != nil {
		if networkRequests, err = json.Marshal(report.NetworkRequests); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal network requests: %w", err)
		}
	}
	if report.PerformanceMetrics != nil {
		if perfMetrics, err = json.Marshal(report.PerformanceMetrics); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal performance metrics: %w", err)
		}
	}
	if report.ErrorContext != nil {
		if errorContext, err = json.Marshal(report.ErrorContext); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal error context: %w", err)
		}
	}
	return consoleLogs, networkRequests, perfMetrics, errorContext, nil
}

// interactionData passes the raw blob through, nil when absent so the
// column stays NULL.
func interactionData(report *models.Report) []byte {
	if report.InteractionData == nil {
		return nil
	}
	return []byte(report.InteractionData)
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	var consoleLogs, networkRequests, perfMetrics, errorContext, interaction []byte

	err := row.Scan(&r.ID, &r.ProjectID, &r.Type, &r.Title, &r.Description, &r.Status, &r.Priority,
		&r.ReporterName, &r.ReporterEmail, &r.URL, &r.UserAgent,
		&consoleLogs, &networkRequests, &perfMetrics, &errorContext, &interaction,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(consoleLogs) > 0 {
		if err := json.Unmarshal(consoleLogs, &r.ConsoleLogs); err != nil {
			return nil, fmt.Errorf("unmarshal console logs: %w", err)
		}
	}
	if len(networkRequests) > 0 {
		if err := json.Unmarshal(networkRequests, &r.NetworkRequests); err != nil {
			return nil, fmt.Errorf("unmarshal network requests: %w", err)
		}
	}
	if len(perfMetrics) > 0 {
		if err := json.Unmarshal(perfMetrics, &r.PerformanceMetrics); err != nil {
			return nil, fmt.Errorf("unmarshal performance metrics: %w", err)
		}
	}
	if len(errorContext) > 0 {
		if err := json.Unmarshal(errorContext, &r.ErrorContext); err != nil {
			return nil, fmt.Errorf("unmarshal error context: %w", err)
		}
	}
	if len(interaction) > 0 {
		r.InteractionData = json.RawMessage(interaction)
	}
	return &r, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
