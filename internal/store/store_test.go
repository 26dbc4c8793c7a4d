package store

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/feedbacklens/feedbacklens/pkg/models"
)

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("feedbacklens_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, RunMigrations(connStr, migrationsDir()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgresStore(pool)
}

// defaultProjectID returns the project seeded by the initial migration.
func defaultProjectID(t *testing.T, s *PostgresStore) uuid.UUID {
	t.Helper()
	p, err := s.GetProjectBySlug(context.Background(), "default")
	require.NoError(t, err)
	return p.ID
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func newTestReport(projectID uuid.UUID, title string, createdAt time.Time) *models.Report {
	return &models.Report{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Type:        models.ReportTypeBug,
		Title:       title,
		Description: "something broke",
		Status:      models.ReportStatusActive,
		Priority:    models.PriorityMedium,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestProjects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()

	t.Run("migration seeds default project", func(t *testing.T) {
		p, err := s.GetProjectBySlug(ctx, "default")
		require.NoError(t, err)
		assert.Equal(t, "Default Project", p.Name)
	})

	t.Run("create and get", func(t *testing.T) {
		p := &models.Project{
			ID:        uuid.New(),
			Name:      "Acme Frontend",
			Slug:      "acme-frontend",
			CreatedAt: now(),
			UpdatedAt: now(),
		}
		require.NoError(t, s.CreateProject(ctx, p))

		got, err := s.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, "Acme Frontend", got.Name)
		assert.Equal(t, "acme-frontend", got.Slug)

		bySlug, err := s.GetProjectBySlug(ctx, "acme-frontend")
		require.NoError(t, err)
		assert.Equal(t, p.ID, bySlug.ID)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		p := &models.Project{
			ID:        uuid.New(),
			Name:      "Another Default",
			Slug:      "default",
			CreatedAt: now(),
			UpdatedAt: now(),
		}
		err := s.CreateProject(ctx, p)
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.GetProject(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetProjectBySlug(ctx, "no-such-slug")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAPIKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	newKey := func(prefix string) *models.APIKey {
		return &models.APIKey{
			ID:        uuid.New(),
			ProjectID: projectID,
			Name:      "ci key",
			KeyHash:   "$2a$10$examplehashexamplehashexamplehashexampleha",
			KeyPrefix: prefix,
			Scopes:    []string{"read", "write"},
			CreatedAt: now(),
			UpdatedAt: now(),
		}
	}

	t.Run("create and get by prefix", func(t *testing.T) {
		key := newKey("flk_aaaa")
		require.NoError(t, s.CreateAPIKey(ctx, key))

		got, err := s.GetAPIKeyByPrefix(ctx, "flk_aaaa")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, key.ID, got[0].ID)
		assert.Equal(t, key.KeyHash, got[0].KeyHash)
		assert.Equal(t, []string{"read", "write"}, got[0].Scopes)
		assert.Nil(t, got[0].LastUsedAt)
	})

	t.Run("prefix collision returns all candidates", func(t *testing.T) {
		require.NoError(t, s.CreateAPIKey(ctx, newKey("flk_bbbb")))
		require.NoError(t, s.CreateAPIKey(ctx, newKey("flk_bbbb")))

		got, err := s.GetAPIKeyByPrefix(ctx, "flk_bbbb")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("unknown prefix is empty not error", func(t *testing.T) {
		got, err := s.GetAPIKeyByPrefix(ctx, "flk_zzzz")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("duplicate id", func(t *testing.T) {
		key := newKey("flk_cccc")
		require.NoError(t, s.CreateAPIKey(ctx, key))
		err := s.CreateAPIKey(ctx, key)
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("last used", func(t *testing.T) {
		key := newKey("flk_dddd")
		require.NoError(t, s.CreateAPIKey(ctx, key))
		require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

		got, err := s.GetAPIKeyByPrefix(ctx, "flk_dddd")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotNil(t, got[0].LastUsedAt)
	})

	t.Run("list and revoke", func(t *testing.T) {
		key := newKey("flk_eeee")
		require.NoError(t, s.CreateAPIKey(ctx, key))

		keys, err := s.ListAPIKeys(ctx, projectID)
		require.NoError(t, err)
		found := false
		for _, k := range keys {
			if k.ID == key.ID {
				found = true
			}
		}
		assert.True(t, found)

		require.NoError(t, s.RevokeAPIKey(ctx, key.ID, projectID))

		// revoked keys disappear from both lookup paths
		got, err := s.GetAPIKeyByPrefix(ctx, "flk_eeee")
		require.NoError(t, err)
		assert.Empty(t, got)

		keys, err = s.ListAPIKeys(ctx, projectID)
		require.NoError(t, err)
		for _, k := range keys {
			assert.NotEqual(t, key.ID, k.ID)
		}

		// revoking twice is not found
		assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, projectID), ErrNotFound)
	})

	t.Run("revoke scoped to project", func(t *testing.T) {
		key := newKey("flk_ffff")
		require.NoError(t, s.CreateAPIKey(ctx, key))
		assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, uuid.New()), ErrNotFound)
	})
}

func TestIntegrationKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	t.Run("create and get", func(t *testing.T) {
		key := &models.IntegrationKey{
			ID:        uuid.New(),
			ProjectID: projectID,
			Key:       "flw_checkout_widget",
			Label:     "checkout widget",
			CreatedAt: now(),
		}
		require.NoError(t, s.CreateIntegrationKey(ctx, key))

		got, err := s.GetIntegrationKey(ctx, "flw_checkout_widget")
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		assert.Equal(t, projectID, got.ProjectID)
		assert.Equal(t, "checkout widget", got.Label)
		assert.Nil(t, got.LastUsedAt)
	})

	t.Run("duplicate key value", func(t *testing.T) {
		key := &models.IntegrationKey{
			ID:        uuid.New(),
			ProjectID: projectID,
			Key:       "flw_checkout_widget",
			CreatedAt: now(),
		}
		assert.ErrorIs(t, s.CreateIntegrationKey(ctx, key), ErrDuplicateKey)
	})

	t.Run("last used", func(t *testing.T) {
		got, err := s.GetIntegrationKey(ctx, "flw_checkout_widget")
		require.NoError(t, err)
		require.NoError(t, s.UpdateIntegrationKeyLastUsed(ctx, got.ID))

		got, err = s.GetIntegrationKey(ctx, "flw_checkout_widget")
		require.NoError(t, err)
		assert.NotNil(t, got.LastUsedAt)
	})

	t.Run("list and revoke", func(t *testing.T) {
		key := &models.IntegrationKey{
			ID:        uuid.New(),
			ProjectID: projectID,
			Key:       "flw_marketing_site",
			Label:     "marketing",
			CreatedAt: now(),
		}
		require.NoError(t, s.CreateIntegrationKey(ctx, key))

		keys, err := s.ListIntegrationKeys(ctx, projectID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(keys), 2)

		require.NoError(t, s.RevokeIntegrationKey(ctx, key.ID, projectID))

		_, err = s.GetIntegrationKey(ctx, "flw_marketing_site")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.RevokeIntegrationKey(ctx, key.ID, projectID), ErrNotFound)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.GetIntegrationKey(ctx, "flw_never_issued")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateAndGetReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	t.Run("full diagnostic round trip", func(t *testing.T) {
		createdAt := now()
		stack := "TypeError: x is undefined\n  at render (app.js:10)"
		report := newTestReport(projectID, "Checkout crashes", createdAt)
		report.ReporterName = strPtr("Jamie")
		report.ReporterEmail = strPtr("jamie@example.com")
		report.URL = strPtr("https://app.example.com/checkout")
		report.UserAgent = strPtr("Mozilla/5.0 (X11; Linux x86_64)")
		report.ConsoleLogs = []models.ConsoleLogEntry{
			{Level: "error", Message: "Uncaught TypeError", Timestamp: 1700000000000, Stack: &stack},
			{Level: "info", Message: "cart loaded", Timestamp: 1700000000100},
		}
		report.NetworkRequests = []models.NetworkRequest{
			{URL: "https://api.example.com/cart", Method: "POST", Status: 500, Duration: 1234.5, Timestamp: 1700000000050},
		}
		report.PerformanceMetrics = &models.PerformanceMetrics{
			WebVitals: models.WebVitals{LCP: floatPtr(4200), CLS: floatPtr(0.31)},
			Category:  "critical",
			Score:     floatPtr(30),
		}
		report.ErrorContext = &models.ErrorContext{
			UnhandledErrors: []models.UnhandledError{
				{Message: "x is undefined", Source: "app.js", Line: 10, Timestamp: 1700000000000},
			},
			TotalErrorCount: 1,
		}
		report.InteractionData = []byte(`{"consent":true,"clicks":[{"x":10,"y":20}]}`)

		require.NoError(t, s.CreateReport(ctx, report))

		got, err := s.GetReport(ctx, report.ID, projectID)
		require.NoError(t, err)
		assert.Equal(t, report.ID, got.ID)
		assert.Equal(t, "Checkout crashes", got.Title)
		assert.Equal(t, models.ReportStatusActive, got.Status)
		require.NotNil(t, got.UserAgent)
		assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", *got.UserAgent)
		require.Len(t, got.ConsoleLogs, 2)
		assert.Equal(t, "Uncaught TypeError", got.ConsoleLogs[0].Message)
		require.NotNil(t, got.ConsoleLogs[0].Stack)
		require.Len(t, got.NetworkRequests, 1)
		assert.Equal(t, 500, got.NetworkRequests[0].Status)
		require.NotNil(t, got.PerformanceMetrics)
		assert.Equal(t, "critical", got.PerformanceMetrics.Category)
		require.NotNil(t, got.PerformanceMetrics.LCP)
		assert.Equal(t, 4200.0, *got.PerformanceMetrics.LCP)
		require.NotNil(t, got.ErrorContext)
		assert.Equal(t, 1, got.ErrorContext.TotalErrorCount)
		assert.JSONEq(t, `{"consent":true,"clicks":[{"x":10,"y":20}]}`, string(got.InteractionData))
		assert.Equal(t, createdAt, got.CreatedAt.UTC())
	})

	t.Run("bare report has nil blobs", func(t *testing.T) {
		report := newTestReport(projectID, "Just feedback", now())
		report.Type = models.ReportTypeFeedback
		require.NoError(t, s.CreateReport(ctx, report))

		got, err := s.GetReport(ctx, report.ID, projectID)
		require.NoError(t, err)
		assert.Nil(t, got.ConsoleLogs)
		assert.Nil(t, got.NetworkRequests)
		assert.Nil(t, got.PerformanceMetrics)
		assert.Nil(t, got.ErrorContext)
		assert.Nil(t, got.InteractionData)
		assert.Nil(t, got.ReporterEmail)
	})

	t.Run("duplicate id", func(t *testing.T) {
		report := newTestReport(projectID, "dup", now())
		require.NoError(t, s.CreateReport(ctx, report))
		assert.ErrorIs(t, s.CreateReport(ctx, report), ErrDuplicateKey)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetReport(ctx, uuid.New(), projectID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invisible across projects", func(t *testing.T) {
		other := &models.Project{
			ID:        uuid.New(),
			Name:      "Other",
			Slug:      "other",
			CreatedAt: now(),
			UpdatedAt: now(),
		}
		require.NoError(t, s.CreateProject(ctx, other))

		report := newTestReport(projectID, "mine", now())
		require.NoError(t, s.CreateReport(ctx, report))

		_, err := s.GetReport(ctx, report.ID, other.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListReports(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	base := now().Add(-time.Hour)
	seed := []*models.Report{
		newTestReport(projectID, "Payment button broken", base),
		newTestReport(projectID, "Slow dashboard", base.Add(10*time.Minute)),
		newTestReport(projectID, "Add dark mode", base.Add(20*time.Minute)),
		newTestReport(projectID, "Love the widget", base.Add(30*time.Minute)),
	}
	seed[1].Priority = models.PriorityHigh
	seed[2].Type = models.ReportTypeInitiative
	seed[2].Status = models.ReportStatusArchived
	seed[3].Type = models.ReportTypeFeedback
	seed[3].Description = "the payment flow feels great now"
	for _, r := range seed {
		require.NoError(t, s.CreateReport(ctx, r))
	}

	t.Run("default order is newest first", func(t *testing.T) {
		reports, total, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, reports, 4)
		assert.Equal(t, "Love the widget", reports[0].Title)
		assert.Equal(t, "Payment button broken", reports[3].Title)
	})

	t.Run("filter by type", func(t *testing.T) {
		reports, total, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID, Type: models.ReportTypeInitiative})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, reports, 1)
		assert.Equal(t, "Add dark mode", reports[0].Title)
	})

	t.Run("filter by status and priority", func(t *testing.T) {
		_, total, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID, Status: models.ReportStatusArchived})
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		reports, total, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID, Priority: models.PriorityHigh})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Slow dashboard", reports[0].Title)
	})

	t.Run("search matches title and description", func(t *testing.T) {
		reports, total, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID, Search: "PAYMENT"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		titles := []string{reports[0].Title, reports[1].Title}
		assert.Contains(t, titles, "Payment button broken")
		assert.Contains(t, titles, "Love the widget")
	})

	t.Run("date range", func(t *testing.T) {
		_, total, err := s.ListReports(ctx, ReportFilter{
			ProjectID: projectID,
			From:      base.Add(5 * time.Minute),
			To:        base.Add(25 * time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})

	t.Run("sort by title ascending", func(t *testing.T) {
		reports, _, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID, SortBy: "title", SortOrder: "asc"})
		require.NoError(t, err)
		require.Len(t, reports, 4)
		assert.Equal(t, "Add dark mode", reports[0].Title)
	})

	t.Run("unknown sort column falls back to created_at", func(t *testing.T) {
		reports, _, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID, SortBy: "key_hash; DROP TABLE reports"})
		require.NoError(t, err)
		require.Len(t, reports, 4)
		assert.Equal(t, "Love the widget", reports[0].Title)
	})

	t.Run("pagination keeps total", func(t *testing.T) {
		reports, total, err := s.ListReports(ctx, ReportFilter{ProjectID: projectID, Page: 2, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, reports, 1)
		assert.Equal(t, "Payment button broken", reports[0].Title)
	})

	t.Run("other project sees nothing", func(t *testing.T) {
		_, total, err := s.ListReports(ctx, ReportFilter{ProjectID: uuid.New()})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})
}

func TestListReportsInWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	base := now().Add(-2 * time.Hour)
	inside1 := newTestReport(projectID, "first", base.Add(10*time.Minute))
	inside2 := newTestReport(projectID, "second", base.Add(20*time.Minute))
	outside := newTestReport(projectID, "too old", base.Add(-time.Hour))
	for _, r := range []*models.Report{inside2, outside, inside1} {
		require.NoError(t, s.CreateReport(ctx, r))
	}

	reports, err := s.ListReportsInWindow(ctx, projectID, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	// oldest first, ready for pairwise correlation scans
	assert.Equal(t, "first", reports[0].Title)
	assert.Equal(t, "second", reports[1].Title)

	reports, err = s.ListReportsInWindow(ctx, projectID, base.Add(50*time.Minute), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestUpdateReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	report := newTestReport(projectID, "original title", now())
	require.NoError(t, s.CreateReport(ctx, report))

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		updated, err := s.UpdateReport(ctx, report.ID, projectID, WithStatus(models.ReportStatusArchived))
		require.NoError(t, err)
		assert.Equal(t, models.ReportStatusArchived, updated.Status)
		assert.Equal(t, "original title", updated.Title)
		assert.Equal(t, models.PriorityMedium, updated.Priority)
		assert.True(t, updated.UpdatedAt.After(report.UpdatedAt))
	})

	t.Run("multiple options", func(t *testing.T) {
		updated, err := s.UpdateReport(ctx, report.ID, projectID,
			WithTitle("renamed"),
			WithDescription("new description"),
			WithPriority(models.PriorityCritical))
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Title)
		assert.Equal(t, "new description", updated.Description)
		assert.Equal(t, models.PriorityCritical, updated.Priority)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.UpdateReport(ctx, uuid.New(), projectID, WithTitle("ghost"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong project", func(t *testing.T) {
		_, err := s.UpdateReport(ctx, report.ID, uuid.New(), WithTitle("hijack"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	report := newTestReport(projectID, "short lived", now())
	require.NoError(t, s.CreateReport(ctx, report))

	require.NoError(t, s.DeleteReport(ctx, report.ID, projectID))

	_, err := s.GetReport(ctx, report.ID, projectID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteReport(ctx, report.ID, projectID), ErrNotFound)
}

func TestAttachments(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupTestDB(t)
	ctx := context.Background()
	projectID := defaultProjectID(t, s)

	newAttachment := func() *models.Attachment {
		id := uuid.New()
		return &models.Attachment{
			ID:          id,
			ProjectID:   projectID,
			ObjectKey:   "attachments/" + projectID.String() + "/" + id.String(),
			Filename:    "screenshot.png",
			ContentType: "image/png",
			SizeBytes:   2048,
			CreatedAt:   now(),
		}
	}

	t.Run("create and fetch by ids", func(t *testing.T) {
		a := newAttachment()
		b := newAttachment()
		require.NoError(t, s.CreateAttachment(ctx, a))
		require.NoError(t, s.CreateAttachment(ctx, b))

		got, err := s.GetAttachments(ctx, projectID, []uuid.UUID{a.ID, b.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.GetAttachments(ctx, projectID, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("link and list", func(t *testing.T) {
		report := newTestReport(projectID, "with files", now())
		require.NoError(t, s.CreateReport(ctx, report))

		a := newAttachment()
		b := newAttachment()
		require.NoError(t, s.CreateAttachment(ctx, a))
		require.NoError(t, s.CreateAttachment(ctx, b))

		require.NoError(t, s.LinkAttachments(ctx, report.ID, projectID, []uuid.UUID{a.ID, b.ID}))

		listed, err := s.ListReportAttachments(ctx, report.ID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		for _, att := range listed {
			require.NotNil(t, att.ReportID)
			assert.Equal(t, report.ID, *att.ReportID)
		}
	})

	t.Run("already linked attachment conflicts", func(t *testing.T) {
		first := newTestReport(projectID, "first claim", now())
		second := newTestReport(projectID, "second claim", now())
		require.NoError(t, s.CreateReport(ctx, first))
		require.NoError(t, s.CreateReport(ctx, second))

		a := newAttachment()
		require.NoError(t, s.CreateAttachment(ctx, a))
		require.NoError(t, s.LinkAttachments(ctx, first.ID, projectID, []uuid.UUID{a.ID}))

		err := s.LinkAttachments(ctx, second.ID, projectID, []uuid.UUID{a.ID})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("linking a missing attachment conflicts", func(t *testing.T) {
		report := newTestReport(projectID, "claims a ghost", now())
		require.NoError(t, s.CreateReport(ctx, report))

		err := s.LinkAttachments(ctx, report.ID, projectID, []uuid.UUID{uuid.New()})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("deleting a report unlinks its attachments", func(t *testing.T) {
		report := newTestReport(projectID, "to be deleted", now())
		require.NoError(t, s.CreateReport(ctx, report))

		a := newAttachment()
		require.NoError(t, s.CreateAttachment(ctx, a))
		require.NoError(t, s.LinkAttachments(ctx, report.ID, projectID, []uuid.UUID{a.ID}))

		require.NoError(t, s.DeleteReport(ctx, report.ID, projectID))

		got, err := s.GetAttachments(ctx, projectID, []uuid.UUID{a.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Nil(t, got[0].ReportID)
	})
}
