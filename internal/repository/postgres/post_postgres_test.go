package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"postflow/internal/model"
	"postflow/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonArg matches a JSONB argument by its encoded form.
type jsonArg string

func (a jsonArg) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	return ok && string(b) == string(a)
}

func postColumnNames() []string {
	cols := strings.Split(postColumns, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func postRow(id string, status model.PostStatus, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(postColumnNames()).AddRow(
		id, "user-1", "LinkedIn", "posts/user-1/img.png", "img.png", "image/png", int64(3<<20),
		"Launch day", "A product shot", []byte(`["#launch","#product"]`), string(status),
		true, true, "gemini", int64(10), int64(5), int64(2), int64(17),
		nil, nil, nil, createdAt, createdAt,
	)
}

func newPostRepo(t *testing.T) (*PostPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostPostgres(db), mock
}

func TestPostPostgres_Create(t *testing.T) {
	repo, mock := newPostRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	provider := model.ProviderGemini

	post := &model.Post{
		ID:          "post-1",
		UserID:      "user-1",
		Platform:    model.PlatformLinkedIn,
		FileRef:     "posts/user-1/img.png",
		FileName:    "img.png",
		ContentType: "image/png",
		Size:        3 << 20,
		Caption:     "Launch day",
		Description: "A product shot",
		Tags:        model.Tags{"#launch", "#product"},
		Status:      model.StatusPublished,
		AIGenerated: model.AIGenerated{Caption: true, Tags: true, Provider: &provider},
		CreatedAt:   now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending',")).
		WithArgs("post-1", "user-1", "LinkedIn", "posts/user-1/img.png", "img.png", "image/png", int64(3<<20),
			"Launch day", "A product shot", jsonArg(`["#launch","#product"]`), true, true, "gemini", now).
		WillReturnRows(postRow("post-1", model.StatusPending, now))

	got, err := repo.Create(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.Tags{"#launch", "#product"}, got.Tags)
	require.NotNil(t, got.AIGenerated.Provider)
	assert.Equal(t, model.ProviderGemini, *got.AIGenerated.Provider)
	assert.Equal(t, int64(17), got.Metadata.Total)
	assert.Nil(t, got.ApprovedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostPostgres_CreateWithoutTimestamp(t *testing.T) {
	repo, mock := newPostRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE($14::timestamptz, now()), COALESCE($14::timestamptz, now()))")).
		WithArgs("post-2", "user-1", "Twitter", "posts/user-1/b.png", "b.png", "image/png", int64(1024),
			"", "", jsonArg(`[]`), false, false, nil, nil).
		WillReturnRows(postRow("post-2", model.StatusPending, now))

	got, err := repo.Create(context.Background(), &model.Post{
		ID:          "post-2",
		UserID:      "user-1",
		Platform:    model.PlatformTwitter,
		FileRef:     "posts/user-1/b.png",
		FileName:    "b.png",
		ContentType: "image/png",
		Size:        1024,
		Tags:        model.Tags{},
	})
	require.NoError(t, err)
	assert.Equal(t, now, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostPostgres_FindByID(t *testing.T) {
	repo, mock := newPostRepo(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM posts WHERE id = ").
			WithArgs("post-1").
			WillReturnRows(postRow("post-1", model.StatusTeamApproved, time.Now()))

		got, err := repo.FindByID(ctx, "post-1")
		require.NoError(t, err)
		assert.Equal(t, "post-1", got.ID)
		assert.Equal(t, model.StatusTeamApproved, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM posts WHERE id = ").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostPostgres_ListByOwner(t *testing.T) {
	repo, mock := newPostRepo(t)
	ctx := context.Background()
	newer := time.Now()
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM posts WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := postRow("post-2", model.StatusPending, newer)
	rows.AddRow("post-1", "user-1", "Twitter", "k", "a.gif", "image/gif", int64(1), "c", "d", []byte(`[]`), "pending",
		false, false, nil, int64(0), int64(0), int64(0), int64(0), nil, nil, nil, older, older)
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs("user-1", 20, 0).
		WillReturnRows(rows)

	res, err := repo.ListByOwner(ctx, "user-1", repository.PageQuery{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "post-2", res.Items[0].ID)
	assert.Nil(t, res.Items[1].AIGenerated.Provider)
	assert.Equal(t, model.Tags{}, res.Items[1].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostPostgres_ListByStatus(t *testing.T) {
	repo, mock := newPostRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM posts WHERE status = $1")).
		WithArgs("pending").
		WillReturnError(errors.New("conn refused"))

	_, err := repo.ListByStatus(context.Background(), model.StatusPending, repository.PageQuery{Limit: 5})
	assert.EqualError(t, err, "conn refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostPostgres_Update(t *testing.T) {
	repo, mock := newPostRepo(t)
	ctx := context.Background()

	t.Run("only provided columns", func(t *testing.T) {
		platform := model.PlatformFacebook
		caption := "New caption"
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE posts SET platform = $1, caption = $2, tags = $3, updated_at = now() WHERE id = $4 RETURNING")).
			WithArgs("Facebook", "New caption", jsonArg(`["#new"]`), "post-1").
			WillReturnRows(postRow("post-1", model.StatusPending, time.Now()))

		_, err := repo.Update(ctx, "post-1", model.PostUpdate{Platform: &platform, Caption: &caption, Tags: model.Tags{"#new"}})
		assert.NoError(t, err)
	})

	t.Run("empty update reads the row", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM posts WHERE id = ").
			WithArgs("post-1").
			WillReturnRows(postRow("post-1", model.StatusPending, time.Now()))

		got, err := repo.Update(ctx, "post-1", model.PostUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "post-1", got.ID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostPostgres_TransitionStatus(t *testing.T) {
	repo, mock := newPostRepo(t)
	ctx := context.Background()
	approver := "admin-1"

	t.Run("compare and swap with stamp", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE posts SET status = $1, approved_by = $2, updated_at = now() WHERE id = $3 AND status IN ($4) RETURNING")).
			WithArgs("team_approved", "admin-1", "post-1", "pending").
			WillReturnRows(postRow("post-1", model.StatusTeamApproved, time.Now()))

		got, err := repo.TransitionStatus(ctx, "post-1",
			[]model.PostStatus{model.StatusPending}, model.StatusTeamApproved,
			repository.TransitionStamp{ApprovedBy: &approver})
		require.NoError(t, err)
		assert.Equal(t, model.StatusTeamApproved, got.Status)
	})

	t.Run("several expected states", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $2 AND status IN ($3, $4, $5)")).
			WithArgs("rejected", "post-1", "pending", "team_approved", "client_approved").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.TransitionStatus(ctx, "post-1", model.NonTerminalStatuses, model.StatusRejected, repository.TransitionStamp{})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("platform guard is part of the swap", func(t *testing.T) {
		at := time.Now().UTC()
		platform := model.PlatformLinkedIn
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE posts SET status = $1, published_at = $2, updated_at = now() WHERE id = $3 AND status IN ($4) AND platform = $5 RETURNING")).
			WithArgs("published", at, "post-1", "client_approved", "LinkedIn").
			WillReturnRows(postRow("post-1", model.StatusPublished, at))

		got, err := repo.TransitionStatus(ctx, "post-1",
			[]model.PostStatus{model.StatusClientApproved}, model.StatusPublished,
			repository.TransitionStamp{PublishedAt: &at, Platform: &platform})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPublished, got.Status)
	})

	t.Run("requires expected status", func(t *testing.T) {
		_, err := repo.TransitionStatus(ctx, "post-1", nil, model.StatusRejected, repository.TransitionStamp{})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostPostgres_Delete(t *testing.T) {
	repo, mock := newPostRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM posts WHERE id = $1 RETURNING")).
		WithArgs("post-1").
		WillReturnRows(postRow("post-1", model.StatusRejected, time.Now()))

	got, err := repo.Delete(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, "posts/user-1/img.png", got.FileRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}
