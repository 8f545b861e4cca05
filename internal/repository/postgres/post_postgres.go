package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"postflow/internal/model"
	"postflow/internal/repository"
)

const postColumns = `id, user_id, platform, file_ref, file_name, content_type, size, caption, description, tags, status,
		ai_caption, ai_tags, ai_provider, views, likes, shares, engagement,
		approved_by, client_approved_by, published_at, created_at, updated_at`

// PostPostgres is a PostgreSQL implementation of repository.PostRepository.
type PostPostgres struct {
	db *sql.DB
}

// NewPostPostgres creates a new PostPostgres repository.
func NewPostPostgres(db *sql.DB) *PostPostgres {
	return &PostPostgres{db: db}
}

var _ repository.PostRepository = (*PostPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*model.Post, error) {
	var (
		p                model.Post
		provider         sql.NullString
		approvedBy       sql.NullString
		clientApprovedBy sql.NullString
		publishedAt      sql.NullTime
	)
	if err := s.Scan(
		&p.ID,
		&p.UserID,
		&p.Platform,
		&p.FileRef,
		&p.FileName,
		&p.ContentType,
		&p.Size,
		&p.Caption,
		&p.Description,
		&p.Tags,
		&p.Status,
		&p.AIGenerated.Caption,
		&p.AIGenerated.Tags,
		&provider,
		&p.Metadata.Views,
		&p.Metadata.Likes,
		&p.Metadata.Shares,
		&p.Metadata.Total,
		&approvedBy,
		&clientApprovedBy,
		&publishedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if provider.Valid {
		v := model.Provider(provider.String)
		p.AIGenerated.Provider = &v
	}
	if approvedBy.Valid {
		p.ApprovedBy = &approvedBy.String
	}
	if clientApprovedBy.Valid {
		p.ClientApprovedBy = &clientApprovedBy.String
	}
	if publishedAt.Valid {
		p.PublishedAt = &publishedAt.Time
	}
	return &p, nil
}

// timeArg sends a zero time as NULL so the insert falls back to now().
func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func providerArg(p *model.Provider) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

// Create inserts a new post row. The status column is always written as pending
// and a zero CreatedAt is replaced by the database clock.
func (r *PostPostgres) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	q := `
		INSERT INTO posts (id, user_id, platform, file_ref, file_name, content_type, size, caption, description, tags,
			status, ai_caption, ai_tags, ai_provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', $11, $12, $13,
			COALESCE($14::timestamptz, now()), COALESCE($14::timestamptz, now()))
		RETURNING ` + postColumns
	row := r.db.QueryRowContext(ctx, q,
		post.ID,
		post.UserID,
		string(post.Platform),
		post.FileRef,
		post.FileName,
		post.ContentType,
		post.Size,
		post.Caption,
		post.Description,
		post.Tags,
		post.AIGenerated.Caption,
		post.AIGenerated.Tags,
		providerArg(post.AIGenerated.Provider),
		timeArg(post.CreatedAt),
	)
	return scanPost(row)
}

// FindByID fetches a single post by its ID.
func (r *PostPostgres) FindByID(ctx context.Context, id string) (*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.db.QueryRowContext(ctx, q, id))
}

// ListByOwner returns the owner's posts newest first with a total count.
func (r *PostPostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Post], error) {
	const qCount = `SELECT COUNT(*) FROM posts WHERE user_id = $1`
	qList := `SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.page(ctx, qCount, qList, ownerID, pq)
}

// ListByStatus returns posts waiting in a status, oldest first.
func (r *PostPostgres) ListByStatus(ctx context.Context, status model.PostStatus, pq repository.PageQuery) (*repository.PageResult[model.Post], error) {
	const qCount = `SELECT COUNT(*) FROM posts WHERE status = $1`
	qList := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`
	return r.page(ctx, qCount, qList, string(status), pq)
}

func (r *PostPostgres) page(ctx context.Context, qCount, qList string, key any, pq repository.PageQuery) (*repository.PageResult[model.Post], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, key).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, qList, key, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Post]{Items: items, Total: total}, nil
}

// setBuilder collects "col = $n" fragments with their positional arguments.
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) add(col string, v any) {
	b.args = append(b.args, v)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *setBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Update writes only the editable columns; status is never touched here.
func (r *PostPostgres) Update(ctx context.Context, id string, upd model.PostUpdate) (*model.Post, error) {
	if upd.Empty() {
		return r.FindByID(ctx, id)
	}

	var b setBuilder
	if upd.Platform != nil {
		b.add("platform", string(*upd.Platform))
	}
	if upd.Caption != nil {
		b.add("caption", *upd.Caption)
	}
	if upd.Description != nil {
		b.add("description", *upd.Description)
	}
	if upd.Tags != nil {
		b.add("tags", upd.Tags)
	}
	b.sets = append(b.sets, "updated_at = now()")
	where := b.arg(id)

	q := `UPDATE posts SET ` + strings.Join(b.sets, ", ") + ` WHERE id = ` + where + ` RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, q, b.args...))
}

// TransitionStatus is a compare-and-swap on the status column.
func (r *PostPostgres) TransitionStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus, stamp repository.TransitionStamp) (*model.Post, error) {
	if len(from) == 0 {
		return nil, errors.New("transition requires at least one expected status")
	}

	var b setBuilder
	b.add("status", string(to))
	if stamp.ApprovedBy != nil {
		b.add("approved_by", *stamp.ApprovedBy)
	}
	if stamp.ClientApprovedBy != nil {
		b.add("client_approved_by", *stamp.ClientApprovedBy)
	}
	if stamp.PublishedAt != nil {
		b.add("published_at", *stamp.PublishedAt)
	}
	b.sets = append(b.sets, "updated_at = now()")

	where := "id = " + b.arg(id)
	expected := make([]string, 0, len(from))
	for _, s := range from {
		expected = append(expected, b.arg(string(s)))
	}
	where += " AND status IN (" + strings.Join(expected, ", ") + ")"
	if stamp.Platform != nil {
		where += " AND platform = " + b.arg(string(*stamp.Platform))
	}

	q := `UPDATE posts SET ` + strings.Join(b.sets, ", ") + ` WHERE ` + where + ` RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, q, b.args...))
}

// Delete removes a post and returns the row as it was.
func (r *PostPostgres) Delete(ctx context.Context, id string) (*model.Post, error) {
	q := `DELETE FROM posts WHERE id = $1 RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, q, id))
}
