package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/leadpress/content"
)

var postColumns = []string{
	"id", "slug", "title", "excerpt", "category", "content", "tags", "status", "date", "views",
	"author_name", "author_role", "author_image", "meta_description", "meta_keywords", "image", "read_time",
	"color", "bg", "border", "idempotency_key", "revision", "created_at", "updated_at",
}

func newMockPostgres(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &Postgres{pool: mock}, mock
}

func TestPostgres_GetPostBySlug(t *testing.T) {
	t.Run("published post", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		id := uuid.NewString()
		now := time.Now().UTC()
		mock.ExpectQuery(`(?s)SELECT .+ FROM blog_posts WHERE slug = \$1 AND status = 'published'`).
			WithArgs("ai-agents").
			WillReturnRows(pgxmock.NewRows(postColumns).AddRow(
				id, "ai-agents", "AI Agents", "excerpt", "Automation", "<p>body</p>", []string{"ai", "agents"}, "published", "2024-05-01", 12,
				"Ada", "Principal", "", "meta", []string{"agents"}, "https://cdn.example.com/a.jpg", "6 min read",
				"", "", "", "", 3, now, now))

		post, err := pg.GetPostBySlug(context.Background(), "ai-agents", true)
		require.NoError(t, err)
		assert.Equal(t, id, post.ID)
		assert.Equal(t, content.StatusPublished, post.Status)
		assert.Equal(t, []string{"ai", "agents"}, post.Tags)
		assert.Equal(t, 12, post.Views)
		assert.Equal(t, 3, post.Revision)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing post maps to ErrNotFound", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		mock.ExpectQuery(`(?s)SELECT .+ FROM blog_posts WHERE slug = \$1`).
			WithArgs("missing-post").
			WillReturnRows(pgxmock.NewRows(postColumns))

		_, err := pg.GetPostBySlug(context.Background(), "missing-post", true)
		assert.ErrorIs(t, err, content.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error is returned", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		mock.ExpectQuery(`(?s)SELECT .+ FROM blog_posts WHERE slug = \$1`).
			WithArgs("broken").
			WillReturnError(errors.New("connection reset"))

		_, err := pg.GetPostBySlug(context.Background(), "broken", true)
		require.Error(t, err)
		assert.NotErrorIs(t, err, content.ErrNotFound)
	})
}

func TestPostgres_GetPostByIDRejectsNonUUID(t *testing.T) {
	pg, mock := newMockPostgres(t)
	_, err := pg.GetPostByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, content.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListPostsBuildsFilter(t *testing.T) {
	pg, mock := newMockPostgres(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT .+ FROM blog_posts WHERE status = \$1 AND \$2 = ANY\(tags\) ORDER BY date DESC, created_at DESC LIMIT \$3`).
		WithArgs("published", "agents", 5).
		WillReturnRows(pgxmock.NewRows(postColumns).AddRow(
			uuid.NewString(), "a", "A", "", "", "", []string{"agents"}, "published", "2024-05-01", 0,
			"", "", "", "", []string{}, "", "", "", "", "", "", 1, now, now))

	posts, err := pg.ListPosts(context.Background(), content.PostFilter{Status: content.StatusPublished, Tag: " Agents ", Limit: 5})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "A", posts[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreatePost(t *testing.T) {
	t.Run("suffixes a taken slug", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		mock.ExpectQuery(`SELECT slug FROM blog_posts WHERE slug = \$1 OR slug LIKE \$2`).
			WithArgs("ai-agents", "ai-agents-%").
			WillReturnRows(pgxmock.NewRows([]string{"slug"}).AddRow("ai-agents").AddRow("ai-agents-2"))
		mock.ExpectExec(`INSERT INTO blog_posts`).
			WithArgs(pgxmock.AnyArg(), "ai-agents-3", "AI Agents", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				[]string{"ai"}, "review", pgxmock.AnyArg(), 0, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), []string{}, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), 1, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		post, err := pg.CreatePost(context.Background(), content.BlogPost{
			Title: "AI Agents", Tags: []string{"AI"}, Status: content.StatusReview,
		})
		require.NoError(t, err)
		assert.Equal(t, "ai-agents-3", post.Slug)
		assert.NotEmpty(t, post.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate idempotency key is a conflict", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		mock.ExpectQuery(`SELECT slug FROM blog_posts`).
			WithArgs("dup", "dup-%").
			WillReturnRows(pgxmock.NewRows([]string{"slug"}))
		args := make([]any, 23)
		for i := range args {
			args[i] = pgxmock.AnyArg()
		}
		mock.ExpectExec(`INSERT INTO blog_posts`).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "blog_posts_idempotency_key_key"})

		_, err := pg.CreatePost(context.Background(), content.BlogPost{Title: "Dup", IdempotencyKey: "k1"})
		assert.ErrorIs(t, err, content.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgres_UpdatePostReview(t *testing.T) {
	id := uuid.NewString()

	t.Run("matching revision", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		mock.ExpectQuery(`UPDATE blog_posts SET content = \$1, status = \$2, revision = revision \+ 1`).
			WithArgs("<p>new</p>", "published", id, 4).
			WillReturnRows(pgxmock.NewRows([]string{"revision"}).AddRow(5))

		rev, err := pg.UpdatePostReview(context.Background(), id, 4, "<p>new</p>", content.StatusPublished)
		require.NoError(t, err)
		assert.Equal(t, 5, rev)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale revision is a conflict", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		now := time.Now().UTC()
		mock.ExpectQuery(`UPDATE blog_posts`).
			WithArgs("<p>new</p>", "published", id, 4).
			WillReturnRows(pgxmock.NewRows([]string{"revision"}))
		mock.ExpectQuery(`(?s)SELECT .+ FROM blog_posts WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(postColumns).AddRow(
				id, "a", "A", "", "", "", []string{}, "review", "2024-05-01", 0,
				"", "", "", "", []string{}, "", "", "", "", "", "", 5, now, now))

		_, err := pg.UpdatePostReview(context.Background(), id, 4, "<p>new</p>", content.StatusPublished)
		assert.ErrorIs(t, err, content.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgres_CreateContactSubmission(t *testing.T) {
	pg, mock := newMockPostgres(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO contact_submissions`).
		WithArgs(pgxmock.AnyArg(), "Jane Doe", "jane@co.com", nil, "Automation", "I would like to talk.", "contact").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	sub, err := pg.CreateContactSubmission(context.Background(), content.ContactSubmission{
		Name: "Jane Doe", Email: "jane@co.com", AreaOfInterest: "Automation",
		Message: "I would like to talk.", Source: content.SourceContact,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, created, sub.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetCaseStudy(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT id, client, .+ FROM case_studies WHERE id = \$1`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"id", "client", "category", "challenge", "solution", "results", "stats", "full_description"}).
			AddRow("acme", "Acme", "Automation", "c", "s", "r", []byte(`[{"value":"3x","label":"throughput"}]`), "full"))

	cs, err := pg.GetCaseStudy(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, cs.Stats, 1)
	assert.Equal(t, "3x", cs.Stats[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetRecommendationStatus(t *testing.T) {
	pg, mock := newMockPostgres(t)
	id := uuid.NewString()
	mock.ExpectQuery(`UPDATE topic_recommendations SET status = \$1 WHERE id = \$2 RETURNING`).
		WithArgs("approved", id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "category", "rationale", "keywords", "priority", "status", "created_at"}).
			AddRow(id, "RAG", "AI", "why", []string{"rag"}, "high", "approved", time.Now()))

	rec, err := pg.SetRecommendationStatus(context.Background(), id, content.RecommendationApproved)
	require.NoError(t, err)
	assert.Equal(t, content.RecommendationApproved, rec.Status)

	_, err = pg.SetRecommendationStatus(context.Background(), "bogus", content.RecommendationApproved)
	assert.ErrorIs(t, err, content.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
