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

	"github.com/eringen/leadpress/content"
)

// pgxPool is the subset of *pgxpool.Pool the Postgres store uses.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres stores content in a PostgreSQL database.
type Postgres struct {
	pool pgxPool
}

// NewPostgres connects to dsn, verifies the connection and migrates the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return p, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS blog_posts (
    id UUID PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    tags TEXT[] NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'review', 'published')),
    date DATE NOT NULL DEFAULT CURRENT_DATE,
    views INTEGER NOT NULL DEFAULT 0,
    author_name TEXT NOT NULL DEFAULT '',
    author_role TEXT NOT NULL DEFAULT '',
    author_image TEXT NOT NULL DEFAULT '',
    meta_description TEXT NOT NULL DEFAULT '',
    meta_keywords TEXT[] NOT NULL DEFAULT '{}',
    image TEXT NOT NULL DEFAULT '',
    read_time TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    bg TEXT NOT NULL DEFAULT '',
    border TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT UNIQUE,
    revision INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS blog_posts_status_date ON blog_posts(status, date DESC)`,
	`CREATE TABLE IF NOT EXISTS case_studies (
    id TEXT PRIMARY KEY,
    client TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    challenge TEXT NOT NULL DEFAULT '',
    solution TEXT NOT NULL DEFAULT '',
    results TEXT NOT NULL DEFAULT '',
    stats JSONB NOT NULL DEFAULT '[]',
    full_description TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS contact_submissions (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    company TEXT,
    area_of_interest TEXT,
    message TEXT NOT NULL,
    source TEXT NOT NULL CHECK (source IN ('contact', 'consultation')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS editor_reviews (
    id UUID PRIMARY KEY,
    blog_post_id TEXT NOT NULL,
    review_type TEXT NOT NULL,
    original_content TEXT NOT NULL,
    edited_content TEXT NOT NULL,
    issues_found TEXT[] NOT NULL DEFAULT '{}',
    corrections_made TEXT[] NOT NULL DEFAULT '{}',
    score INTEGER NOT NULL,
    ai_reasoning TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS brand_voice_profiles (
    source TEXT PRIMARY KEY,
    key_phrases TEXT[] NOT NULL DEFAULT '{}',
    tone_descriptors TEXT[] NOT NULL DEFAULT '{}',
    forbidden_terms TEXT[] NOT NULL DEFAULT '{}',
    writing_style_notes TEXT NOT NULL DEFAULT '',
    topics_covered TEXT[] NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS topic_recommendations (
    id UUID PRIMARY KEY,
    title TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    rationale TEXT NOT NULL DEFAULT '',
    keywords TEXT[] NOT NULL DEFAULT '{}',
    priority TEXT NOT NULL DEFAULT 'medium',
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const postgresPostColumns = `id::text, slug, title, excerpt, category, content, tags, status, to_char(date, 'YYYY-MM-DD'), views,
	author_name, author_role, author_image, meta_description, meta_keywords, image, read_time,
	color, bg, border, COALESCE(idempotency_key, ''), revision, created_at, updated_at`

func scanPostgresPost(r pgx.Row) (content.BlogPost, error) {
	var p content.BlogPost
	var status string
	err := r.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Category, &p.Content, &p.Tags, &status, &p.Date, &p.Views,
		&p.AuthorName, &p.AuthorRole, &p.AuthorImage, &p.MetaDescription, &p.MetaKeywords, &p.Image, &p.ReadTime,
		&p.Color, &p.Bg, &p.Border, &p.IdempotencyKey, &p.Revision, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return content.BlogPost{}, err
	}
	p.Status = content.PostStatus(status)
	return p, nil
}

// ListPosts returns posts ordered by date descending.
func (p *Postgres) ListPosts(ctx context.Context, f content.PostFilter) ([]content.BlogPost, error) {
	var where []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	if f.Tag != "" {
		args = append(args, content.NormalizeTag(f.Tag))
		where = append(where, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	q := `SELECT ` + postgresPostColumns + ` FROM blog_posts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date DESC, created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []content.BlogPost
	for rows.Next() {
		post, err := scanPostgresPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// GetPostBySlug returns a post by slug, optionally only if published.
func (p *Postgres) GetPostBySlug(ctx context.Context, slug string, publishedOnly bool) (content.BlogPost, error) {
	q := `SELECT ` + postgresPostColumns + ` FROM blog_posts WHERE slug = $1`
	if publishedOnly {
		q += ` AND status = 'published'`
	}
	return p.getPost(ctx, q, slug)
}

// GetPostByID returns a post by id regardless of status.
func (p *Postgres) GetPostByID(ctx context.Context, id string) (content.BlogPost, error) {
	if _, err := uuid.Parse(id); err != nil {
		return content.BlogPost{}, content.ErrNotFound
	}
	return p.getPost(ctx, `SELECT `+postgresPostColumns+` FROM blog_posts WHERE id = $1`, id)
}

// GetPostByIdempotencyKey returns the post created under key.
func (p *Postgres) GetPostByIdempotencyKey(ctx context.Context, key string) (content.BlogPost, error) {
	return p.getPost(ctx, `SELECT `+postgresPostColumns+` FROM blog_posts WHERE idempotency_key = $1`, key)
}

func (p *Postgres) getPost(ctx context.Context, q string, arg string) (content.BlogPost, error) {
	post, err := scanPostgresPost(p.pool.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return content.BlogPost{}, content.ErrNotFound
	}
	return post, err
}

// CreatePost inserts a new post. A taken slug gets a numeric suffix; a taken
// idempotency key yields content.ErrConflict.
func (p *Postgres) CreatePost(ctx context.Context, post content.BlogPost) (content.BlogPost, error) {
	post = prepareNewPost(post)
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now
	if post.Date == "" {
		post.Date = now.Format("2006-01-02")
	}
	post.Tags = parseTags(tagString(post.Tags))
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.MetaKeywords == nil {
		post.MetaKeywords = []string{}
	}
	slug, err := p.uniqueSlug(ctx, post.Slug)
	if err != nil {
		return content.BlogPost{}, err
	}
	post.Slug = slug

	var key *string
	if post.IdempotencyKey != "" {
		key = &post.IdempotencyKey
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO blog_posts (id, slug, title, excerpt, category, content, tags, status, date, views,
	author_name, author_role, author_image, meta_description, meta_keywords, image, read_time, color, bg, border,
	idempotency_key, revision, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $23)`,
		post.ID, post.Slug, post.Title, post.Excerpt, post.Category, post.Content, post.Tags, string(post.Status), post.Date, post.Views,
		post.AuthorName, post.AuthorRole, post.AuthorImage, post.MetaDescription, post.MetaKeywords, post.Image, post.ReadTime,
		post.Color, post.Bg, post.Border, key, post.Revision, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "idempotency_key") {
			return content.BlogPost{}, fmt.Errorf("idempotency key %q: %w", post.IdempotencyKey, content.ErrConflict)
		}
		return content.BlogPost{}, err
	}
	return post, nil
}

func (p *Postgres) uniqueSlug(ctx context.Context, base string) (string, error) {
	rows, err := p.pool.Query(ctx, `SELECT slug FROM blog_posts WHERE slug = $1 OR slug LIKE $2`, base, base+"-%")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	taken := make(map[string]bool)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", err
		}
		taken[s] = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	candidate := base
	for i := 2; taken[candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return candidate, nil
}

// UpdatePostReview overwrites content and status when revision still matches.
func (p *Postgres) UpdatePostReview(ctx context.Context, id string, revision int, body string, status content.PostStatus) (int, error) {
	var next int
	err := p.pool.QueryRow(ctx,
		`UPDATE blog_posts SET content = $1, status = $2, revision = revision + 1, updated_at = now() WHERE id = $3 AND revision = $4 RETURNING revision`,
		body, string(status), id, revision).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := p.GetPostByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, content.ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

// IncrementViews bumps the view counter of a published post.
func (p *Postgres) IncrementViews(ctx context.Context, slug string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE blog_posts SET views = views + 1 WHERE slug = $1 AND status = 'published'`, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return content.ErrNotFound
	}
	return nil
}

// RecentTitles returns the titles of the n newest posts.
func (p *Postgres) RecentTitles(ctx context.Context, n int) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT title FROM blog_posts ORDER BY created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// ListCaseStudies returns all case studies ordered by client.
func (p *Postgres) ListCaseStudies(ctx context.Context) ([]content.CaseStudy, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, client, category, challenge, solution, results, stats, full_description FROM case_studies ORDER BY client`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []content.CaseStudy
	for rows.Next() {
		cs, err := scanPostgresCaseStudy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// GetCaseStudy returns a case study by id.
func (p *Postgres) GetCaseStudy(ctx context.Context, id string) (content.CaseStudy, error) {
	cs, err := scanPostgresCaseStudy(p.pool.QueryRow(ctx,
		`SELECT id, client, category, challenge, solution, results, stats, full_description FROM case_studies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return content.CaseStudy{}, content.ErrNotFound
	}
	return cs, err
}

func scanPostgresCaseStudy(r pgx.Row) (content.CaseStudy, error) {
	var cs content.CaseStudy
	var stats []byte
	if err := r.Scan(&cs.ID, &cs.Client, &cs.Category, &cs.Challenge, &cs.Solution, &cs.Results, &stats, &cs.FullDescription); err != nil {
		return content.CaseStudy{}, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &cs.Stats); err != nil {
			return content.CaseStudy{}, fmt.Errorf("decode stats for %s: %w", cs.ID, err)
		}
	}
	return cs, nil
}

// UpsertCaseStudy inserts or replaces a case study.
func (p *Postgres) UpsertCaseStudy(ctx context.Context, cs content.CaseStudy) error {
	stats, err := json.Marshal(cs.Stats)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO case_studies (id, client, category, challenge, solution, results, stats, full_description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET client = EXCLUDED.client, category = EXCLUDED.category, challenge = EXCLUDED.challenge,
	solution = EXCLUDED.solution, results = EXCLUDED.results, stats = EXCLUDED.stats, full_description = EXCLUDED.full_description`,
		cs.ID, cs.Client, cs.Category, cs.Challenge, cs.Solution, cs.Results, stats, cs.FullDescription)
	return err
}

// CreateContactSubmission appends a contact submission.
func (p *Postgres) CreateContactSubmission(ctx context.Context, s content.ContactSubmission) (content.ContactSubmission, error) {
	s.ID = uuid.NewString()
	err := p.pool.QueryRow(ctx, `INSERT INTO contact_submissions (id, name, email, company, area_of_interest, message, source)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		s.ID, s.Name, s.Email, nullable(s.Company), nullable(s.AreaOfInterest), s.Message, s.Source).Scan(&s.CreatedAt)
	if err != nil {
		return content.ContactSubmission{}, err
	}
	return s, nil
}

// CreateEditorReview appends a review audit record.
func (p *Postgres) CreateEditorReview(ctx context.Context, r content.EditorReview) (content.EditorReview, error) {
	r.ID = uuid.NewString()
	issues, corrections := r.IssuesFound, r.CorrectionsMade
	if issues == nil {
		issues = []string{}
	}
	if corrections == nil {
		corrections = []string{}
	}
	err := p.pool.QueryRow(ctx, `INSERT INTO editor_reviews (id, blog_post_id, review_type, original_content, edited_content, issues_found, corrections_made, score, ai_reasoning)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`,
		r.ID, r.BlogPostID, r.ReviewType, r.OriginalContent, r.EditedContent, issues, corrections, r.Score, r.AIReasoning).Scan(&r.CreatedAt)
	if err != nil {
		return content.EditorReview{}, err
	}
	return r, nil
}

// GetBrandVoice returns the profile for source.
func (p *Postgres) GetBrandVoice(ctx context.Context, source string) (content.BrandVoiceProfile, error) {
	var bv content.BrandVoiceProfile
	err := p.pool.QueryRow(ctx, `SELECT source, key_phrases, tone_descriptors, forbidden_terms, writing_style_notes, topics_covered, updated_at FROM brand_voice_profiles WHERE source = $1`, source).
		Scan(&bv.Source, &bv.KeyPhrases, &bv.ToneDescriptors, &bv.ForbiddenTerms, &bv.WritingStyleNotes, &bv.TopicsCovered, &bv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return content.BrandVoiceProfile{}, content.ErrNotFound
	}
	return bv, err
}

// UpsertBrandVoice replaces the profile for bv.Source.
func (p *Postgres) UpsertBrandVoice(ctx context.Context, bv content.BrandVoiceProfile) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO brand_voice_profiles (source, key_phrases, tone_descriptors, forbidden_terms, writing_style_notes, topics_covered, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (source) DO UPDATE SET key_phrases = EXCLUDED.key_phrases, tone_descriptors = EXCLUDED.tone_descriptors,
	forbidden_terms = EXCLUDED.forbidden_terms, writing_style_notes = EXCLUDED.writing_style_notes,
	topics_covered = EXCLUDED.topics_covered, updated_at = now()`,
		bv.Source, orEmpty(bv.KeyPhrases), orEmpty(bv.ToneDescriptors), orEmpty(bv.ForbiddenTerms), bv.WritingStyleNotes, orEmpty(bv.TopicsCovered))
	return err
}

const postgresRecommendationColumns = `id::text, title, category, rationale, keywords, priority, status, created_at`

func scanPostgresRecommendation(r pgx.Row) (content.TopicRecommendation, error) {
	var rec content.TopicRecommendation
	var status string
	if err := r.Scan(&rec.ID, &rec.Title, &rec.Category, &rec.Rationale, &rec.Keywords, &rec.Priority, &status, &rec.CreatedAt); err != nil {
		return content.TopicRecommendation{}, err
	}
	rec.Status = content.RecommendationStatus(status)
	return rec, nil
}

// ListRecommendations returns recommendations, newest first, optionally by status.
func (p *Postgres) ListRecommendations(ctx context.Context, status content.RecommendationStatus) ([]content.TopicRecommendation, error) {
	q := `SELECT ` + postgresRecommendationColumns + ` FROM topic_recommendations`
	var args []any
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []content.TopicRecommendation
	for rows.Next() {
		rec, err := scanPostgresRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateRecommendations inserts recs as pending in one transaction.
func (p *Postgres) CreateRecommendations(ctx context.Context, recs []content.TopicRecommendation) ([]content.TopicRecommendation, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	out := make([]content.TopicRecommendation, 0, len(recs))
	for _, r := range recs {
		r.ID = uuid.NewString()
		r.Status = content.RecommendationPending
		if err := tx.QueryRow(ctx, `INSERT INTO topic_recommendations (id, title, category, rationale, keywords, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
			r.ID, r.Title, r.Category, r.Rationale, orEmpty(r.Keywords), r.Priority, string(r.Status)).Scan(&r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// SetRecommendationStatus moves a recommendation to status.
func (p *Postgres) SetRecommendationStatus(ctx context.Context, id string, status content.RecommendationStatus) (content.TopicRecommendation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return content.TopicRecommendation{}, content.ErrNotFound
	}
	rec, err := scanPostgresRecommendation(p.pool.QueryRow(ctx,
		`UPDATE topic_recommendations SET status = $1 WHERE id = $2 RETURNING `+postgresRecommendationColumns, string(status), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return content.TopicRecommendation{}, content.ErrNotFound
	}
	return rec, err
}

func orEmpty(vals []string) []string {
	if vals == nil {
		return []string{}
	}
	return vals
}
