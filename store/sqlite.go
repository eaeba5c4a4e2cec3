package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/leadpress/content"
)

// SQLite stores content in a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during writes; busy_timeout makes writers wait
	// instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLite{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS blog_posts (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT ',',
    status TEXT NOT NULL DEFAULT 'draft',
    date TEXT NOT NULL,
    views INTEGER NOT NULL DEFAULT 0,
    author_name TEXT NOT NULL DEFAULT '',
    author_role TEXT NOT NULL DEFAULT '',
    author_image TEXT NOT NULL DEFAULT '',
    meta_description TEXT NOT NULL DEFAULT '',
    meta_keywords TEXT NOT NULL DEFAULT '[]',
    image TEXT NOT NULL DEFAULT '',
    read_time TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    bg TEXT NOT NULL DEFAULT '',
    border TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT,
    revision INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS blog_posts_idempotency_key ON blog_posts(idempotency_key);
CREATE INDEX IF NOT EXISTS blog_posts_status_date ON blog_posts(status, date);

CREATE TABLE IF NOT EXISTS case_studies (
    id TEXT PRIMARY KEY,
    client TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    challenge TEXT NOT NULL DEFAULT '',
    solution TEXT NOT NULL DEFAULT '',
    results TEXT NOT NULL DEFAULT '',
    stats TEXT NOT NULL DEFAULT '[]',
    full_description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS contact_submissions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    company TEXT,
    area_of_interest TEXT,
    message TEXT NOT NULL,
    source TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS editor_reviews (
    id TEXT PRIMARY KEY,
    blog_post_id TEXT NOT NULL,
    review_type TEXT NOT NULL,
    original_content TEXT NOT NULL,
    edited_content TEXT NOT NULL,
    issues_found TEXT NOT NULL DEFAULT '[]',
    corrections_made TEXT NOT NULL DEFAULT '[]',
    score INTEGER NOT NULL,
    ai_reasoning TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS brand_voice_profiles (
    source TEXT PRIMARY KEY,
    key_phrases TEXT NOT NULL DEFAULT '[]',
    tone_descriptors TEXT NOT NULL DEFAULT '[]',
    forbidden_terms TEXT NOT NULL DEFAULT '[]',
    writing_style_notes TEXT NOT NULL DEFAULT '',
    topics_covered TEXT NOT NULL DEFAULT '[]',
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS topic_recommendations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    rationale TEXT NOT NULL DEFAULT '',
    keywords TEXT NOT NULL DEFAULT '[]',
    priority TEXT NOT NULL DEFAULT 'medium',
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TEXT NOT NULL
);
`)
	return err
}

const sqlitePostColumns = `id, slug, title, excerpt, category, content, tags, status, date, views,
	author_name, author_role, author_image, meta_description, meta_keywords, image, read_time,
	color, bg, border, COALESCE(idempotency_key, ''), revision, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePost(r rowScanner) (content.BlogPost, error) {
	var p content.BlogPost
	var tags, keywords, status, created, updated string
	err := r.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Category, &p.Content, &tags, &status, &p.Date, &p.Views,
		&p.AuthorName, &p.AuthorRole, &p.AuthorImage, &p.MetaDescription, &keywords, &p.Image, &p.ReadTime,
		&p.Color, &p.Bg, &p.Border, &p.IdempotencyKey, &p.Revision, &created, &updated)
	if err != nil {
		return content.BlogPost{}, err
	}
	p.Tags = parseTags(tags)
	p.Status = content.PostStatus(status)
	p.MetaKeywords = decodeList(keywords)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// ListPosts returns posts ordered by date descending.
func (s *SQLite) ListPosts(ctx context.Context, f content.PostFilter) ([]content.BlogPost, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		where = append(where, "lower(category) = lower(?)")
		args = append(args, f.Category)
	}
	if f.Tag != "" {
		where = append(where, "instr(lower(tags), ',' || ? || ',') > 0")
		args = append(args, content.NormalizeTag(f.Tag))
	}
	q := `SELECT ` + sqlitePostColumns + ` FROM blog_posts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date DESC, created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []content.BlogPost
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPostBySlug returns a post by slug, optionally only if published.
func (s *SQLite) GetPostBySlug(ctx context.Context, slug string, publishedOnly bool) (content.BlogPost, error) {
	q := `SELECT ` + sqlitePostColumns + ` FROM blog_posts WHERE slug = ?`
	if publishedOnly {
		q += ` AND status = 'published'`
	}
	return s.getPost(ctx, q, slug)
}

// GetPostByID returns a post by id regardless of status.
func (s *SQLite) GetPostByID(ctx context.Context, id string) (content.BlogPost, error) {
	return s.getPost(ctx, `SELECT `+sqlitePostColumns+` FROM blog_posts WHERE id = ?`, id)
}

// GetPostByIdempotencyKey returns the post created under key.
func (s *SQLite) GetPostByIdempotencyKey(ctx context.Context, key string) (content.BlogPost, error) {
	return s.getPost(ctx, `SELECT `+sqlitePostColumns+` FROM blog_posts WHERE idempotency_key = ?`, key)
}

func (s *SQLite) getPost(ctx context.Context, q string, arg string) (content.BlogPost, error) {
	p, err := scanSQLitePost(s.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return content.BlogPost{}, content.ErrNotFound
	}
	return p, err
}

// CreatePost inserts a new post. A taken slug gets a numeric suffix; a taken
// idempotency key yields content.ErrConflict.
func (s *SQLite) CreatePost(ctx context.Context, p content.BlogPost) (content.BlogPost, error) {
	p = prepareNewPost(p)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Date == "" {
		p.Date = now.Format("2006-01-02")
	}
	slug, err := s.uniqueSlug(ctx, p.Slug)
	if err != nil {
		return content.BlogPost{}, err
	}
	p.Slug = slug

	var key any
	if p.IdempotencyKey != "" {
		key = p.IdempotencyKey
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO blog_posts (id, slug, title, excerpt, category, content, tags, status, date, views,
	author_name, author_role, author_image, meta_description, meta_keywords, image, read_time, color, bg, border,
	idempotency_key, revision, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Title, p.Excerpt, p.Category, p.Content, tagString(p.Tags), string(p.Status), p.Date, p.Views,
		p.AuthorName, p.AuthorRole, p.AuthorImage, p.MetaDescription, encodeList(p.MetaKeywords), p.Image, p.ReadTime,
		p.Color, p.Bg, p.Border, key, p.Revision, formatTime(now), formatTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "idempotency_key") {
			return content.BlogPost{}, fmt.Errorf("idempotency key %q: %w", p.IdempotencyKey, content.ErrConflict)
		}
		return content.BlogPost{}, err
	}
	p.Tags = parseTags(tagString(p.Tags))
	return p, nil
}

func (s *SQLite) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blog_posts WHERE slug = ?`, candidate).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// UpdatePostReview overwrites content and status when revision still matches.
func (s *SQLite) UpdatePostReview(ctx context.Context, id string, revision int, body string, status content.PostStatus) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE blog_posts SET content = ?, status = ?, revision = revision + 1, updated_at = ? WHERE id = ? AND revision = ?`,
		body, string(status), formatTime(time.Now().UTC()), id, revision)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		if _, err := s.GetPostByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, content.ErrConflict
	}
	return revision + 1, nil
}

// IncrementViews bumps the view counter of a published post.
func (s *SQLite) IncrementViews(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE blog_posts SET views = views + 1 WHERE slug = ? AND status = 'published'`, slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return content.ErrNotFound
	}
	return nil
}

// RecentTitles returns the titles of the n newest posts.
func (s *SQLite) RecentTitles(ctx context.Context, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM blog_posts ORDER BY created_at DESC LIMIT ?`, n)
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
func (s *SQLite) ListCaseStudies(ctx context.Context) ([]content.CaseStudy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, client, category, challenge, solution, results, stats, full_description FROM case_studies ORDER BY client`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []content.CaseStudy
	for rows.Next() {
		cs, err := scanSQLiteCaseStudy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// GetCaseStudy returns a case study by id.
func (s *SQLite) GetCaseStudy(ctx context.Context, id string) (content.CaseStudy, error) {
	cs, err := scanSQLiteCaseStudy(s.db.QueryRowContext(ctx,
		`SELECT id, client, category, challenge, solution, results, stats, full_description FROM case_studies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return content.CaseStudy{}, content.ErrNotFound
	}
	return cs, err
}

func scanSQLiteCaseStudy(r rowScanner) (content.CaseStudy, error) {
	var cs content.CaseStudy
	var stats string
	if err := r.Scan(&cs.ID, &cs.Client, &cs.Category, &cs.Challenge, &cs.Solution, &cs.Results, &stats, &cs.FullDescription); err != nil {
		return content.CaseStudy{}, err
	}
	if err := json.Unmarshal([]byte(stats), &cs.Stats); err != nil {
		return content.CaseStudy{}, fmt.Errorf("decode stats for %s: %w", cs.ID, err)
	}
	return cs, nil
}

// UpsertCaseStudy inserts or replaces a case study.
func (s *SQLite) UpsertCaseStudy(ctx context.Context, cs content.CaseStudy) error {
	stats, err := json.Marshal(cs.Stats)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO case_studies (id, client, category, challenge, solution, results, stats, full_description) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.ID, cs.Client, cs.Category, cs.Challenge, cs.Solution, cs.Results, string(stats), cs.FullDescription)
	return err
}

// CreateContactSubmission appends a contact submission.
func (s *SQLite) CreateContactSubmission(ctx context.Context, sub content.ContactSubmission) (content.ContactSubmission, error) {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO contact_submissions (id, name, email, company, area_of_interest, message, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.Email, nullable(sub.Company), nullable(sub.AreaOfInterest), sub.Message, sub.Source, formatTime(sub.CreatedAt))
	if err != nil {
		return content.ContactSubmission{}, err
	}
	return sub, nil
}

// CreateEditorReview appends a review audit record.
func (s *SQLite) CreateEditorReview(ctx context.Context, r content.EditorReview) (content.EditorReview, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO editor_reviews (id, blog_post_id, review_type, original_content, edited_content, issues_found, corrections_made, score, ai_reasoning, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BlogPostID, r.ReviewType, r.OriginalContent, r.EditedContent, encodeList(r.IssuesFound), encodeList(r.CorrectionsMade), r.Score, r.AIReasoning, formatTime(r.CreatedAt))
	if err != nil {
		return content.EditorReview{}, err
	}
	return r, nil
}

// GetBrandVoice returns the profile for source.
func (s *SQLite) GetBrandVoice(ctx context.Context, source string) (content.BrandVoiceProfile, error) {
	var p content.BrandVoiceProfile
	var phrases, tone, forbidden, topics, updated string
	err := s.db.QueryRowContext(ctx, `SELECT source, key_phrases, tone_descriptors, forbidden_terms, writing_style_notes, topics_covered, updated_at FROM brand_voice_profiles WHERE source = ?`, source).
		Scan(&p.Source, &phrases, &tone, &forbidden, &p.WritingStyleNotes, &topics, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return content.BrandVoiceProfile{}, content.ErrNotFound
	}
	if err != nil {
		return content.BrandVoiceProfile{}, err
	}
	p.KeyPhrases = decodeList(phrases)
	p.ToneDescriptors = decodeList(tone)
	p.ForbiddenTerms = decodeList(forbidden)
	p.TopicsCovered = decodeList(topics)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// UpsertBrandVoice replaces the profile for p.Source.
func (s *SQLite) UpsertBrandVoice(ctx context.Context, p content.BrandVoiceProfile) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO brand_voice_profiles (source, key_phrases, tone_descriptors, forbidden_terms, writing_style_notes, topics_covered, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(source) DO UPDATE SET key_phrases = excluded.key_phrases, tone_descriptors = excluded.tone_descriptors,
	forbidden_terms = excluded.forbidden_terms, writing_style_notes = excluded.writing_style_notes,
	topics_covered = excluded.topics_covered, updated_at = excluded.updated_at`,
		p.Source, encodeList(p.KeyPhrases), encodeList(p.ToneDescriptors), encodeList(p.ForbiddenTerms), p.WritingStyleNotes, encodeList(p.TopicsCovered), formatTime(time.Now().UTC()))
	return err
}

// ListRecommendations returns recommendations, newest first, optionally by status.
func (s *SQLite) ListRecommendations(ctx context.Context, status content.RecommendationStatus) ([]content.TopicRecommendation, error) {
	q := `SELECT id, title, category, rationale, keywords, priority, status, created_at FROM topic_recommendations`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []content.TopicRecommendation
	for rows.Next() {
		r, err := scanSQLiteRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSQLiteRecommendation(r rowScanner) (content.TopicRecommendation, error) {
	var rec content.TopicRecommendation
	var keywords, status, created string
	if err := r.Scan(&rec.ID, &rec.Title, &rec.Category, &rec.Rationale, &keywords, &rec.Priority, &status, &created); err != nil {
		return content.TopicRecommendation{}, err
	}
	rec.Keywords = decodeList(keywords)
	rec.Status = content.RecommendationStatus(status)
	rec.CreatedAt = parseTime(created)
	return rec, nil
}

// CreateRecommendations inserts recs as pending in one transaction.
func (s *SQLite) CreateRecommendations(ctx context.Context, recs []content.TopicRecommendation) ([]content.TopicRecommendation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	now := time.Now().UTC()
	out := make([]content.TopicRecommendation, 0, len(recs))
	for _, r := range recs {
		r.ID = uuid.NewString()
		r.Status = content.RecommendationPending
		r.CreatedAt = now
		if _, err := tx.ExecContext(ctx, `INSERT INTO topic_recommendations (id, title, category, rationale, keywords, priority, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Title, r.Category, r.Rationale, encodeList(r.Keywords), r.Priority, string(r.Status), formatTime(now)); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetRecommendationStatus moves a recommendation to status.
func (s *SQLite) SetRecommendationStatus(ctx context.Context, id string, status content.RecommendationStatus) (content.TopicRecommendation, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE topic_recommendations SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return content.TopicRecommendation{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return content.TopicRecommendation{}, content.ErrNotFound
	}
	return scanSQLiteRecommendation(s.db.QueryRowContext(ctx,
		`SELECT id, title, category, rationale, keywords, priority, status, created_at FROM topic_recommendations WHERE id = ?`, id))
}

func encodeList(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	b, _ := json.Marshal(vals)
	return string(b)
}

func decodeList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeLayout is fixed-width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
