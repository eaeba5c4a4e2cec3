// Package content defines the domain records served and produced by leadpress
// and the Store contract every persistence backend satisfies.
package content

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("content: not found")
	// ErrConflict is returned when a compare-and-set write loses to a concurrent writer.
	ErrConflict = errors.New("content: revision conflict")
)

// PostStatus is the lifecycle state of a blog post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusReview    PostStatus = "review"
	StatusPublished PostStatus = "published"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusPublished:
		return true
	}
	return false
}

// BlogPost is an article shown on the marketing site.
type BlogPost struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Excerpt         string     `json:"excerpt"`
	Category        string     `json:"category"`
	Content         string     `json:"content"`
	Tags            []string   `json:"tags"`
	Status          PostStatus `json:"status"`
	Date            string     `json:"date"`
	Views           int        `json:"views"`
	AuthorName      string     `json:"author_name"`
	AuthorRole      string     `json:"author_role"`
	AuthorImage     string     `json:"author_image"`
	MetaDescription string     `json:"meta_description"`
	MetaKeywords    []string   `json:"meta_keywords"`
	Image           string     `json:"image"`
	ReadTime        string     `json:"read_time"`
	Color           string     `json:"color"`
	Bg              string     `json:"bg"`
	Border          string     `json:"border"`
	IdempotencyKey  string     `json:"-"`
	Revision        int        `json:"revision"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Published reports whether the post is publicly visible.
func (p BlogPost) Published() bool {
	return p.Status == StatusPublished
}

// Stat is one headline figure of a case study.
type Stat struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// CaseStudy is a client engagement write-up. Authored out-of-band.
type CaseStudy struct {
	ID              string `json:"id" yaml:"id"`
	Client          string `json:"client" yaml:"client"`
	Category        string `json:"category" yaml:"category"`
	Challenge       string `json:"challenge" yaml:"challenge"`
	Solution        string `json:"solution" yaml:"solution"`
	Results         string `json:"results" yaml:"results"`
	Stats           []Stat `json:"stats" yaml:"stats"`
	FullDescription string `json:"full_description" yaml:"full_description"`
}

// Contact sources.
const (
	SourceContact      = "contact"
	SourceConsultation = "consultation"
)

// ContactSubmission is a lead captured from a site form. Append-only.
type ContactSubmission struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Company        string    `json:"company,omitempty"`
	AreaOfInterest string    `json:"area_of_interest,omitempty"`
	Message        string    `json:"message"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
}

// Review types recorded on EditorReview rows.
const (
	ReviewComprehensive = "comprehensive"
	ReviewBatch         = "batch"
)

// EditorReview is the audit record of one review pass. Append-only.
type EditorReview struct {
	ID              string    `json:"id"`
	BlogPostID      string    `json:"blog_post_id"`
	ReviewType      string    `json:"review_type"`
	OriginalContent string    `json:"original_content"`
	EditedContent   string    `json:"edited_content"`
	IssuesFound     []string  `json:"issues_found"`
	CorrectionsMade []string  `json:"corrections_made"`
	Score           int       `json:"score"`
	AIReasoning     string    `json:"ai_reasoning"`
	CreatedAt       time.Time `json:"created_at"`
}

// BrandVoiceProfile describes the house writing style, one per source.
type BrandVoiceProfile struct {
	Source            string    `json:"source" yaml:"source"`
	KeyPhrases        []string  `json:"key_phrases" yaml:"key_phrases"`
	ToneDescriptors   []string  `json:"tone_descriptors" yaml:"tone_descriptors"`
	ForbiddenTerms    []string  `json:"forbidden_terms" yaml:"forbidden_terms"`
	WritingStyleNotes string    `json:"writing_style_notes" yaml:"writing_style_notes"`
	TopicsCovered     []string  `json:"topics_covered" yaml:"topics_covered"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// RecommendationStatus is the moderation state of a topic recommendation.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationApproved RecommendationStatus = "approved"
	RecommendationRejected RecommendationStatus = "rejected"
)

// TopicRecommendation is a suggested future blog topic.
type TopicRecommendation struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Category  string               `json:"category"`
	Rationale string               `json:"rationale"`
	Keywords  []string             `json:"keywords"`
	Priority  string               `json:"priority"`
	Status    RecommendationStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// PostFilter narrows ListPosts results. Zero values match everything.
type PostFilter struct {
	Status   PostStatus
	Category string
	Tag      string
	Limit    int
}

// Store is the persistence contract shared by the SQLite, Postgres and
// in-memory backends.
type Store interface {
	ListPosts(ctx context.Context, f PostFilter) ([]BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string, publishedOnly bool) (BlogPost, error)
	GetPostByID(ctx context.Context, id string) (BlogPost, error)
	GetPostByIdempotencyKey(ctx context.Context, key string) (BlogPost, error)
	CreatePost(ctx context.Context, p BlogPost) (BlogPost, error)
	// UpdatePostReview overwrites content and status if the stored revision
	// still equals revision, and returns the new revision.
	UpdatePostReview(ctx context.Context, id string, revision int, body string, status PostStatus) (int, error)
	IncrementViews(ctx context.Context, slug string) error
	RecentTitles(ctx context.Context, n int) ([]string, error)

	ListCaseStudies(ctx context.Context) ([]CaseStudy, error)
	GetCaseStudy(ctx context.Context, id string) (CaseStudy, error)
	UpsertCaseStudy(ctx context.Context, cs CaseStudy) error

	CreateContactSubmission(ctx context.Context, s ContactSubmission) (ContactSubmission, error)
	CreateEditorReview(ctx context.Context, r EditorReview) (EditorReview, error)

	GetBrandVoice(ctx context.Context, source string) (BrandVoiceProfile, error)
	UpsertBrandVoice(ctx context.Context, p BrandVoiceProfile) error

	ListRecommendations(ctx context.Context, status RecommendationStatus) ([]TopicRecommendation, error)
	CreateRecommendations(ctx context.Context, recs []TopicRecommendation) ([]TopicRecommendation, error)
	SetRecommendationStatus(ctx context.Context, id string, status RecommendationStatus) (TopicRecommendation, error)

	Close() error
}
