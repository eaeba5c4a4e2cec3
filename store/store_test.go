package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eringen/leadpress/content"
)

// backends returns one fresh instance of every embedded backend.
func backends(t *testing.T) map[string]content.Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]content.Store{
		"sqlite": sqlite,
		"memory": NewMemory(),
	}
}

func samplePost() content.BlogPost {
	return content.BlogPost{
		Title:           "Test Post",
		Excerpt:         "A test post summary",
		Category:        "AI Strategy",
		Content:         "<p>This is test content.</p>",
		Tags:            []string{"AI", "Testing"},
		Status:          content.StatusPublished,
		Date:            "2024-01-15",
		MetaDescription: "meta",
		MetaKeywords:    []string{"ai", "tests"},
	}
}

func TestCreateAndGetPost(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			created, err := s.CreatePost(ctx, samplePost())
			if err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			if created.ID == "" {
				t.Fatal("ID should be assigned")
			}
			if created.Slug != "test-post" {
				t.Errorf("Slug = %q, want %q", created.Slug, "test-post")
			}
			if created.Revision != 1 {
				t.Errorf("Revision = %d, want 1", created.Revision)
			}

			got, err := s.GetPostBySlug(ctx, "test-post", true)
			if err != nil {
				t.Fatalf("GetPostBySlug failed: %v", err)
			}
			if got.Title != "Test Post" {
				t.Errorf("Title = %q, want %q", got.Title, "Test Post")
			}
			if got.Content != "<p>This is test content.</p>" {
				t.Errorf("Content = %q", got.Content)
			}
			if len(got.Tags) != 2 || got.Tags[0] != "ai" || got.Tags[1] != "testing" {
				t.Errorf("Tags = %v, want [ai testing]", got.Tags)
			}
			if len(got.MetaKeywords) != 2 {
				t.Errorf("MetaKeywords = %v", got.MetaKeywords)
			}

			byID, err := s.GetPostByID(ctx, created.ID)
			if err != nil {
				t.Fatalf("GetPostByID failed: %v", err)
			}
			if byID.Slug != created.Slug {
				t.Errorf("GetPostByID slug = %q, want %q", byID.Slug, created.Slug)
			}
		})
	}
}

func TestGetPostNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetPostBySlug(ctx, "missing-post", true); !errors.Is(err, content.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
			if _, err := s.GetPostByID(ctx, "nope"); !errors.Is(err, content.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestPublishedOnlyHidesReviewPosts(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := samplePost()
			p.Status = content.StatusReview
			if _, err := s.CreatePost(ctx, p); err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			if _, err := s.GetPostBySlug(ctx, "test-post", true); !errors.Is(err, content.ErrNotFound) {
				t.Errorf("review post should be hidden, got err = %v", err)
			}
			if _, err := s.GetPostBySlug(ctx, "test-post", false); err != nil {
				t.Errorf("review post should be visible to internal reads: %v", err)
			}
		})
	}
}

func TestCreatePostUniqueSlug(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first, err := s.CreatePost(ctx, samplePost())
			if err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			second, err := s.CreatePost(ctx, samplePost())
			if err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			if first.Slug == second.Slug {
				t.Fatalf("slugs should differ, both %q", first.Slug)
			}
			if second.Slug != "test-post-2" {
				t.Errorf("second slug = %q, want %q", second.Slug, "test-post-2")
			}
		})
	}
}

func TestCreatePostNonASCIITitleGetsSlug(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := samplePost()
			p.Title = "日本語"
			created, err := s.CreatePost(ctx, p)
			if err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			if !strings.HasPrefix(created.Slug, "post-") || len(created.Slug) != len("post-")+8 {
				t.Fatalf("slug = %q, want post-<8 chars>", created.Slug)
			}
			got, err := s.GetPostBySlug(ctx, created.Slug, true)
			if err != nil {
				t.Fatalf("GetPostBySlug(%q) failed: %v", created.Slug, err)
			}
			if got.ID != created.ID {
				t.Errorf("got post %q, want %q", got.ID, created.ID)
			}
		})
	}
}

func TestCreatePostIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := samplePost()
			p.IdempotencyKey = "abc123"
			created, err := s.CreatePost(ctx, p)
			if err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			if _, err := s.CreatePost(ctx, p); !errors.Is(err, content.ErrConflict) {
				t.Fatalf("duplicate key err = %v, want ErrConflict", err)
			}
			got, err := s.GetPostByIdempotencyKey(ctx, "abc123")
			if err != nil {
				t.Fatalf("GetPostByIdempotencyKey failed: %v", err)
			}
			if got.ID != created.ID {
				t.Errorf("ID = %q, want %q", got.ID, created.ID)
			}
		})
	}
}

func TestUpdatePostReviewRevision(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := samplePost()
			p.Status = content.StatusReview
			created, err := s.CreatePost(ctx, p)
			if err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			rev, err := s.UpdatePostReview(ctx, created.ID, created.Revision, "<p>edited</p>", content.StatusPublished)
			if err != nil {
				t.Fatalf("UpdatePostReview failed: %v", err)
			}
			if rev != 2 {
				t.Errorf("revision = %d, want 2", rev)
			}
			// A writer holding the old revision loses.
			if _, err := s.UpdatePostReview(ctx, created.ID, created.Revision, "<p>stale</p>", content.StatusReview); !errors.Is(err, content.ErrConflict) {
				t.Errorf("stale write err = %v, want ErrConflict", err)
			}
			got, err := s.GetPostByID(ctx, created.ID)
			if err != nil {
				t.Fatalf("GetPostByID failed: %v", err)
			}
			if got.Content != "<p>edited</p>" || got.Status != content.StatusPublished {
				t.Errorf("post = %q/%q, want edited/published", got.Content, got.Status)
			}
			if _, err := s.UpdatePostReview(ctx, "missing", 1, "x", content.StatusReview); !errors.Is(err, content.ErrNotFound) {
				t.Errorf("missing post err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListPostsFilters(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			posts := []content.BlogPost{
				{Title: "Newest", Date: "2024-03-01", Category: "Automation", Tags: []string{"agents"}, Status: content.StatusPublished},
				{Title: "Middle", Date: "2024-02-01", Category: "AI Strategy", Tags: []string{"strategy", "agents"}, Status: content.StatusPublished},
				{Title: "Oldest", Date: "2024-01-01", Category: "AI Strategy", Tags: []string{"strategy"}, Status: content.StatusReview},
			}
			for _, p := range posts {
				if _, err := s.CreatePost(ctx, p); err != nil {
					t.Fatalf("CreatePost failed: %v", err)
				}
			}

			tests := []struct {
				name   string
				filter content.PostFilter
				want   []string
			}{
				{"all", content.PostFilter{}, []string{"Newest", "Middle", "Oldest"}},
				{"published", content.PostFilter{Status: content.StatusPublished}, []string{"Newest", "Middle"}},
				{"category", content.PostFilter{Category: "ai strategy"}, []string{"Middle", "Oldest"}},
				{"tag", content.PostFilter{Tag: "Agents", Status: content.StatusPublished}, []string{"Newest", "Middle"}},
				{"limit", content.PostFilter{Limit: 1}, []string{"Newest"}},
			}
			for _, tt := range tests {
				got, err := s.ListPosts(ctx, tt.filter)
				if err != nil {
					t.Fatalf("%s: ListPosts failed: %v", tt.name, err)
				}
				if len(got) != len(tt.want) {
					t.Errorf("%s: got %d posts, want %d", tt.name, len(got), len(tt.want))
					continue
				}
				for i := range tt.want {
					if got[i].Title != tt.want[i] {
						t.Errorf("%s: [%d] = %q, want %q", tt.name, i, got[i].Title, tt.want[i])
					}
				}
			}
		})
	}
}

func TestIncrementViews(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.CreatePost(ctx, samplePost()); err != nil {
				t.Fatalf("CreatePost failed: %v", err)
			}
			for i := 0; i < 3; i++ {
				if err := s.IncrementViews(ctx, "test-post"); err != nil {
					t.Fatalf("IncrementViews failed: %v", err)
				}
			}
			got, _ := s.GetPostBySlug(ctx, "test-post", true)
			if got.Views != 3 {
				t.Errorf("Views = %d, want 3", got.Views)
			}
			if err := s.IncrementViews(ctx, "missing"); !errors.Is(err, content.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCaseStudies(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cs := content.CaseStudy{
				ID:       "acme-support",
				Client:   "Acme",
				Category: "Automation",
				Stats:    []content.Stat{{Value: "40%", Label: "faster resolution"}},
			}
			if err := s.UpsertCaseStudy(ctx, cs); err != nil {
				t.Fatalf("UpsertCaseStudy failed: %v", err)
			}
			cs.Results = "Shipped in six weeks"
			if err := s.UpsertCaseStudy(ctx, cs); err != nil {
				t.Fatalf("UpsertCaseStudy update failed: %v", err)
			}
			got, err := s.GetCaseStudy(ctx, "acme-support")
			if err != nil {
				t.Fatalf("GetCaseStudy failed: %v", err)
			}
			if got.Results != "Shipped in six weeks" {
				t.Errorf("Results = %q", got.Results)
			}
			if len(got.Stats) != 1 || got.Stats[0].Value != "40%" {
				t.Errorf("Stats = %+v", got.Stats)
			}
			all, err := s.ListCaseStudies(ctx)
			if err != nil {
				t.Fatalf("ListCaseStudies failed: %v", err)
			}
			if len(all) != 1 {
				t.Errorf("got %d case studies, want 1", len(all))
			}
			if _, err := s.GetCaseStudy(ctx, "missing"); !errors.Is(err, content.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestAppendOnlyRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			sub, err := s.CreateContactSubmission(ctx, content.ContactSubmission{
				Name: "Jane Doe", Email: "jane@co.com", Message: "Hello there, friends", Source: content.SourceContact,
			})
			if err != nil {
				t.Fatalf("CreateContactSubmission failed: %v", err)
			}
			if sub.ID == "" || sub.CreatedAt.IsZero() {
				t.Errorf("submission not stamped: %+v", sub)
			}
			rev, err := s.CreateEditorReview(ctx, content.EditorReview{
				BlogPostID: "p1", ReviewType: content.ReviewComprehensive, Score: 83,
				IssuesFound: []string{"typo"},
			})
			if err != nil {
				t.Fatalf("CreateEditorReview failed: %v", err)
			}
			if rev.ID == "" {
				t.Error("review ID should be assigned")
			}
		})
	}
}

func TestBrandVoiceUpsert(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetBrandVoice(ctx, "substack"); !errors.Is(err, content.ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
			p := content.BrandVoiceProfile{Source: "substack", ToneDescriptors: []string{"direct"}}
			if err := s.UpsertBrandVoice(ctx, p); err != nil {
				t.Fatalf("UpsertBrandVoice failed: %v", err)
			}
			p.ToneDescriptors = []string{"direct", "warm"}
			if err := s.UpsertBrandVoice(ctx, p); err != nil {
				t.Fatalf("UpsertBrandVoice failed: %v", err)
			}
			got, err := s.GetBrandVoice(ctx, "substack")
			if err != nil {
				t.Fatalf("GetBrandVoice failed: %v", err)
			}
			if len(got.ToneDescriptors) != 2 {
				t.Errorf("ToneDescriptors = %v", got.ToneDescriptors)
			}
		})
	}
}

func TestRecommendations(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			created, err := s.CreateRecommendations(ctx, []content.TopicRecommendation{
				{Title: "RAG in practice", Category: "AI Strategy", Priority: "high"},
				{Title: "Agent evals", Category: "Automation", Priority: "medium"},
			})
			if err != nil {
				t.Fatalf("CreateRecommendations failed: %v", err)
			}
			if len(created) != 2 || created[0].Status != content.RecommendationPending {
				t.Fatalf("created = %+v", created)
			}
			rec, err := s.SetRecommendationStatus(ctx, created[0].ID, content.RecommendationApproved)
			if err != nil {
				t.Fatalf("SetRecommendationStatus failed: %v", err)
			}
			if rec.Status != content.RecommendationApproved {
				t.Errorf("Status = %q", rec.Status)
			}
			pending, err := s.ListRecommendations(ctx, content.RecommendationPending)
			if err != nil {
				t.Fatalf("ListRecommendations failed: %v", err)
			}
			if len(pending) != 1 {
				t.Errorf("got %d pending, want 1", len(pending))
			}
			if _, err := s.SetRecommendationStatus(ctx, "missing", content.RecommendationRejected); !errors.Is(err, content.ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"memory:", "memory"},
		{"postgres://u:p@localhost/db", "postgres"},
		{"postgresql://localhost/db", "postgres"},
		{"sqlite:data/leadpress.db", "sqlite"},
		{"data/leadpress.db", "sqlite"},
	}
	for _, tt := range tests {
		if got := Backend(tt.dsn); got != tt.want {
			t.Errorf("Backend(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}

	s, err := Open(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "open.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLite); !ok {
		t.Errorf("Open returned %T, want *SQLite", s)
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{",go,web,", []string{"go", "web"}},
		{",single,", []string{"single"}},
		{",", nil},
		{"", nil},
		{",  spaced  ,tags,", []string{"spaced", "tags"}},
	}
	for _, tt := range tests {
		got := parseTags(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("parseTags(%q) = %v, want %v", tt.input, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("parseTags(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.expected[i])
			}
		}
	}
}
