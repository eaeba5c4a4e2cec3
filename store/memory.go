package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/leadpress/content"
)

// Memory is an in-process content.Store used for fixtures and tests.
type Memory struct {
	mu              sync.RWMutex
	posts           map[string]content.BlogPost
	caseStudies     map[string]content.CaseStudy
	contacts        []content.ContactSubmission
	reviews         []content.EditorReview
	brandVoices     map[string]content.BrandVoiceProfile
	recommendations map[string]content.TopicRecommendation
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		posts:           make(map[string]content.BlogPost),
		caseStudies:     make(map[string]content.CaseStudy),
		brandVoices:     make(map[string]content.BrandVoiceProfile),
		recommendations: make(map[string]content.TopicRecommendation),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) ListPosts(_ context.Context, f content.PostFilter) ([]content.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []content.BlogPost
	for _, p := range m.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.Tag != "" && !content.HasTag(p.Tags, f.Tag) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) GetPostBySlug(_ context.Context, slug string, publishedOnly bool) (content.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.posts {
		if p.Slug == slug && (!publishedOnly || p.Published()) {
			return p, nil
		}
	}
	return content.BlogPost{}, content.ErrNotFound
}

func (m *Memory) GetPostByID(_ context.Context, id string) (content.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return content.BlogPost{}, content.ErrNotFound
	}
	return p, nil
}

func (m *Memory) GetPostByIdempotencyKey(_ context.Context, key string) (content.BlogPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.posts {
		if key != "" && p.IdempotencyKey == key {
			return p, nil
		}
	}
	return content.BlogPost{}, content.ErrNotFound
}

func (m *Memory) CreatePost(_ context.Context, p content.BlogPost) (content.BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = prepareNewPost(p)
	for _, existing := range m.posts {
		if p.IdempotencyKey != "" && existing.IdempotencyKey == p.IdempotencyKey {
			return content.BlogPost{}, fmt.Errorf("idempotency key %q: %w", p.IdempotencyKey, content.ErrConflict)
		}
	}
	base := p.Slug
	for i := 2; m.slugTaken(p.Slug); i++ {
		p.Slug = fmt.Sprintf("%s-%d", base, i)
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Date == "" {
		p.Date = now.Format("2006-01-02")
	}
	p.Tags = parseTags(tagString(p.Tags))
	m.posts[p.ID] = p
	return p, nil
}

func (m *Memory) slugTaken(slug string) bool {
	for _, p := range m.posts {
		if p.Slug == slug {
			return true
		}
	}
	return false
}

func (m *Memory) UpdatePostReview(_ context.Context, id string, revision int, body string, status content.PostStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return 0, content.ErrNotFound
	}
	if p.Revision != revision {
		return 0, content.ErrConflict
	}
	p.Content = body
	p.Status = status
	p.Revision++
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p
	return p.Revision, nil
}

func (m *Memory) IncrementViews(_ context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.posts {
		if p.Slug == slug && p.Published() {
			p.Views++
			m.posts[id] = p
			return nil
		}
	}
	return content.ErrNotFound
}

func (m *Memory) RecentTitles(_ context.Context, n int) ([]string, error) {
	m.mu.RLock()
	posts := make([]content.BlogPost, 0, len(m.posts))
	for _, p := range m.posts {
		posts = append(posts, p)
	}
	m.mu.RUnlock()
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	var titles []string
	for i := 0; i < len(posts) && i < n; i++ {
		titles = append(titles, posts[i].Title)
	}
	return titles, nil
}

func (m *Memory) ListCaseStudies(_ context.Context) ([]content.CaseStudy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]content.CaseStudy, 0, len(m.caseStudies))
	for _, cs := range m.caseStudies {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out, nil
}

func (m *Memory) GetCaseStudy(_ context.Context, id string) (content.CaseStudy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.caseStudies[id]
	if !ok {
		return content.CaseStudy{}, content.ErrNotFound
	}
	return cs, nil
}

func (m *Memory) UpsertCaseStudy(_ context.Context, cs content.CaseStudy) error {
	m.mu.Lock()
	m.caseStudies[cs.ID] = cs
	m.mu.Unlock()
	return nil
}

func (m *Memory) CreateContactSubmission(_ context.Context, s content.ContactSubmission) (content.ContactSubmission, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	m.mu.Lock()
	m.contacts = append(m.contacts, s)
	m.mu.Unlock()
	return s, nil
}

// ContactSubmissions returns a copy of every stored submission.
func (m *Memory) ContactSubmissions() []content.ContactSubmission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]content.ContactSubmission(nil), m.contacts...)
}

func (m *Memory) CreateEditorReview(_ context.Context, r content.EditorReview) (content.EditorReview, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	m.mu.Lock()
	m.reviews = append(m.reviews, r)
	m.mu.Unlock()
	return r, nil
}

// EditorReviews returns a copy of every stored review record.
func (m *Memory) EditorReviews() []content.EditorReview {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]content.EditorReview(nil), m.reviews...)
}

func (m *Memory) GetBrandVoice(_ context.Context, source string) (content.BrandVoiceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.brandVoices[source]
	if !ok {
		return content.BrandVoiceProfile{}, content.ErrNotFound
	}
	return p, nil
}

func (m *Memory) UpsertBrandVoice(_ context.Context, p content.BrandVoiceProfile) error {
	p.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	m.brandVoices[p.Source] = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListRecommendations(_ context.Context, status content.RecommendationStatus) ([]content.TopicRecommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []content.TopicRecommendation
	for _, r := range m.recommendations {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateRecommendations(_ context.Context, recs []content.TopicRecommendation) ([]content.TopicRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	out := make([]content.TopicRecommendation, 0, len(recs))
	for _, r := range recs {
		r.ID = uuid.NewString()
		r.Status = content.RecommendationPending
		r.CreatedAt = now
		m.recommendations[r.ID] = r
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) SetRecommendationStatus(_ context.Context, id string, status content.RecommendationStatus) (content.TopicRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recommendations[id]
	if !ok {
		return content.TopicRecommendation{}, content.ErrNotFound
	}
	r.Status = status
	m.recommendations[id] = r
	return r, nil
}
