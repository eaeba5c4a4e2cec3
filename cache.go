package leadpress

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eringen/leadpress/content"
)

// PostCache is an in-memory cache of published blog posts and tags with TTL.
type PostCache struct {
	mu      sync.RWMutex
	posts   []content.BlogPost
	tags    []string
	fetched time.Time
	ttl     time.Duration
	store   content.Store
	now     func() time.Time
}

// NewPostCache creates a PostCache backed by the given Store.
func NewPostCache(s content.Store, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl, now: time.Now}
}

func (c *PostCache) valid() bool {
	return c.posts != nil && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *PostCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	posts, err := c.store.ListPosts(ctx, content.PostFilter{Status: content.StatusPublished})
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []content.BlogPost{}
	}
	c.posts = posts
	c.tags = collectTags(posts)
	c.fetched = c.now()
	return nil
}

// ensureLoaded returns cached posts and tags after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PostCache) ensureLoaded(ctx context.Context) ([]content.BlogPost, []string, error) {
	c.mu.RLock()
	if c.valid() {
		posts, tags := c.posts, c.tags
		c.mu.RUnlock()
		return posts, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.posts, c.tags, nil
}

// ListPosts returns published posts, optionally filtered by category and tag.
func (c *PostCache) ListPosts(ctx context.Context, category, tag string) ([]content.BlogPost, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" && tag == "" {
		return posts, nil
	}
	filtered := []content.BlogPost{}
	for _, p := range posts {
		if category != "" && !strings.EqualFold(p.Category, strings.TrimSpace(category)) {
			continue
		}
		if tag != "" && !content.HasTag(p.Tags, tag) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// ListTags returns all unique tags from published posts.
func (c *PostCache) ListTags(ctx context.Context) ([]string, error) {
	_, tags, err := c.ensureLoaded(ctx)
	return tags, err
}

// GetPost returns a single published post by slug from the cache.
func (c *PostCache) GetPost(ctx context.Context, slug string) (content.BlogPost, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return content.BlogPost{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return content.BlogPost{}, content.ErrNotFound
}

func collectTags(posts []content.BlogPost) []string {
	seen := map[string]bool{}
	tags := []string{}
	for _, p := range posts {
		for _, t := range p.Tags {
			n := content.NormalizeTag(t)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			tags = append(tags, t)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
	})
	return tags
}
