// Package generate writes new blog posts end to end: text from the LLM
// gateway, an illustrative image, an editorial review and the stored row.
// Requests are idempotent on a key derived from topic and category.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/media"
	"github.com/eringen/leadpress/review"
)

// ToolName is the forced tool of the text generation call.
const ToolName = "create_blog_post"

// Uploader stores generated images.
type Uploader interface {
	Upload(ctx context.Context, name string, raw []byte) (media.Image, error)
}

// Reviewer reviews a stored post and writes the decision back.
type Reviewer interface {
	ReviewPost(ctx context.Context, c review.Candidate) (review.Result, error)
}

// Author is stamped on generated posts.
type Author struct {
	Name  string
	Role  string
	Image string
}

// Request asks for one post. Empty fields are chosen by the generator.
type Request struct {
	Topic          string `json:"topic"`
	Category       string `json:"category"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// Result is a generated (or previously generated) post.
type Result struct {
	Post content.BlogPost
	// Duplicate is set when the idempotency key matched an existing post.
	Duplicate bool
	// ImageFallback is set when the stock image replaced a generated one.
	ImageFallback bool
	Review        *review.Result
}

// Generator produces blog posts.
type Generator struct {
	gw        llm.Gateway
	store     content.Store
	uploader  Uploader
	reviewer  Reviewer
	topics    []Topic
	next      atomic.Uint64
	author    Author
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
	now       func() time.Time
	every     time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithTopics replaces DefaultTopics.
func WithTopics(topics []Topic) Option {
	return func(g *Generator) { g.topics = topics }
}

// WithAuthor sets the byline of generated posts.
func WithAuthor(a Author) Option {
	return func(g *Generator) { g.author = a }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithReviewer runs every new post through r.
func WithReviewer(r Reviewer) Option {
	return func(g *Generator) { g.reviewer = r }
}

// WithUploader stores generated images with u. Without one, posts use the
// stock image of their category.
func WithUploader(u Uploader) Option {
	return func(g *Generator) { g.uploader = u }
}

// WithBatchDelay paces BatchGenerate.
func WithBatchDelay(d time.Duration) Option {
	return func(g *Generator) { g.every = d }
}

// New returns a Generator.
func New(gw llm.Gateway, store content.Store, opts ...Option) *Generator {
	g := &Generator{
		gw:        gw,
		store:     store,
		topics:    DefaultTopics,
		author:    Author{Name: "Editorial Team", Role: "AI Consultants"},
		sanitizer: bluemonday.UGCPolicy(),
		logger:    zap.NewNop(),
		now:       time.Now,
		every:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IdempotencyKey derives the stable key of a topic/category pair.
func IdempotencyKey(topic, category string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(topic)), " ") + "|" +
		strings.Join(strings.Fields(strings.ToLower(category)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// NextTopic returns the next topic in the rotation.
func (g *Generator) NextTopic() Topic {
	if len(g.topics) == 0 {
		return Topic{Title: "Practical AI adoption for small businesses", Category: DefaultCategory}
	}
	i := g.next.Add(1) - 1
	return g.topics[i%uint64(len(g.topics))]
}

type draft struct {
	Title           string   `json:"title"`
	Excerpt         string   `json:"excerpt"`
	Content         string   `json:"content"`
	Tags            []string `json:"tags"`
	MetaDescription string   `json:"meta_description"`
	MetaKeywords    []string `json:"meta_keywords"`
	ReadTime        string   `json:"read_time"`
}

var postTool = &llm.Tool{
	Name:        ToolName,
	Description: "Submit the finished blog post.",
	Parameters: llm.ObjectSchema(map[string]any{
		"title":            llm.String("Specific, benefit-led headline under 70 characters"),
		"excerpt":          llm.String("One or two sentence summary"),
		"content":          llm.String("Full post as HTML using <h2>, <h3>, <p>, <ul> and <blockquote>; 900-1400 words"),
		"tags":             llm.StringArray("3-5 short lowercase tags"),
		"meta_description": llm.String("SEO meta description under 160 characters"),
		"meta_keywords":    llm.StringArray("5-8 search keywords"),
		"read_time":        llm.String("Estimated reading time, e.g. \"6 min read\""),
	}),
}

// Generate writes one post. A post already stored under the request's
// idempotency key is returned as a duplicate without calling the gateway.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	topic := Topic{Title: strings.TrimSpace(req.Topic), Category: strings.TrimSpace(req.Category)}
	if topic.Title == "" {
		next := g.NextTopic()
		topic.Title = next.Title
		if topic.Category == "" {
			topic.Category = next.Category
		}
	}
	if topic.Category == "" {
		topic.Category = DefaultCategory
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = IdempotencyKey(topic.Title, topic.Category)
	}

	if existing, err := g.store.GetPostByIdempotencyKey(ctx, key); err == nil {
		return Result{Post: existing, Duplicate: true}, nil
	} else if !errors.Is(err, content.ErrNotFound) {
		return Result{}, fmt.Errorf("lookup idempotency key: %w", err)
	}

	d, err := g.write(ctx, topic)
	if err != nil {
		return Result{}, err
	}

	post := g.assemble(topic, d, key)
	var fallback bool
	post.Image, fallback = g.image(ctx, topic, post)

	created, err := g.store.CreatePost(ctx, post)
	if errors.Is(err, content.ErrConflict) {
		// Lost a race with an identical request.
		if existing, lookupErr := g.store.GetPostByIdempotencyKey(ctx, key); lookupErr == nil {
			return Result{Post: existing, Duplicate: true}, nil
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("create post: %w", err)
	}
	res := Result{Post: created, ImageFallback: fallback}

	if g.reviewer != nil {
		rv, err := g.reviewer.ReviewPost(ctx, review.Candidate{
			PostID:          created.ID,
			Title:           created.Title,
			Content:         created.Content,
			Excerpt:         created.Excerpt,
			MetaDescription: created.MetaDescription,
			Tags:            created.Tags,
		})
		if err != nil {
			// The post stays in review for a human.
			g.logger.Warn("review generated post", zap.String("post_id", created.ID), zap.Error(err))
		} else {
			res.Review = &rv
			res.Post.Status = rv.Status
			res.Post.Content = rv.EditedContent
			if rv.Revision > 0 {
				res.Post.Revision = rv.Revision
			}
		}
	}

	g.logger.Info("generated blog post",
		zap.String("post_id", res.Post.ID),
		zap.String("slug", res.Post.Slug),
		zap.String("status", string(res.Post.Status)),
		zap.Bool("image_fallback", fallback),
	)
	return res, nil
}

func (g *Generator) write(ctx context.Context, topic Topic) (draft, error) {
	recent, err := g.store.RecentTitles(ctx, 15)
	if err != nil {
		g.logger.Warn("load recent titles", zap.Error(err))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Write a blog post for an AI consulting firm.\nTopic: %s\nCategory: %s\n", topic.Title, topic.Category)
	b.WriteString("Audience: business owners and operations leaders evaluating AI.\n")
	b.WriteString("Use concrete examples, at least three <h2> sections and a closing call to action.\n")
	if len(recent) > 0 {
		b.WriteString("\nAvoid repeating these recent titles:\n")
		for _, t := range recent {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}

	resp, err := g.gw.Complete(ctx, llm.Request{
		System:      "You are a senior content strategist who writes clear, practical articles about applied AI.",
		Prompt:      b.String(),
		Tool:        postTool,
		Temperature: 0.7,
	})
	if err != nil {
		return draft{}, fmt.Errorf("generate post: %w", err)
	}
	var d draft
	if err := resp.Decode(&d); err != nil {
		return draft{}, fmt.Errorf("generate post: %w", err)
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(g.sanitizer.Sanitize(d.Content))
	if d.Title == "" || d.Content == "" {
		return draft{}, fmt.Errorf("generate post: %w", &llm.ParseError{Raw: resp.Raw(), Err: errors.New("missing title or content")})
	}
	return d, nil
}

func (g *Generator) assemble(topic Topic, d draft, key string) content.BlogPost {
	pal := paletteFor(topic.Category)
	readTime := strings.TrimSpace(d.ReadTime)
	if readTime == "" {
		readTime = estimateReadTime(d.Content)
	}
	return content.BlogPost{
		Title:           d.Title,
		Excerpt:         strings.TrimSpace(d.Excerpt),
		Category:        topic.Category,
		Content:         d.Content,
		Tags:            content.FilterEmpty(d.Tags),
		Status:          content.StatusReview,
		Date:            g.now().UTC().Format("2006-01-02"),
		AuthorName:      g.author.Name,
		AuthorRole:      g.author.Role,
		AuthorImage:     g.author.Image,
		MetaDescription: content.Truncate(strings.TrimSpace(d.MetaDescription), 160),
		MetaKeywords:    content.FilterEmpty(d.MetaKeywords),
		ReadTime:        readTime,
		Color:           pal.color,
		Bg:              pal.bg,
		Border:          pal.border,
		IdempotencyKey:  key,
	}
}

// image generates and uploads the hero image, falling back to the
// category's stock image on any failure.
func (g *Generator) image(ctx context.Context, topic Topic, post content.BlogPost) (string, bool) {
	if g.uploader == nil {
		return StockImage(topic.Category), true
	}
	prompt := fmt.Sprintf("Clean, modern editorial illustration for a blog post titled %q about %s. No text, no logos.", post.Title, topic.Category)
	raw, err := g.gw.GenerateImage(ctx, prompt)
	if err != nil {
		g.logger.Warn("generate image, using stock image", zap.String("category", topic.Category), zap.Error(err))
		return StockImage(topic.Category), true
	}
	img, err := g.uploader.Upload(ctx, content.Slugify(post.Title), raw)
	if err != nil {
		g.logger.Warn("upload image, using stock image", zap.String("category", topic.Category), zap.Error(err))
		return StockImage(topic.Category), true
	}
	return img.URL, false
}

func estimateReadTime(html string) string {
	words := len(strings.Fields(bluemonday.StrictPolicy().Sanitize(html)))
	mins := (words + 199) / 200
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%d min read", mins)
}

// ItemStatus tags one batch entry.
type ItemStatus string

const (
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
	ItemSkipped ItemStatus = "skipped"
)

// BatchItem is the outcome for one topic.
type BatchItem struct {
	Topic    string             `json:"topic"`
	Category string             `json:"category"`
	Status   ItemStatus         `json:"status"`
	PostID   string             `json:"postId,omitempty"`
	Title    string             `json:"title,omitempty"`
	Decision content.PostStatus `json:"decision,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// BatchSummary counts items per status.
type BatchSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// BatchReport holds one entry per topic, in order.
type BatchReport struct {
	Summary BatchSummary `json:"summary"`
	Results []BatchItem  `json:"results"`
}

// BatchGenerate generates a post per topic (the default rotation when
// topics is empty), one at a time. Existing posts are reported as skipped
// and failures never stop the run.
func (g *Generator) BatchGenerate(ctx context.Context, topics []Topic) (BatchReport, error) {
	if len(topics) == 0 {
		topics = g.topics
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if g.every > 0 {
		lim = rate.NewLimiter(rate.Every(g.every), 1)
	}
	report := BatchReport{
		Summary: BatchSummary{Total: len(topics)},
		Results: make([]BatchItem, 0, len(topics)),
	}
	var runErr error
	for _, t := range topics {
		item := BatchItem{Topic: t.Title, Category: t.Category}
		if runErr == nil {
			runErr = lim.Wait(ctx)
		}
		if runErr != nil {
			item.Status = ItemSkipped
			item.Error = "batch cancelled"
			report.Summary.Skipped++
			report.Results = append(report.Results, item)
			continue
		}
		res, err := g.Generate(ctx, Request{Topic: t.Title, Category: t.Category})
		switch {
		case err != nil:
			g.logger.Warn("batch generate item failed", zap.String("topic", t.Title), zap.Error(err))
			item.Status = ItemFailed
			item.Error = "generation failed"
			report.Summary.Failed++
		case res.Duplicate:
			item.Status = ItemSkipped
			item.PostID, item.Title = res.Post.ID, res.Post.Title
			item.Error = "already generated"
			report.Summary.Skipped++
		default:
			item.Status = ItemSuccess
			item.PostID, item.Title, item.Decision = res.Post.ID, res.Post.Title, res.Post.Status
			report.Summary.Success++
		}
		report.Results = append(report.Results, item)
	}
	return report, runErr
}
