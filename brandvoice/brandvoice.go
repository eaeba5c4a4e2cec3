// Package brandvoice derives the house writing style from the company's
// Substack feed and stores it as a BrandVoiceProfile for the review
// pipeline.
package brandvoice

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
)

// Source is the profile source written by Sync.
const Source = "substack"

// ToolName is the forced tool of the extraction call.
const ToolName = "extract_brand_voice"

var (
	// ErrInvalidFeedURL is returned for a missing or non-HTTP feed URL.
	ErrInvalidFeedURL = errors.New("brandvoice: invalid feed URL")
	// ErrEmptyFeed is returned when the feed has no readable posts.
	ErrEmptyFeed = errors.New("brandvoice: feed has no posts")
)

const (
	maxPosts     = 10
	maxPostChars = 3000
)

// Syncer fetches a feed and refreshes the stored profile.
type Syncer struct {
	gw         llm.Gateway
	store      content.Store
	parser     *gofeed.Parser
	defaultURL string
	logger     *zap.Logger
	now        func() time.Time
}

// New returns a Syncer that falls back to defaultURL when Sync gets none.
func New(gw llm.Gateway, store content.Store, defaultURL string, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		gw:         gw,
		store:      store,
		parser:     gofeed.NewParser(),
		defaultURL: defaultURL,
		logger:     logger,
		now:        time.Now,
	}
}

// FeedURL normalizes a Substack address to its RSS feed URL.
func FeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidFeedURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeedURL, raw)
	}
	if p := strings.TrimRight(u.Path, "/"); p == "" {
		u.Path = "/feed"
	}
	return u.String(), nil
}

type extraction struct {
	KeyPhrases        []string `json:"key_phrases"`
	ToneDescriptors   []string `json:"tone_descriptors"`
	ForbiddenTerms    []string `json:"forbidden_terms"`
	WritingStyleNotes string   `json:"writing_style_notes"`
	TopicsCovered     []string `json:"topics_covered"`
}

var extractTool = &llm.Tool{
	Name:        ToolName,
	Description: "Submit the brand voice profile extracted from the posts.",
	Parameters: llm.ObjectSchema(map[string]any{
		"key_phrases":         llm.StringArray("Signature phrases the author reuses"),
		"tone_descriptors":    llm.StringArray("Adjectives describing the tone"),
		"forbidden_terms":     llm.StringArray("Words or phrases the author avoids"),
		"writing_style_notes": llm.String("Paragraph on sentence length, structure and voice"),
		"topics_covered":      llm.StringArray("Recurring subjects"),
	}),
}

// Sync fetches feedURL (or the default feed), extracts the voice and
// upserts it.
func (s *Syncer) Sync(ctx context.Context, feedURL string) (content.BrandVoiceProfile, error) {
	if strings.TrimSpace(feedURL) == "" {
		feedURL = s.defaultURL
	}
	feedURL, err := FeedURL(feedURL)
	if err != nil {
		return content.BrandVoiceProfile{}, err
	}

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return content.BrandVoiceProfile{}, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	posts := postTexts(feed)
	if len(posts) == 0 {
		return content.BrandVoiceProfile{}, ErrEmptyFeed
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyse the writing voice of these %d posts from %q.\n", len(posts), feed.Title)
	for i, p := range posts {
		fmt.Fprintf(&b, "\n--- Post %d ---\n%s\n", i+1, p)
	}
	resp, err := s.gw.Complete(ctx, llm.Request{
		System:      "You are a brand strategist. Describe the author's voice so other writers can match it.",
		Prompt:      b.String(),
		Tool:        extractTool,
		Temperature: 0.3,
	})
	if err != nil {
		return content.BrandVoiceProfile{}, fmt.Errorf("extract brand voice: %w", err)
	}
	var ex extraction
	if err := resp.Decode(&ex); err != nil {
		return content.BrandVoiceProfile{}, fmt.Errorf("extract brand voice: %w", err)
	}

	profile := content.BrandVoiceProfile{
		Source:            Source,
		KeyPhrases:        content.FilterEmpty(ex.KeyPhrases),
		ToneDescriptors:   content.FilterEmpty(ex.ToneDescriptors),
		ForbiddenTerms:    content.FilterEmpty(ex.ForbiddenTerms),
		WritingStyleNotes: strings.TrimSpace(ex.WritingStyleNotes),
		TopicsCovered:     content.FilterEmpty(ex.TopicsCovered),
		UpdatedAt:         s.now().UTC(),
	}
	if err := s.store.UpsertBrandVoice(ctx, profile); err != nil {
		return content.BrandVoiceProfile{}, fmt.Errorf("save brand voice: %w", err)
	}
	s.logger.Info("brand voice synced",
		zap.String("feed", feedURL),
		zap.Int("posts", len(posts)),
		zap.Int("key_phrases", len(profile.KeyPhrases)),
	)
	return profile, nil
}

// postTexts returns the plain text of up to maxPosts feed items.
func postTexts(feed *gofeed.Feed) []string {
	var out []string
	for _, item := range feed.Items {
		if len(out) == maxPosts {
			break
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		text := htmlText(body)
		if text == "" {
			continue
		}
		if item.Title != "" {
			text = item.Title + "\n" + text
		}
		out = append(out, content.Truncate(text, maxPostChars))
	}
	return out
}

func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
