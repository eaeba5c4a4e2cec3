// Package recommend proposes future blog topics from how existing posts
// perform, and tracks their moderation.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
)

// ToolName is the forced tool of the recommendation call.
const ToolName = "recommend_topics"

// ErrMissingID is returned when approve/reject gets no recommendation id.
var ErrMissingID = errors.New("recommend: recommendationId is required")

// Actions accepted by Do.
const (
	ActionGenerate = "generate"
	ActionGet      = "get"
	ActionApprove  = "approve"
	ActionReject   = "reject"
)

// ErrUnknownAction is returned by Do for an unsupported action.
var ErrUnknownAction = errors.New("recommend: unknown action")

// Recommender generates and moderates topic recommendations.
type Recommender struct {
	gw     llm.Gateway
	store  content.Store
	logger *zap.Logger
	count  int
}

// New returns a Recommender. gw may be nil when no gateway is configured;
// Generate then fails with llm.ErrNoAPIKey.
func New(gw llm.Gateway, store content.Store, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{gw: gw, store: store, logger: logger, count: 5}
}

// Action is one analytics-recommender request.
type Action struct {
	Action           string `json:"action"`
	RecommendationID string `json:"recommendationId"`
	// Status filters the get action; empty lists all.
	Status content.RecommendationStatus `json:"status"`
}

// Do runs a. The result is a list for generate and get, and the updated
// recommendation for approve and reject.
func (r *Recommender) Do(ctx context.Context, a Action) (any, error) {
	switch strings.ToLower(strings.TrimSpace(a.Action)) {
	case ActionGenerate:
		return r.Generate(ctx)
	case ActionGet, "":
		return r.store.ListRecommendations(ctx, a.Status)
	case ActionApprove:
		return r.setStatus(ctx, a.RecommendationID, content.RecommendationApproved)
	case ActionReject:
		return r.setStatus(ctx, a.RecommendationID, content.RecommendationRejected)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownAction, a.Action)
}

func (r *Recommender) setStatus(ctx context.Context, id string, status content.RecommendationStatus) (content.TopicRecommendation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return content.TopicRecommendation{}, ErrMissingID
	}
	return r.store.SetRecommendationStatus(ctx, id, status)
}

type proposal struct {
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Rationale string   `json:"rationale"`
	Keywords  []string `json:"keywords"`
	Priority  string   `json:"priority"`
}

func recommendTool(n int) *llm.Tool {
	item := llm.ObjectSchema(map[string]any{
		"title":     llm.String("Working title of the post"),
		"category":  llm.String("Blog category"),
		"rationale": llm.String("Why this topic should perform, citing the data"),
		"keywords":  llm.StringArray("Target search keywords"),
		"priority":  map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
	})
	return &llm.Tool{
		Name:        ToolName,
		Description: "Submit the recommended blog topics.",
		Parameters: llm.ObjectSchema(map[string]any{
			"recommendations": map[string]any{
				"type":     "array",
				"items":    item,
				"minItems": 1,
				"maxItems": n,
			},
		}),
	}
}

// Generate asks the gateway for new topics based on published posts and
// stores them as pending.
func (r *Recommender) Generate(ctx context.Context) ([]content.TopicRecommendation, error) {
	if r.gw == nil {
		return nil, llm.ErrNoAPIKey
	}
	posts, err := r.store.ListPosts(ctx, content.PostFilter{Status: content.StatusPublished, Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	existing, err := r.store.ListRecommendations(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	resp, err := r.gw.Complete(ctx, llm.Request{
		System:      "You are a content strategist for an AI consulting firm. Recommend blog topics that will attract qualified leads.",
		Prompt:      performancePrompt(posts, existing, r.count),
		Tool:        recommendTool(r.count),
		Temperature: 0.6,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend topics: %w", err)
	}
	var ans struct {
		Recommendations []proposal `json:"recommendations"`
	}
	if err := resp.Decode(&ans); err != nil {
		return nil, fmt.Errorf("recommend topics: %w", err)
	}

	seen := make(map[string]bool, len(existing)+len(posts))
	for _, e := range existing {
		seen[strings.ToLower(e.Title)] = true
	}
	for _, p := range posts {
		seen[strings.ToLower(p.Title)] = true
	}
	var recs []content.TopicRecommendation
	for _, p := range ans.Recommendations {
		title := strings.TrimSpace(p.Title)
		if title == "" || seen[strings.ToLower(title)] {
			continue
		}
		seen[strings.ToLower(title)] = true
		recs = append(recs, content.TopicRecommendation{
			Title:     title,
			Category:  strings.TrimSpace(p.Category),
			Rationale: strings.TrimSpace(p.Rationale),
			Keywords:  content.FilterEmpty(p.Keywords),
			Priority:  normalizePriority(p.Priority),
			Status:    content.RecommendationPending,
		})
	}
	if len(recs) == 0 {
		return []content.TopicRecommendation{}, nil
	}
	saved, err := r.store.CreateRecommendations(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("save recommendations: %w", err)
	}
	r.logger.Info("topic recommendations generated", zap.Int("count", len(saved)))
	return saved, nil
}

func normalizePriority(p string) string {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case "high", "low":
		return p
	}
	return "medium"
}

func performancePrompt(posts []content.BlogPost, existing []content.TopicRecommendation, n int) string {
	sorted := append([]content.BlogPost(nil), posts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Views > sorted[j].Views })

	categories := map[string]int{}
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend %d new blog topics.\n\nPublished posts by views:\n", n)
	for _, p := range sorted {
		fmt.Fprintf(&b, "- %q (%s): %d views\n", p.Title, p.Category, p.Views)
		categories[p.Category] += p.Views
	}
	if len(sorted) == 0 {
		b.WriteString("- none yet; recommend foundational topics\n")
	}
	if len(categories) > 0 {
		names := make([]string, 0, len(categories))
		for c := range categories {
			names = append(names, c)
		}
		sort.Slice(names, func(i, j int) bool {
			if categories[names[i]] != categories[names[j]] {
				return categories[names[i]] > categories[names[j]]
			}
			return names[i] < names[j]
		})
		b.WriteString("\nViews by category:\n")
		for _, c := range names {
			fmt.Fprintf(&b, "- %s: %d\n", c, categories[c])
		}
	}
	if len(existing) > 0 {
		b.WriteString("\nAlready suggested (do not repeat):\n")
		for _, e := range existing {
			fmt.Fprintf(&b, "- %s\n", e.Title)
		}
	}
	return b.String()
}
