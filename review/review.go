// Package review scores blog posts on four editorial dimensions through the
// LLM gateway, aggregates them with a single Policy and decides whether a
// post publishes or goes to a human. Every run leaves an EditorReview row.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
)

// Outcome tags a DimensionResult.
type Outcome string

const (
	Scored      Outcome = "scored"
	Unparseable Outcome = "unparseable"
)

// DimensionResult is the verdict for one dimension. Raw is kept only when
// the model's answer could not be parsed.
type DimensionResult struct {
	Dimension   Dimension `json:"dimension"`
	Outcome     Outcome   `json:"outcome"`
	Score       int       `json:"score"`
	Issues      []string  `json:"issues"`
	Corrections []string  `json:"corrections"`
	Reasoning   string    `json:"reasoning"`
	Raw         string    `json:"raw,omitempty"`
}

// Candidate is the post under review. PostID may be empty for ad-hoc text.
type Candidate struct {
	PostID          string
	Title           string
	Content         string
	Excerpt         string
	MetaDescription string
	Tags            []string
}

// Result is the outcome of one review.
type Result struct {
	Dimensions      []DimensionResult  `json:"dimensions"`
	Overall         int                `json:"overallScore"`
	Status          content.PostStatus `json:"status"`
	Issues          []string           `json:"issues"`
	Corrections     []string           `json:"corrections"`
	OriginalContent string             `json:"-"`
	EditedContent   string             `json:"editedContent"`
	Rewritten       bool               `json:"rewritten"`
	Reasoning       string             `json:"reasoning"`
	// Revision is the post revision after write-back, 0 when nothing was written.
	Revision int `json:"revision,omitempty"`
}

// ShouldAutoPublish reports whether the post cleared the policy.
func (r Result) ShouldAutoPublish() bool {
	return r.Status == content.StatusPublished
}

// MarshalJSON adds the derived scores and shouldAutoPublish keys.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Scores            map[Dimension]int `json:"scores"`
		ShouldAutoPublish bool              `json:"shouldAutoPublish"`
	}{plain(r), r.Scores(), r.ShouldAutoPublish()})
}

// Scores returns the scored dimensions keyed by name. Unparseable
// dimensions are absent.
func (r Result) Scores() map[Dimension]int {
	out := make(map[Dimension]int, len(r.Dimensions))
	for _, d := range r.Dimensions {
		if d.Outcome == Scored {
			out[d.Dimension] = d.Score
		}
	}
	return out
}

// Reviewer runs reviews against a gateway and records them in a store.
type Reviewer struct {
	gw          llm.Gateway
	store       content.Store
	policy      Policy
	sanitizer   *bluemonday.Policy
	logger      *zap.Logger
	autoRewrite bool
	voiceSource string

	scores    *prometheus.HistogramVec
	decisions *prometheus.CounterVec
}

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(r *Reviewer) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reviewer) { r.logger = l }
}

// WithAutoRewrite toggles the corrections rewrite for publishing posts.
func WithAutoRewrite(on bool) Option {
	return func(r *Reviewer) { r.autoRewrite = on }
}

// WithBrandVoiceSource selects which BrandVoiceProfile feeds the brand
// voice prompt.
func WithBrandVoiceSource(source string) Option {
	return func(r *Reviewer) { r.voiceSource = source }
}

// WithMetrics registers score and decision metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Reviewer) {
		r.scores = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadpress",
			Subsystem: "review",
			Name:      "dimension_score",
			Help:      "Scores returned per review dimension.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}, []string{"dimension"})
		r.decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadpress",
			Subsystem: "review",
			Name:      "decisions_total",
			Help:      "Review decisions by resulting status.",
		}, []string{"status"})
		reg.MustRegister(r.scores, r.decisions)
	}
}

// New returns a Reviewer using DefaultPolicy with auto-rewrite on.
func New(gw llm.Gateway, store content.Store, opts ...Option) *Reviewer {
	r := &Reviewer{
		gw:          gw,
		store:       store,
		policy:      DefaultPolicy,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      zap.NewNop(),
		autoRewrite: true,
		voiceSource: "substack",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the scoring policy in use.
func (r *Reviewer) Policy() Policy {
	return r.policy
}

// Score issues one gateway call per dimension concurrently. A gateway
// failure in any call aborts the rest and is returned; answers that do not
// parse come back as Unparseable results.
func (r *Reviewer) Score(ctx context.Context, c Candidate) ([]DimensionResult, error) {
	voice := r.brandVoice(ctx)
	results := make([]DimensionResult, len(Dimensions))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range Dimensions {
		g.Go(func() error {
			res, err := r.scoreDimension(gctx, d, c, voice)
			if err != nil {
				return fmt.Errorf("review %s: %w", d, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, res := range results {
		if r.scores != nil && res.Outcome == Scored {
			r.scores.WithLabelValues(string(res.Dimension)).Observe(float64(res.Score))
		}
	}
	return results, nil
}

type dimensionAnswer struct {
	Score       *int     `json:"score"`
	Issues      []string `json:"issues"`
	Corrections []string `json:"corrections"`
	Reasoning   string   `json:"reasoning"`
}

func (r *Reviewer) scoreDimension(ctx context.Context, d Dimension, c Candidate, voice *content.BrandVoiceProfile) (DimensionResult, error) {
	resp, err := r.gw.Complete(ctx, llm.Request{
		System:      systemPrompt(d, voice),
		Prompt:      userPrompt(c),
		Tool:        toolFor(d),
		Temperature: 0.2,
	})
	var perr *llm.ParseError
	if errors.As(err, &perr) {
		r.logger.Warn("malformed review answer",
			zap.String("dimension", string(d)),
			zap.String("post_id", c.PostID),
			zap.Error(err),
		)
		return DimensionResult{Dimension: d, Outcome: Unparseable, Raw: perr.Raw}, nil
	}
	if err != nil {
		return DimensionResult{}, err
	}
	var ans dimensionAnswer
	if err := resp.Decode(&ans); err != nil || ans.Score == nil || *ans.Score < 0 || *ans.Score > 100 {
		r.logger.Warn("unparseable review dimension",
			zap.String("dimension", string(d)),
			zap.String("post_id", c.PostID),
			zap.Error(err),
		)
		return DimensionResult{Dimension: d, Outcome: Unparseable, Raw: resp.Raw()}, nil
	}
	return DimensionResult{
		Dimension:   d,
		Outcome:     Scored,
		Score:       *ans.Score,
		Issues:      content.FilterEmpty(ans.Issues),
		Corrections: content.FilterEmpty(ans.Corrections),
		Reasoning:   strings.TrimSpace(ans.Reasoning),
	}, nil
}

func (r *Reviewer) brandVoice(ctx context.Context) *content.BrandVoiceProfile {
	if r.store == nil {
		return nil
	}
	p, err := r.store.GetBrandVoice(ctx, r.voiceSource)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) {
			r.logger.Warn("load brand voice", zap.String("source", r.voiceSource), zap.Error(err))
		}
		return nil
	}
	return &p
}

// Assemble applies the policy to scored dimensions without rewriting.
func (r *Reviewer) Assemble(c Candidate, dims []DimensionResult) Result {
	overall, status := r.policy.Decide(dims)
	res := Result{
		Dimensions:      dims,
		Overall:         overall,
		Status:          status,
		Issues:          []string{},
		Corrections:     []string{},
		OriginalContent: c.Content,
		EditedContent:   c.Content,
	}
	var reasoning []string
	for _, d := range dims {
		res.Issues = append(res.Issues, d.Issues...)
		res.Corrections = append(res.Corrections, d.Corrections...)
		switch d.Outcome {
		case Scored:
			reasoning = append(reasoning, fmt.Sprintf("%s (%d): %s", d.Dimension, d.Score, d.Reasoning))
		default:
			reasoning = append(reasoning, fmt.Sprintf("%s: unparseable response, manual review required", d.Dimension))
		}
	}
	res.Reasoning = strings.Join(reasoning, "\n")
	return res
}

// Review scores c, applies the policy and, for a publishing post with
// corrections, rewrites the content.
func (r *Reviewer) Review(ctx context.Context, c Candidate) (Result, error) {
	dims, err := r.Score(ctx, c)
	if err != nil {
		return Result{}, err
	}
	res := r.Assemble(c, dims)
	if r.autoRewrite && res.ShouldAutoPublish() && len(res.Corrections) > 0 {
		if err := r.applyRewrite(ctx, c, res.Corrections, &res); err != nil {
			return Result{}, err
		}
	}
	if r.decisions != nil {
		r.decisions.WithLabelValues(string(res.Status)).Inc()
	}
	return res, nil
}

func (r *Reviewer) applyRewrite(ctx context.Context, c Candidate, instructions []string, res *Result) error {
	edited, err := r.Rewrite(ctx, c, instructions)
	switch {
	case llm.IsParseError(err):
		r.logger.Warn("unparseable rewrite, keeping original", zap.String("post_id", c.PostID), zap.Error(err))
		res.Reasoning += "\nrewrite: unparseable response, original content kept"
		return nil
	case err != nil:
		return err
	}
	res.EditedContent = edited
	res.Rewritten = true
	return nil
}

// Rewrite asks the gateway to apply instructions to c and returns sanitized
// HTML.
func (r *Reviewer) Rewrite(ctx context.Context, c Candidate, instructions []string) (string, error) {
	resp, err := r.gw.Complete(ctx, rewritePrompt(c, instructions))
	if err != nil {
		return "", fmt.Errorf("review rewrite: %w", err)
	}
	var ans struct {
		Content string `json:"content"`
	}
	if err := resp.Decode(&ans); err != nil {
		return "", err
	}
	out := strings.TrimSpace(r.sanitizer.Sanitize(ans.Content))
	if out == "" {
		return "", &llm.ParseError{Raw: resp.Raw(), Err: errors.New("empty rewrite")}
	}
	return out, nil
}

// Record appends the EditorReview row for a finished or failed run. A
// non-nil runErr is recorded with score 0.
func (r *Reviewer) Record(ctx context.Context, c Candidate, reviewType string, res Result, runErr error) error {
	rec := content.EditorReview{
		BlogPostID:      c.PostID,
		ReviewType:      reviewType,
		OriginalContent: c.Content,
		EditedContent:   res.EditedContent,
		IssuesFound:     res.Issues,
		CorrectionsMade: res.Corrections,
		Score:           res.Overall,
		AIReasoning:     res.Reasoning,
	}
	if runErr != nil {
		rec.EditedContent = c.Content
		rec.Score = 0
		rec.AIReasoning = "review failed: " + runErr.Error()
	}
	if _, err := r.store.CreateEditorReview(ctx, rec); err != nil {
		return fmt.Errorf("record editor review: %w", err)
	}
	return nil
}

// ReviewPost runs a comprehensive review, records it and, when c.PostID
// names a stored post, writes the decision back guarded by the revision
// read before scoring. A concurrent write yields content.ErrConflict.
func (r *Reviewer) ReviewPost(ctx context.Context, c Candidate) (Result, error) {
	var (
		post    content.BlogPost
		hasPost bool
	)
	if c.PostID != "" {
		p, err := r.store.GetPostByID(ctx, c.PostID)
		switch {
		case err == nil:
			post, hasPost = p, true
		case !errors.Is(err, content.ErrNotFound):
			return Result{}, fmt.Errorf("load post: %w", err)
		}
	}

	res, err := r.Review(ctx, c)
	if recErr := r.Record(ctx, c, content.ReviewComprehensive, res, err); recErr != nil {
		r.logger.Error("record review", zap.String("post_id", c.PostID), zap.Error(recErr))
	}
	if err != nil {
		return Result{}, err
	}
	if !hasPost {
		return res, nil
	}
	rev, err := r.store.UpdatePostReview(ctx, post.ID, post.Revision, res.EditedContent, res.Status)
	if err != nil {
		return res, fmt.Errorf("update post %s: %w", post.ID, err)
	}
	res.Revision = rev
	return res, nil
}
