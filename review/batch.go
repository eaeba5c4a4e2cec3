package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eringen/leadpress/content"
)

// ItemStatus tags one batch entry.
type ItemStatus string

const (
	ItemPublished ItemStatus = "published"
	ItemReview    ItemStatus = "review"
	ItemRewritten ItemStatus = "rewritten"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped"
)

// BatchItem is the outcome for one post.
type BatchItem struct {
	PostID   string             `json:"postId"`
	Title    string             `json:"title"`
	Status   ItemStatus         `json:"status"`
	Score    int                `json:"score"`
	Decision content.PostStatus `json:"decision,omitempty"`
	Checks   *Checks            `json:"checks,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// BatchSummary counts items per status.
type BatchSummary struct {
	Total     int  `json:"total"`
	Published int  `json:"published"`
	Review    int  `json:"review"`
	Rewritten int  `json:"rewritten"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	DryRun    bool `json:"dryRun"`
}

func (s *BatchSummary) add(st ItemStatus) {
	switch st {
	case ItemPublished:
		s.Published++
	case ItemReview:
		s.Review++
	case ItemRewritten:
		s.Rewritten++
	case ItemFailed:
		s.Failed++
	case ItemSkipped:
		s.Skipped++
	}
}

// BatchReport holds one entry per input post, in input order.
type BatchReport struct {
	Summary BatchSummary `json:"summary"`
	Results []BatchItem  `json:"results"`
}

// BatchOptions narrows a batch run.
type BatchOptions struct {
	// DryRun scores without rewriting or writing anything.
	DryRun bool
	// Status limits the run to posts with this status; empty means all.
	Status content.PostStatus
	Limit  int
}

// BatchRunner reviews stored posts one at a time, paced to stay under the
// gateway rate limit.
type BatchRunner struct {
	reviewer *Reviewer
	store    content.Store
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewBatchRunner paces reviews at one per every.
func NewBatchRunner(r *Reviewer, store content.Store, every time.Duration, logger *zap.Logger) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if every > 0 {
		lim = rate.NewLimiter(rate.Every(every), 1)
	}
	return &BatchRunner{reviewer: r, store: store, limiter: lim, logger: logger}
}

// Run reviews every matching post. Individual failures are recorded and
// never stop the run. When ctx is cancelled the remaining posts are
// reported as skipped and ctx's error is returned with the report. Any
// other error means nothing was reviewed.
func (b *BatchRunner) Run(ctx context.Context, opts BatchOptions) (BatchReport, error) {
	posts, err := b.store.ListPosts(ctx, content.PostFilter{Status: opts.Status, Limit: opts.Limit})
	if err != nil {
		return BatchReport{}, fmt.Errorf("list posts: %w", err)
	}
	report := BatchReport{
		Summary: BatchSummary{Total: len(posts), DryRun: opts.DryRun},
		Results: make([]BatchItem, 0, len(posts)),
	}
	var runErr error
	for _, p := range posts {
		var item BatchItem
		switch {
		case runErr != nil:
			item = BatchItem{PostID: p.ID, Title: p.Title, Status: ItemSkipped, Error: "batch cancelled"}
		default:
			if err := b.limiter.Wait(ctx); err != nil {
				runErr = err
				item = BatchItem{PostID: p.ID, Title: p.Title, Status: ItemSkipped, Error: "batch cancelled"}
				break
			}
			item = b.reviewOne(ctx, p, opts.DryRun)
		}
		report.Summary.add(item.Status)
		report.Results = append(report.Results, item)
	}
	b.logger.Info("batch review finished",
		zap.Int("total", report.Summary.Total),
		zap.Int("published", report.Summary.Published),
		zap.Int("rewritten", report.Summary.Rewritten),
		zap.Int("failed", report.Summary.Failed),
		zap.Bool("dry_run", opts.DryRun),
	)
	return report, runErr
}

func (b *BatchRunner) reviewOne(ctx context.Context, p content.BlogPost, dryRun bool) BatchItem {
	item := BatchItem{PostID: p.ID, Title: p.Title}
	if p.Status == content.StatusDraft || p.Content == "" {
		item.Status = ItemSkipped
		return item
	}
	c := Candidate{
		PostID:          p.ID,
		Title:           p.Title,
		Content:         p.Content,
		Excerpt:         p.Excerpt,
		MetaDescription: p.MetaDescription,
		Tags:            p.Tags,
	}
	checks := Inspect(p.Title, p.Content)
	item.Checks = &checks

	dims, err := b.reviewer.Score(ctx, c)
	if err != nil {
		return b.fail(ctx, c, item, err, dryRun)
	}
	res := b.reviewer.Assemble(c, dims)
	item.Score = res.Overall
	item.Decision = res.Status

	if !dryRun {
		var instructions []string
		if res.ShouldAutoPublish() {
			instructions = append(instructions, res.Corrections...)
		}
		if !checks.OK() {
			instructions = append(instructions, checks.Problems...)
		}
		if len(instructions) > 0 {
			if err := b.reviewer.applyRewrite(ctx, c, instructions, &res); err != nil {
				return b.fail(ctx, c, item, err, dryRun)
			}
		}
		if err := b.reviewer.Record(ctx, c, content.ReviewBatch, res, nil); err != nil {
			b.logger.Error("record batch review", zap.String("post_id", p.ID), zap.Error(err))
		}
		if _, err := b.store.UpdatePostReview(ctx, p.ID, p.Revision, res.EditedContent, res.Status); err != nil {
			item.Status = ItemFailed
			b.logger.Error("update reviewed post", zap.String("post_id", p.ID), zap.Error(err))
			item.Error = "update failed"
			if errors.Is(err, content.ErrConflict) {
				item.Error = "post changed during review"
			}
			return item
		}
	}

	switch {
	case res.Rewritten:
		item.Status = ItemRewritten
	case res.ShouldAutoPublish():
		item.Status = ItemPublished
	default:
		item.Status = ItemReview
	}
	return item
}

func (b *BatchRunner) fail(ctx context.Context, c Candidate, item BatchItem, err error, dryRun bool) BatchItem {
	b.logger.Warn("batch review item failed", zap.String("post_id", c.PostID), zap.Error(err))
	if !dryRun {
		if recErr := b.reviewer.Record(ctx, c, content.ReviewBatch, Result{}, err); recErr != nil {
			b.logger.Error("record batch review", zap.String("post_id", c.PostID), zap.Error(recErr))
		}
	}
	item.Status = ItemFailed
	item.Error = "review failed"
	return item
}
