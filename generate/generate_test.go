package generate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/llm/llmtest"
	"github.com/eringen/leadpress/media"
	"github.com/eringen/leadpress/review"
	"github.com/eringen/leadpress/store"
)

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 16))))
	return buf.Bytes()
}

func postAnswer(title string) map[string]any {
	return map[string]any{
		"title":            title,
		"excerpt":          "A short summary.",
		"content":          "<h2>One</h2><p>Body.</p><script>x()</script>",
		"tags":             []string{"ai", "ops", " "},
		"meta_description": "Meta.",
		"meta_keywords":    []string{"ai"},
		"read_time":        "",
	}
}

func reviewScores(gw *llmtest.Fake, score int) {
	for _, d := range review.Dimensions {
		gw.OnJSON(review.ToolName(d), map[string]any{
			"score": score, "issues": []string{}, "corrections": []string{}, "reasoning": "ok",
		})
	}
}

func newGenerator(t *testing.T, gw *llmtest.Fake, st content.Store, opts ...Option) *Generator {
	t.Helper()
	base := []Option{
		WithUploader(media.NewLocalStore(t.TempDir(), "https://cdn.example/media")),
		WithReviewer(review.New(gw, st)),
		WithBatchDelay(0),
	}
	g := New(gw, st, append(base, opts...)...)
	g.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return g
}

func TestGeneratePublishesReviewedPost(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	gw := llmtest.New().OnJSON(ToolName, postAnswer("Measuring AI ROI"))
	gw.Image = pngImage(t)
	reviewScores(gw, 90)

	res, err := newGenerator(t, gw, st).Generate(ctx, Request{Topic: "Measuring ROI", Category: "AI Strategy"})
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.False(t, res.ImageFallback)
	assert.Equal(t, content.StatusPublished, res.Post.Status)
	assert.Equal(t, "measuring-ai-roi", res.Post.Slug)
	assert.Equal(t, "https://cdn.example/media/measuring-ai-roi.jpg", res.Post.Image)
	assert.Equal(t, "2026-05-04", res.Post.Date)
	assert.Equal(t, []string{"ai", "ops"}, res.Post.Tags)
	assert.Equal(t, "1 min read", res.Post.ReadTime)
	assert.Equal(t, "text-blue-600", res.Post.Color)
	assert.NotContains(t, res.Post.Content, "<script>")
	require.NotNil(t, res.Review)
	assert.Equal(t, 90, res.Review.Overall)

	stored, err := st.GetPostByID(ctx, res.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, stored.Status)
	assert.Len(t, st.EditorReviews(), 1)
}

func TestGenerateLowScoreGoesToReview(t *testing.T) {
	st := store.NewMemory()
	gw := llmtest.New().OnJSON(ToolName, postAnswer("Weak Post"))
	gw.Image = pngImage(t)
	reviewScores(gw, 50)

	res, err := newGenerator(t, gw, st).Generate(context.Background(), Request{Topic: "x"})
	require.NoError(t, err)
	assert.Equal(t, content.StatusReview, res.Post.Status)
	assert.Equal(t, DefaultCategory, res.Post.Category)
}

func TestGenerateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	gw := llmtest.New().OnJSON(ToolName, postAnswer("Same Topic"))
	gw.Image = pngImage(t)
	reviewScores(gw, 90)
	g := newGenerator(t, gw, st)

	first, err := g.Generate(ctx, Request{Topic: "Guardrails for chatbots", Category: "Generative AI"})
	require.NoError(t, err)
	second, err := g.Generate(ctx, Request{Topic: "  guardrails FOR chatbots ", Category: "generative ai"})
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Post.ID, second.Post.ID)
	assert.Equal(t, 1, gw.CallsFor(ToolName), "duplicate must not call the gateway")
	posts, err := st.ListPosts(ctx, content.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestGenerateCallerKeyOverridesDerivedKey(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	gw := llmtest.New().OnJSON(ToolName, postAnswer("Keyed"))
	reviewScores(gw, 90)
	g := newGenerator(t, gw, st)

	_, err := g.Generate(ctx, Request{Topic: "a", IdempotencyKey: "job-42"})
	require.NoError(t, err)
	res, err := g.Generate(ctx, Request{Topic: "completely different", IdempotencyKey: "job-42"})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestGenerateImageFailureFallsBackToStock(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*llmtest.Fake)
	}{
		{"gateway error", func(f *llmtest.Fake) { f.ImageErr = &llm.GatewayError{Op: "image", StatusCode: 500, Err: errors.New("boom")} }},
		{"undecodable image", func(f *llmtest.Fake) { f.Image = []byte("not an image") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New().OnJSON(ToolName, postAnswer("Automation Post"))
			reviewScores(gw, 90)
			tt.setup(gw)

			res, err := newGenerator(t, gw, store.NewMemory()).Generate(context.Background(), Request{Topic: "t", Category: "Automation"})
			require.NoError(t, err)
			assert.True(t, res.ImageFallback)
			assert.Equal(t, StockImage("Automation"), res.Post.Image)
		})
	}
}

func TestGenerateTextFailureIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*llmtest.Fake)
		check func(*testing.T, error)
	}{
		{
			"gateway 402",
			func(f *llmtest.Fake) {
				f.OnError(ToolName, &llm.GatewayError{Op: "complete", StatusCode: 402, Err: errors.New("credits")})
			},
			func(t *testing.T, err error) { assert.Equal(t, 402, llm.StatusCode(err)) },
		},
		{
			"missing content",
			func(f *llmtest.Fake) { f.OnJSON(ToolName, map[string]string{"title": "Only a title"}) },
			func(t *testing.T, err error) { assert.True(t, llm.IsParseError(err)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := llmtest.New()
			tt.setup(gw)
			st := store.NewMemory()
			_, err := newGenerator(t, gw, st).Generate(context.Background(), Request{Topic: "t"})
			require.Error(t, err)
			tt.check(t, err)
			posts, _ := st.ListPosts(context.Background(), content.PostFilter{})
			assert.Empty(t, posts)
		})
	}
}

func TestGenerateReviewFailureLeavesPostInReview(t *testing.T) {
	gw := llmtest.New().OnJSON(ToolName, postAnswer("Unreviewed"))
	gw.Image = pngImage(t)
	// No review responders: every dimension call fails.
	res, err := newGenerator(t, gw, store.NewMemory()).Generate(context.Background(), Request{Topic: "t"})
	require.NoError(t, err)
	assert.Equal(t, content.StatusReview, res.Post.Status)
	assert.Nil(t, res.Review)
}

func TestNextTopicRoundRobin(t *testing.T) {
	topics := []Topic{{"a", "A"}, {"b", "B"}, {"c", "C"}}
	g := New(llmtest.New(), store.NewMemory(), WithTopics(topics))
	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, g.NextTopic().Title)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, got)
}

func TestIdempotencyKeyNormalizes(t *testing.T) {
	a := IdempotencyKey("AI  Readiness", "Strategy")
	b := IdempotencyKey(" ai readiness ", "strategy")
	c := IdempotencyKey("AI Readiness", "Automation")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestBatchGenerateReportsEveryTopic(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	gw := llmtest.New()
	gw.Image = pngImage(t)
	reviewScores(gw, 90)
	n := 0
	gw.On(ToolName, func(req llm.Request) (llm.Response, error) {
		n++
		if strings.Contains(req.Prompt, "Topic: broken") {
			return llm.Response{}, &llm.GatewayError{Op: "complete", StatusCode: 500, Err: errors.New("boom")}
		}
		return llm.Response{ToolArguments: `{"title": "Post ` + string(rune('A'+n)) + `", "content": "<p>x.</p>"}`}, nil
	})
	g := newGenerator(t, gw, st)

	_, err := g.Generate(ctx, Request{Topic: "done already", Category: "Automation"})
	require.NoError(t, err)

	topics := []Topic{{"fresh", "AI Strategy"}, {"broken", "AI Strategy"}, {"done already", "Automation"}}
	report, err := g.BatchGenerate(ctx, topics)
	require.NoError(t, err)

	require.Len(t, report.Results, len(topics))
	assert.Equal(t, ItemSuccess, report.Results[0].Status)
	assert.Equal(t, ItemFailed, report.Results[1].Status)
	assert.Equal(t, "generation failed", report.Results[1].Error)
	assert.Equal(t, ItemSkipped, report.Results[2].Status)
	assert.Equal(t, BatchSummary{Total: 3, Success: 1, Failed: 1, Skipped: 1}, report.Summary)
}
