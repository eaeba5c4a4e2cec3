package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
	"github.com/eringen/leadpress/llm/llmtest"
	"github.com/eringen/leadpress/store"
)

type answer struct {
	Score       int      `json:"score"`
	Issues      []string `json:"issues"`
	Corrections []string `json:"corrections"`
	Reasoning   string   `json:"reasoning"`
}

func scriptedGateway(scores map[Dimension]int, corrections ...string) *llmtest.Fake {
	f := llmtest.New()
	for _, d := range Dimensions {
		f.OnJSON(ToolName(d), answer{
			Score:       scores[d],
			Issues:      []string{string(d) + " issue"},
			Corrections: corrections,
			Reasoning:   "looks fine",
		})
	}
	f.OnJSON(RewriteToolName, map[string]string{
		"content": `<h2>Fixed</h2><p>Rewritten body.</p><script>alert(1)</script>`,
	})
	return f
}

var passing = map[Dimension]int{FactCheck: 90, SEO: 85, BrandVoice: 80, Engagement: 75}

func TestReviewPublishesAndRewrites(t *testing.T) {
	gw := scriptedGateway(passing, "tighten intro")
	r := New(gw, store.NewMemory())

	res, err := r.Review(context.Background(), Candidate{Title: "AI Readiness", Content: "<p>Original.</p>"})
	require.NoError(t, err)

	assert.Equal(t, 83, res.Overall)
	assert.Equal(t, content.StatusPublished, res.Status)
	assert.True(t, res.ShouldAutoPublish())
	assert.True(t, res.Rewritten)
	assert.Contains(t, res.EditedContent, "Rewritten body.")
	assert.NotContains(t, res.EditedContent, "<script>", "rewrite output must be sanitized")
	assert.Len(t, res.Issues, 4)
	assert.Len(t, res.Corrections, 4)
	assert.Equal(t, 1, gw.CallsFor(RewriteToolName))
	for _, d := range Dimensions {
		assert.Equal(t, 1, gw.CallsFor(ToolName(d)), "one call for %s", d)
	}
}

func TestReviewBelowThresholdDoesNotRewrite(t *testing.T) {
	low := map[Dimension]int{FactCheck: 60, SEO: 70, BrandVoice: 70, Engagement: 70}
	gw := scriptedGateway(low, "rewrite everything")
	r := New(gw, store.NewMemory())

	res, err := r.Review(context.Background(), Candidate{Title: "t", Content: "<p>c</p>"})
	require.NoError(t, err)
	assert.Equal(t, content.StatusReview, res.Status)
	assert.False(t, res.Rewritten)
	assert.Equal(t, "<p>c</p>", res.EditedContent)
	assert.Zero(t, gw.CallsFor(RewriteToolName))
}

func TestReviewUnparseableDimensionForcesManualReview(t *testing.T) {
	gw := scriptedGateway(map[Dimension]int{FactCheck: 100, SEO: 100, BrandVoice: 100, Engagement: 100}, "x")
	gw.OnText(ToolName(SEO), "I'd rate this highly!")
	r := New(gw, store.NewMemory())

	res, err := r.Review(context.Background(), Candidate{Title: "t", Content: "<p>c</p>"})
	require.NoError(t, err)
	assert.Equal(t, content.StatusReview, res.Status)
	assert.Equal(t, 100, res.Overall)
	assert.False(t, res.Rewritten)

	var seo DimensionResult
	for _, d := range res.Dimensions {
		if d.Dimension == SEO {
			seo = d
		}
	}
	assert.Equal(t, Unparseable, seo.Outcome)
	assert.Equal(t, "I'd rate this highly!", seo.Raw)
	_, ok := res.Scores()[SEO]
	assert.False(t, ok)
}

func TestReviewOutOfRangeScoreIsUnparseable(t *testing.T) {
	gw := scriptedGateway(passing)
	gw.OnJSON(ToolName(Engagement), answer{Score: 250})
	r := New(gw, store.NewMemory())

	res, err := r.Review(context.Background(), Candidate{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, content.StatusReview, res.Status)
}

func TestReviewEmptyCompletionIsUnparseable(t *testing.T) {
	gw := scriptedGateway(passing)
	gw.OnError(ToolName(BrandVoice), &llm.ParseError{Err: errors.New("no choices in response")})
	r := New(gw, store.NewMemory())

	res, err := r.Review(context.Background(), Candidate{Title: "t", Content: "<p>c</p>"})
	require.NoError(t, err)
	assert.Equal(t, content.StatusReview, res.Status)
	_, ok := res.Scores()[BrandVoice]
	assert.False(t, ok)
	assert.Len(t, res.Scores(), 3)
}

func TestResultJSONCarriesScores(t *testing.T) {
	r := New(scriptedGateway(passing), store.NewMemory())
	res, err := r.Review(context.Background(), Candidate{Title: "t", Content: "<p>c</p>"})
	require.NoError(t, err)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var out struct {
		Scores            map[string]int `json:"scores"`
		ShouldAutoPublish bool           `json:"shouldAutoPublish"`
		Overall           int            `json:"overallScore"`
		EditedContent     string         `json:"editedContent"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, map[string]int{"fact_check": 90, "seo_aeo": 85, "brand_voice": 80, "engagement": 75}, out.Scores)
	assert.True(t, out.ShouldAutoPublish)
	assert.Equal(t, 83, out.Overall)
	assert.NotEmpty(t, out.EditedContent)
}

func TestReviewGatewayErrorIsFatal(t *testing.T) {
	gw := scriptedGateway(passing)
	gw.OnError(ToolName(FactCheck), &llm.GatewayError{Op: "complete", StatusCode: 502, Err: errors.New("bad gateway")})
	r := New(gw, store.NewMemory())

	_, err := r.Review(context.Background(), Candidate{Title: "t", Content: "c"})
	require.Error(t, err)
	assert.Equal(t, 502, llm.StatusCode(err))
}

func TestReviewUnparseableRewriteKeepsOriginal(t *testing.T) {
	gw := scriptedGateway(passing, "fix")
	gw.OnText(RewriteToolName, "sorry")
	r := New(gw, store.NewMemory())

	res, err := r.Review(context.Background(), Candidate{Title: "t", Content: "<p>orig</p>"})
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, res.Status)
	assert.False(t, res.Rewritten)
	assert.Equal(t, "<p>orig</p>", res.EditedContent)
	assert.Contains(t, res.Reasoning, "rewrite")
}

func TestReviewAutoRewriteOff(t *testing.T) {
	gw := scriptedGateway(passing, "fix")
	r := New(gw, store.NewMemory(), WithAutoRewrite(false))

	res, err := r.Review(context.Background(), Candidate{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.True(t, res.ShouldAutoPublish())
	assert.False(t, res.Rewritten)
	assert.Zero(t, gw.CallsFor(RewriteToolName))
}

func TestBrandVoicePromptUsesProfile(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.UpsertBrandVoice(context.Background(), content.BrandVoiceProfile{
		Source:          "substack",
		ToneDescriptors: []string{"wry"},
		ForbiddenTerms:  []string{"synergy"},
	}))
	gw := scriptedGateway(passing)
	r := New(gw, st)

	_, err := r.Review(context.Background(), Candidate{Title: "t", Content: "c"})
	require.NoError(t, err)
	for _, c := range gw.Calls() {
		if c.Tool == nil {
			continue
		}
		switch c.Tool.Name {
		case ToolName(BrandVoice):
			assert.Contains(t, c.System, "wry")
			assert.Contains(t, c.System, "synergy")
		case ToolName(FactCheck):
			assert.NotContains(t, c.System, "synergy")
		}
	}
}

func TestReviewPostRecordsAndWritesBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	post, err := st.CreatePost(ctx, content.BlogPost{Title: "AI Readiness", Content: "<p>Original.</p>", Status: content.StatusReview})
	require.NoError(t, err)

	r := New(scriptedGateway(passing, "fix"), st)
	res, err := r.ReviewPost(ctx, Candidate{PostID: post.ID, Title: post.Title, Content: post.Content})
	require.NoError(t, err)
	assert.Equal(t, post.Revision+1, res.Revision)

	got, err := st.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, got.Status)
	assert.Equal(t, res.EditedContent, got.Content)

	reviews := st.EditorReviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, content.ReviewComprehensive, reviews[0].ReviewType)
	assert.Equal(t, 83, reviews[0].Score)
	assert.Equal(t, "<p>Original.</p>", reviews[0].OriginalContent)
}

func TestReviewPostRecordsFailures(t *testing.T) {
	st := store.NewMemory()
	gw := scriptedGateway(passing)
	gw.OnError(ToolName(Engagement), &llm.GatewayError{Op: "complete", StatusCode: 429, Err: errors.New("slow down")})
	r := New(gw, st)

	_, err := r.ReviewPost(context.Background(), Candidate{PostID: "unknown", Title: "t", Content: "c"})
	require.Error(t, err)

	reviews := st.EditorReviews()
	require.Len(t, reviews, 1)
	assert.Zero(t, reviews[0].Score)
	assert.True(t, strings.HasPrefix(reviews[0].AIReasoning, "review failed"))
}

type racingStore struct {
	*store.Memory
}

// UpdatePostReview simulates a concurrent editor bumping the revision.
func (s racingStore) UpdatePostReview(ctx context.Context, id string, revision int, body string, status content.PostStatus) (int, error) {
	if _, err := s.Memory.UpdatePostReview(ctx, id, revision, "<p>other editor</p>", content.StatusReview); err != nil {
		return 0, err
	}
	return s.Memory.UpdatePostReview(ctx, id, revision, body, status)
}

func TestReviewPostDetectsConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	post, err := mem.CreatePost(ctx, content.BlogPost{Title: "t", Content: "c", Status: content.StatusReview})
	require.NoError(t, err)

	r := New(scriptedGateway(passing), racingStore{mem})
	_, err = r.ReviewPost(ctx, Candidate{PostID: post.ID, Title: "t", Content: "c"})
	assert.ErrorIs(t, err, content.ErrConflict)

	got, err := mem.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>other editor</p>", got.Content, "the first writer wins")
}

func TestScoreRunsDimensionsConcurrently(t *testing.T) {
	started := make(chan struct{}, len(Dimensions))
	release := make(chan struct{})
	gw := llmtest.New()
	for _, d := range Dimensions {
		gw.On(ToolName(d), func(llm.Request) (llm.Response, error) {
			started <- struct{}{}
			<-release
			return llm.Response{ToolArguments: fmt.Sprintf(`{"score": 80, "issues": [], "corrections": [], "reasoning": "%s"}`, d)}, nil
		})
	}
	r := New(gw, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Score(context.Background(), Candidate{Title: "t", Content: "c"})
		done <- err
	}()
	for range Dimensions {
		<-started
	}
	close(release)
	require.NoError(t, <-done)
}
