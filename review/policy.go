package review

import "github.com/eringen/leadpress/content"

// Dimension is one axis a post is scored on.
type Dimension string

const (
	FactCheck  Dimension = "fact_check"
	SEO        Dimension = "seo_aeo"
	BrandVoice Dimension = "brand_voice"
	Engagement Dimension = "engagement"
)

// Dimensions lists every dimension in reporting order.
var Dimensions = []Dimension{FactCheck, SEO, BrandVoice, Engagement}

// Policy holds the weights and publish threshold shared by single-post and
// batch reviews. Weights are integer percentages.
type Policy struct {
	Weights   map[Dimension]int
	Threshold int
}

// DefaultPolicy is the canonical scoring policy.
var DefaultPolicy = Policy{
	Weights: map[Dimension]int{
		FactCheck:  30,
		SEO:        25,
		BrandVoice: 25,
		Engagement: 20,
	},
	Threshold: 80,
}

// Overall returns the weighted mean of the scored dimensions, rounded half
// up. Unparseable dimensions are left out of both sums. ok is false when
// nothing was scored.
func (p Policy) Overall(results []DimensionResult) (overall int, ok bool) {
	num, den := 0, 0
	for _, r := range results {
		if r.Outcome != Scored {
			continue
		}
		w := p.Weights[r.Dimension]
		num += w * clampScore(r.Score)
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return (2*num + den) / (2 * den), true
}

// Decide maps dimension results to a post status. Any unparseable
// dimension sends the post to manual review.
func (p Policy) Decide(results []DimensionResult) (int, content.PostStatus) {
	overall, ok := p.Overall(results)
	if !ok {
		return overall, content.StatusReview
	}
	for _, r := range results {
		if r.Outcome != Scored {
			return overall, content.StatusReview
		}
	}
	if overall >= p.Threshold {
		return overall, content.StatusPublished
	}
	return overall, content.StatusReview
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
