package review

import (
	"fmt"
	"strings"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/llm"
)

var systemPrompts = map[Dimension]string{
	FactCheck: `You are a meticulous fact-checker for an AI consulting firm's blog.
Flag claims that are unverifiable, outdated or wrong, statistics without context,
and overstated promises about AI capabilities. Score 100 when every claim is sound.`,
	SEO: `You are an SEO and answer-engine optimisation auditor.
Check heading hierarchy, keyword use in title and first paragraph, meta description
quality, scannable structure and whether the post directly answers the question a
searcher or AI assistant would ask. Score 100 for a fully optimised post.`,
	BrandVoice: `You are the brand editor. The house voice is confident, practical and
plain-spoken: concrete outcomes over hype, no buzzword chains, no fear-mongering.
Score 100 when the post reads exactly like the brand.`,
	Engagement: `You predict reader engagement for B2B decision makers.
Judge the hook, pacing, concrete examples, and whether the ending gives the reader a
clear next step. Score 100 for a post readers will finish and share.`,
}

func toolFor(d Dimension) *llm.Tool {
	return &llm.Tool{
		Name:        ToolName(d),
		Description: fmt.Sprintf("Submit the %s review of the post.", strings.ReplaceAll(string(d), "_", " ")),
		Parameters: llm.ObjectSchema(map[string]any{
			"score":       llm.Integer("Quality score for this dimension", 0, 100),
			"issues":      llm.StringArray("Problems found, one per entry"),
			"corrections": llm.StringArray("Concrete edits that fix the issues"),
			"reasoning":   llm.String("Short justification of the score"),
		}),
	}
}

// ToolName is the forced tool name used when scoring d.
func ToolName(d Dimension) string {
	return "score_" + string(d)
}

// RewriteToolName is the forced tool name of the rewrite call.
const RewriteToolName = "rewrite_post"

func systemPrompt(d Dimension, voice *content.BrandVoiceProfile) string {
	p := systemPrompts[d]
	if d != BrandVoice || voice == nil {
		return p
	}
	var b strings.Builder
	b.WriteString(p)
	b.WriteString("\n\nBrand voice profile:\n")
	writeList(&b, "Tone", voice.ToneDescriptors)
	writeList(&b, "Key phrases", voice.KeyPhrases)
	writeList(&b, "Forbidden terms", voice.ForbiddenTerms)
	writeList(&b, "Topics covered", voice.TopicsCovered)
	if voice.WritingStyleNotes != "" {
		fmt.Fprintf(&b, "Style notes: %s\n", voice.WritingStyleNotes)
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, vals []string) {
	if len(vals) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(vals, ", "))
}

func userPrompt(c Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	if c.Excerpt != "" {
		fmt.Fprintf(&b, "Excerpt: %s\n", c.Excerpt)
	}
	if c.MetaDescription != "" {
		fmt.Fprintf(&b, "Meta description: %s\n", c.MetaDescription)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(c.Tags, ", "))
	}
	b.WriteString("\nContent (HTML):\n")
	b.WriteString(c.Content)
	return b.String()
}

func rewritePrompt(c Candidate, instructions []string) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\nApply these corrections to the post:\n", c.Title)
	for i, in := range instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, in)
	}
	b.WriteString("\nReturn the full corrected HTML. Keep every section that needs no change.\n\nContent (HTML):\n")
	b.WriteString(c.Content)
	return llm.Request{
		System: "You are a senior editor. Apply the requested corrections and nothing else.",
		Prompt: b.String(),
		Tool: &llm.Tool{
			Name:        RewriteToolName,
			Description: "Submit the corrected post.",
			Parameters: llm.ObjectSchema(map[string]any{
				"content": llm.String("The corrected post as HTML"),
			}),
		},
	}
}
