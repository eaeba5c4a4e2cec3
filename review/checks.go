package review

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/eringen/leadpress/content"
)

// Structural thresholds for batch reviews.
const (
	MinWords    = 600
	MinSections = 2
	// MinAlignment is the share of title keywords the body must mention.
	MinAlignment = 0.5
)

// Checks is the structural verdict on a post body.
type Checks struct {
	Words     int      `json:"words"`
	Sections  int      `json:"sections"`
	Complete  bool     `json:"complete"`
	Aligned   bool     `json:"aligned"`
	Problems  []string `json:"problems,omitempty"`
	Alignment float64  `json:"alignment"`
}

// OK reports whether both checks passed.
func (c Checks) OK() bool {
	return c.Complete && c.Aligned
}

// Inspect checks that body is complete (long enough, sectioned, not cut
// off mid-sentence) and aligned with title.
func Inspect(title, body string) Checks {
	var ch Checks
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		ch.Problems = append(ch.Problems, "content is not parseable HTML")
		return ch
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	ch.Words = len(strings.Fields(text))
	ch.Sections = doc.Find("h2").Length()

	ch.Complete = true
	if ch.Words < MinWords {
		ch.Complete = false
		ch.Problems = append(ch.Problems, fmt.Sprintf("content has %d words, expand it to at least %d", ch.Words, MinWords))
	}
	if ch.Sections < MinSections {
		ch.Complete = false
		ch.Problems = append(ch.Problems, fmt.Sprintf("content has %d <h2> sections, add at least %d", ch.Sections, MinSections))
	}
	if !endsSentence(text) {
		ch.Complete = false
		ch.Problems = append(ch.Problems, "content ends mid-sentence, finish the conclusion")
	}

	keywords := content.Keywords(title)
	if len(keywords) == 0 {
		ch.Aligned = true
		ch.Alignment = 1
		return ch
	}
	lower := strings.ToLower(text)
	var missing []string
	for _, k := range keywords {
		if !strings.Contains(lower, k) {
			missing = append(missing, k)
		}
	}
	ch.Alignment = float64(len(keywords)-len(missing)) / float64(len(keywords))
	ch.Aligned = ch.Alignment >= MinAlignment
	if !ch.Aligned {
		ch.Problems = append(ch.Problems, fmt.Sprintf("content does not cover the title, work in: %s", strings.Join(missing, ", ")))
	}
	return ch
}

func endsSentence(text string) bool {
	text = strings.TrimRight(text, " \"'”’)")
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
