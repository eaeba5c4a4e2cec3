// Package ssr renders self-contained HTML snapshots of blog posts and case
// studies for crawlers and link unfurlers. Pages are built as html.Node
// trees; post bodies are sanitized and structured data is JSON-escaped.
package ssr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/eringen/leadpress/analytics"
	"github.com/eringen/leadpress/content"
)

// Site holds site-wide settings used in every document.
type Site struct {
	Name        string
	URL         string // SPA origin used for canonical links
	Description string
	Author      string
	Image       string // default og:image
}

// RedirectPolicy decides how interactive visitors reach the SPA.
type RedirectPolicy string

const (
	// RedirectScript embeds a script that sends non-bot browsers to the SPA.
	RedirectScript RedirectPolicy = "script"
	// RedirectNone serves the snapshot to everyone.
	RedirectNone RedirectPolicy = "none"
)

// ParseRedirectPolicy maps a config value to a policy, defaulting to
// RedirectScript.
func ParseRedirectPolicy(s string) (RedirectPolicy, error) {
	switch RedirectPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RedirectScript:
		return RedirectScript, nil
	case RedirectNone:
		return RedirectNone, nil
	}
	return "", fmt.Errorf("unknown SSR redirect policy %q", s)
}

// RedirectDelayMillis is how long the script waits before redirecting.
const RedirectDelayMillis = 100

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title         string
	Description   string
	Keywords      []string
	URL           string // canonical + og:url
	OGType        string // "article" or "website"
	Image         string
	Author        string
	PublishedTime string
	Section       string
}

// Renderer builds documents for one site.
type Renderer struct {
	site      Site
	policy    RedirectPolicy
	sanitizer *bluemonday.Policy
}

// NewRenderer returns a Renderer for site.
func NewRenderer(site Site, policy RedirectPolicy) *Renderer {
	if policy == "" {
		policy = RedirectScript
	}
	return &Renderer{site: site, policy: policy, sanitizer: bluemonday.UGCPolicy()}
}

// Site returns the renderer's site settings.
func (r *Renderer) Site() Site {
	return r.site
}

// BlogPost renders the snapshot of a published post.
func (r *Renderer) BlogPost(post content.BlogPost) templ.Component {
	meta := PageMeta{
		Title:         post.Title,
		Description:   firstNonEmpty(post.MetaDescription, post.Excerpt),
		Keywords:      keywords(post),
		URL:           PostURL(r.site, post.Slug),
		OGType:        "article",
		Image:         firstNonEmpty(post.Image, r.site.Image),
		Author:        firstNonEmpty(post.AuthorName, r.site.Author),
		PublishedTime: post.Date,
		Section:       post.Category,
	}
	return r.document(meta, BlogPostingJSONLD(post, r.site), func() (*html.Node, error) {
		header := el("header", nil, el("h1", nil, text(post.Title)))
		if post.Category != "" || post.Date != "" {
			p := el("p", attrs("class", "meta"), text(post.Category))
			if post.Date != "" {
				p.AppendChild(text(" "))
				p.AppendChild(el("time", attrs("datetime", post.Date), text(post.Date)))
			}
			if post.ReadTime != "" {
				p.AppendChild(text(" · " + post.ReadTime))
			}
			header.AppendChild(p)
		}
		if post.AuthorName != "" {
			byline := post.AuthorName
			if post.AuthorRole != "" {
				byline += ", " + post.AuthorRole
			}
			header.AppendChild(el("p", attrs("class", "author"), text(byline)))
		}
		if post.Excerpt != "" {
			header.AppendChild(el("p", attrs("class", "excerpt"), text(post.Excerpt)))
		}

		body := el("div", attrs("class", "content"))
		nodes, err := html.ParseFragment(strings.NewReader(r.sanitizer.Sanitize(post.Content)), body)
		if err != nil {
			return nil, fmt.Errorf("parse post body: %w", err)
		}
		for _, n := range nodes {
			body.AppendChild(n)
		}

		article := el("article", nil, header, body)
		if tags := content.FilterEmpty(post.Tags); len(tags) > 0 {
			ul := el("ul", attrs("class", "tags"))
			for _, t := range tags {
				ul.AppendChild(el("li", nil, text(t)))
			}
			article.AppendChild(ul)
		}
		return article, nil
	})
}

// CaseStudy renders the snapshot of a case study.
func (r *Renderer) CaseStudy(cs content.CaseStudy) templ.Component {
	meta := PageMeta{
		Title:       caseStudyTitle(cs),
		Description: firstNonEmpty(cs.Results, cs.Challenge),
		URL:         CaseStudyURL(r.site, cs.ID),
		OGType:      "article",
		Image:       r.site.Image,
		Section:     cs.Category,
	}
	return r.document(meta, CaseStudyJSONLD(cs, r.site), func() (*html.Node, error) {
		header := el("header", nil, el("h1", nil, text(cs.Client)))
		if cs.Category != "" {
			header.AppendChild(el("p", attrs("class", "meta"), text(cs.Category)))
		}
		article := el("article", nil, header)
		if len(cs.Stats) > 0 {
			dl := el("dl", attrs("class", "stats"))
			for _, s := range cs.Stats {
				dl.AppendChild(el("div", nil, el("dt", nil, text(s.Value)), el("dd", nil, text(s.Label))))
			}
			article.AppendChild(dl)
		}
		for _, sec := range []struct{ heading, body string }{
			{"The challenge", cs.Challenge},
			{"Our solution", cs.Solution},
			{"Results", cs.Results},
			{"", cs.FullDescription},
		} {
			if n := section(sec.heading, sec.body); n != nil {
				article.AppendChild(n)
			}
		}
		return article, nil
	})
}

// section splits text into paragraphs on blank lines. It returns nil for
// blank text.
func section(heading, body string) *html.Node {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	n := el("section", nil)
	if heading != "" {
		n.AppendChild(el("h2", nil, text(heading)))
	}
	for _, para := range strings.Split(body, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			n.AppendChild(el("p", nil, text(para)))
		}
	}
	return n
}

// document wraps the node from build in a full HTML page. The tree is
// serialized by html.Render, which escapes every text node and attribute.
func (r *Renderer) document(meta PageMeta, jsonld map[string]any, build func() (*html.Node, error)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := meta.Title
		if r.site.Name != "" {
			title += " | " + r.site.Name
		}
		head := el("head", nil,
			el("meta", attrs("charset", "utf-8")),
			el("meta", attrs("name", "viewport", "content", "width=device-width, initial-scale=1")),
			el("title", nil, text(title)),
		)
		metaName(head, "description", meta.Description)
		metaName(head, "keywords", strings.Join(meta.Keywords, ", "))
		metaName(head, "author", meta.Author)
		metaName(head, "robots", "index, follow")
		head.AppendChild(el("link", attrs("rel", "canonical", "href", meta.URL)))

		metaProperty(head, "og:type", meta.OGType)
		metaProperty(head, "og:title", meta.Title)
		metaProperty(head, "og:description", meta.Description)
		metaProperty(head, "og:url", meta.URL)
		metaProperty(head, "og:site_name", r.site.Name)
		metaProperty(head, "og:image", meta.Image)
		metaProperty(head, "article:published_time", meta.PublishedTime)
		metaProperty(head, "article:section", meta.Section)

		card := "summary"
		if meta.Image != "" {
			card = "summary_large_image"
		}
		metaName(head, "twitter:card", card)
		metaName(head, "twitter:title", meta.Title)
		metaName(head, "twitter:description", meta.Description)
		metaName(head, "twitter:image", meta.Image)

		ld, err := json.Marshal(jsonld)
		if err != nil {
			return fmt.Errorf("encode structured data: %w", err)
		}
		head.AppendChild(el("script", attrs("id", "structured-data", "type", "application/ld+json"), text(string(ld))))
		if r.policy == RedirectScript {
			script, err := redirectScript(ctx, meta.URL)
			if err != nil {
				return err
			}
			head.AppendChild(script)
		}

		article, err := build()
		if err != nil {
			return err
		}
		back := el("p", nil, el("a", attrs("href", meta.URL), text("Read on "+firstNonEmpty(r.site.Name, "the site"))))
		page := el("html", attrs("lang", "en"), head, el("body", nil, el("main", nil, article, back)))

		doc := &html.Node{Type: html.DocumentNode}
		doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
		doc.AppendChild(page)
		return html.Render(w, doc)
	})
}

func el(tag string, a []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag)), Attr: a}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// attrs pairs up keys and values.
func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

func metaName(head *html.Node, name, value string) {
	if value == "" {
		return
	}
	head.AppendChild(el("meta", attrs("name", name, "content", value)))
}

func metaProperty(head *html.Node, prop, value string) {
	if value == "" {
		return
	}
	head.AppendChild(el("meta", attrs("property", prop, "content", value)))
}

// redirectScript sends browsers that do not look like bots to target. Script
// bodies are written raw, so every value goes through jsString.
func redirectScript(ctx context.Context, target string) (*html.Node, error) {
	pattern, err := jsString(analytics.BotRegexSource())
	if err != nil {
		return nil, err
	}
	dest, err := jsString(target)
	if err != nil {
		return nil, err
	}
	var a []html.Attribute
	if n := templ.GetNonce(ctx); n != "" {
		a = attrs("nonce", n)
	}
	js := fmt.Sprintf("(function(){var bots=new RegExp(%s,\"i\");"+
		"if(!bots.test(navigator.userAgent)){setTimeout(function(){window.location.replace(%s);},%d);}})();",
		pattern, dest, RedirectDelayMillis)
	return el("script", a, text(js)), nil
}

// jsString encodes s as a JavaScript string literal that is safe inside a
// <script> element.
func jsString(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// plainText strips markup from an HTML fragment.
func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
