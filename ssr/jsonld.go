package ssr

import (
	"net/url"
	"path"
	"strings"

	"github.com/eringen/leadpress/content"
)

// BuildURL joins a base URL with path segments.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	return u.String()
}

// PostURL is the SPA URL of a blog post.
func PostURL(site Site, slug string) string {
	return BuildURL(site.URL, "blog", slug)
}

// CaseStudyURL is the SPA URL of a case study.
func CaseStudyURL(site Site, id string) string {
	return BuildURL(site.URL, "case-studies", id)
}

// BlogPostingJSONLD returns the schema.org BlogPosting for post.
func BlogPostingJSONLD(post content.BlogPost, site Site) map[string]any {
	postURL := PostURL(site, post.Slug)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   firstNonEmpty(post.MetaDescription, post.Excerpt),
		"datePublished": post.Date,
		"url":           postURL,
		"articleBody":   plainText(post.Content),
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if !post.UpdatedAt.IsZero() {
		data["dateModified"] = post.UpdatedAt.Format("2006-01-02")
	}
	if author := firstNonEmpty(post.AuthorName, site.Author); author != "" {
		person := map[string]string{"@type": "Person", "name": author}
		if post.AuthorRole != "" {
			person["jobTitle"] = post.AuthorRole
		}
		data["author"] = person
	}
	if site.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		}
	}
	if post.Image != "" {
		data["image"] = post.Image
	}
	if kw := keywords(post); len(kw) > 0 {
		data["keywords"] = strings.Join(kw, ", ")
	}
	if post.Category != "" {
		data["articleSection"] = post.Category
	}
	return data
}

// CaseStudyJSONLD returns the schema.org Article for cs.
func CaseStudyJSONLD(cs content.CaseStudy, site Site) map[string]any {
	csURL := CaseStudyURL(site, cs.ID)
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "Article",
		"headline":    caseStudyTitle(cs),
		"description": cs.Results,
		"url":         csURL,
		"articleBody": strings.Join(content.FilterEmpty([]string{cs.Challenge, cs.Solution, cs.Results, cs.FullDescription}), "\n\n"),
		"about": map[string]string{
			"@type": "Organization",
			"name":  cs.Client,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   csURL,
		},
	}
	if site.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		}
	}
	if cs.Category != "" {
		data["articleSection"] = cs.Category
	}
	return data
}

func keywords(post content.BlogPost) []string {
	if kw := content.FilterEmpty(post.MetaKeywords); len(kw) > 0 {
		return kw
	}
	return content.FilterEmpty(post.Tags)
}

func caseStudyTitle(cs content.CaseStudy) string {
	if cs.Category == "" {
		return cs.Client + " case study"
	}
	return cs.Client + ": " + cs.Category
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
