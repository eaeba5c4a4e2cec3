package leadpress

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/leadpress/content"
	"github.com/eringen/leadpress/ssr"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// renderSitemap lists the canonical SPA URLs of every published post and
// case study.
func (a *App) renderSitemap(c echo.Context, posts []content.BlogPost, studies []content.CaseStudy) error {
	site := a.Renderer.Site()
	urls := []sitemapURL{
		{Loc: ssr.BuildURL(site.URL)},
		{Loc: ssr.BuildURL(site.URL, "blog")},
		{Loc: ssr.BuildURL(site.URL, "case-studies")},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     ssr.PostURL(site, p.Slug),
			LastMod: p.Date,
		})
	}
	for _, cs := range studies {
		urls = append(urls, sitemapURL{Loc: ssr.CaseStudyURL(site, cs.ID)})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
