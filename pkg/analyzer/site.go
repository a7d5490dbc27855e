package analyzer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/pkg/utils"
)

const (
	maxH1 = 3
	maxH2 = 5
)

// parseSite pulls the declared keywords, title, description and top headings
// out of a page. When the document has neither a title nor a meta
// description, the metadata found by trafilatura is used instead.
func parseSite(body []byte, pageURL string) (*models.SiteKeywords, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	site := &models.SiteKeywords{
		URL:          pageURL,
		MetaKeywords: []string{},
		Headings:     []string{},
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "keywords":
			if len(site.MetaKeywords) > 0 {
				return
			}
			for _, kw := range strings.Split(content, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					site.MetaKeywords = append(site.MetaKeywords, kw)
				}
			}
		case "description":
			if site.Description == "" {
				site.Description = strings.TrimSpace(content)
			}
		}
	})

	site.Title = utils.CleanText(doc.Find("title").First().Text())
	site.Headings = append(site.Headings, headings(doc, "h1", maxH1)...)
	site.Headings = append(site.Headings, headings(doc, "h2", maxH2)...)

	if site.Title == "" && site.Description == "" {
		result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{})
		if err == nil && result != nil {
			site.Title = utils.CleanText(result.Metadata.Title)
			site.Description = utils.CleanText(result.Metadata.Description)
		}
	}
	return site, nil
}

// headings returns the non-empty text of the first limit tag elements.
func headings(doc *goquery.Document, tag string, limit int) []string {
	sel := doc.Find(tag)
	if sel.Length() > limit {
		sel = sel.Slice(0, limit)
	}
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := utils.CleanText(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// siteText joins the fields the content terms are mined from.
func siteText(site *models.SiteKeywords) string {
	return strings.Join([]string{
		site.Description,
		site.Title,
		strings.Join(site.Headings, " "),
	}, " ")
}
