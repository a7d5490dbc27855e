// Package reporter renders command results as tables, JSON or Markdown.
package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/pkg/analyzer"
	"github.com/amosWeiskopf/leadsmith/pkg/crawler"
	"github.com/amosWeiskopf/leadsmith/pkg/orchestrator"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

var (
	// ErrUnsupportedFormat is returned by ParseFormat for unknown names.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrUnsupportedValue is returned by Render for values without a tabular view.
	ErrUnsupportedValue = errors.New("no tabular view for value")
)

// ParseFormat accepts "table", "json", "markdown" and "md".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table", "text":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// Reporter writes results to out in a fixed format.
type Reporter struct {
	format Format
	out    io.Writer
}

// New creates a new Reporter instance
func New(format Format, out io.Writer) *Reporter {
	if format == "" {
		format = FormatTable
	}
	return &Reporter{format: format, out: out}
}

// Render writes v. JSON output works for any value; the table and Markdown
// formats cover the result types produced by the pipeline.
func (r *Reporter) Render(v any) error {
	if r.format == FormatJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		return nil
	}

	sections, err := tabulate(v)
	if err != nil {
		return err
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		r.write(s)
	}
	return nil
}

// section is one titled table.
type section struct {
	title  string
	header table.Row
	rows   []table.Row
}

func (r *Reporter) write(s section) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.AppendHeader(s.header)
	t.AppendRows(s.rows)

	if r.format == FormatMarkdown {
		if s.title != "" {
			fmt.Fprintf(r.out, "## %s\n\n", s.title)
		}
		t.RenderMarkdown()
		return
	}
	t.SetStyle(table.StyleLight)
	t.SetTitle(s.title)
	t.Render()
}

func fields(title string, kv ...any) section {
	s := section{title: title, header: table.Row{"Field", "Value"}}
	for i := 0; i+1 < len(kv); i += 2 {
		s.rows = append(s.rows, table.Row{kv[i], kv[i+1]})
	}
	return s
}

func tabulate(v any) ([]section, error) {
	switch x := v.(type) {
	case *orchestrator.RunStats:
		return runStats(x), nil
	case *orchestrator.SearchResult:
		return searchResult(x), nil
	case *models.ContactResult:
		return []section{contactResult(x)}, nil
	case *crawler.EnrichStats:
		return []section{fields("Contact enrichment",
			"Processed", x.Processed,
			"With email", x.WithEmail,
			"With phone", x.WithPhone,
			"With tax id", x.WithTaxID,
			"Errors", len(x.Errors),
		)}, nil
	case *analyzer.Analysis:
		return []section{fields("Keyword analysis",
			"Sites analyzed", x.SitesAnalyzed,
			"Keywords found", x.KeywordsFound,
			"Suggestions added", x.SuggestionsAdded,
		)}, nil
	case models.SearchStats:
		return []section{quotaStats(x)}, nil
	case []models.Market:
		return []section{markets(x)}, nil
	case []models.Keyword:
		return []section{keywords(x)}, nil
	case []models.Lead:
		return []section{leads(x)}, nil
	case []models.KeywordSuggestion:
		return []section{suggestions(x)}, nil
	case []models.MarketplaceEntry:
		return []section{marketplaces(x)}, nil
	case []models.SearchAudit:
		return []section{audits(x)}, nil
	case map[models.Tab]int:
		return []section{tabCounts(x)}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func runStats(s *orchestrator.RunStats) []section {
	out := []section{fields("Search run "+s.RunID,
		"Markets", s.MarketsProcessed,
		"Keywords searched", s.KeywordsSearched,
		"Keywords skipped", s.KeywordsSkipped,
		"Results", s.TotalResults,
		"New leads", s.NewLeads,
		"Quota exhausted", yesNo(s.QuotaExhausted),
		"Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
	)}
	if len(s.Errors) > 0 {
		errs := section{title: "Errors", header: table.Row{"#", "Error"}}
		for i, e := range s.Errors {
			errs.rows = append(errs.rows, table.Row{i + 1, e})
		}
		out = append(out, errs)
	}
	return out
}

func searchResult(r *orchestrator.SearchResult) []section {
	status := "ok"
	switch {
	case r.QuotaExceeded:
		status = "quota exceeded"
	case !r.Success:
		status = "failed"
	}
	summary := fields(fmt.Sprintf("%s [%s]", r.Keyword, r.MarketCode),
		"Status", status,
		"Results", r.TotalResults,
		"New leads", r.NewLeads,
		"Duplicates", r.Duplicates,
		"Excluded", r.Excluded,
	)
	if r.Error != "" {
		summary.rows = append(summary.rows, table.Row{"Error", r.Error})
	}
	if len(r.Items) == 0 {
		return []section{summary}
	}

	items := section{title: "Results", header: table.Row{"Domain", "Class", "Lead", "New", "Title"}}
	for _, it := range r.Items {
		items.rows = append(items.rows, table.Row{it.Domain, it.Class, it.LeadID, yesNo(it.IsNew), it.Title})
	}
	return []section{summary, items}
}

func contactResult(c *models.ContactResult) section {
	s := fields("Contact",
		"Email", c.Email,
		"Phone", c.Phone,
		"Tax id", c.TaxID,
		"Emails found", strings.Join(c.EmailsFound, ", "),
		"Phones found", strings.Join(c.PhonesFound, ", "),
		"Pages visited", len(c.PagesVisited),
	)
	if c.Error != "" {
		s.rows = append(s.rows, table.Row{"Error", c.Error})
	}
	return s
}

func quotaStats(s models.SearchStats) section {
	limit, remaining := any(s.MaxSearches), any(s.Remaining)
	if s.IsUnlimited {
		limit, remaining = "unlimited", "unlimited"
	}
	return fields("Search quota",
		"Searches today", s.SearchesToday,
		"Daily limit", limit,
		"Remaining", remaining,
	)
}

func markets(ms []models.Market) section {
	s := section{title: "Markets", header: table.Row{"ID", "Code", "Name", "Language", "Active"}}
	for _, m := range ms {
		s.rows = append(s.rows, table.Row{m.ID, m.Code, m.Name, m.Language, yesNo(m.Active)})
	}
	return s
}

func keywords(ks []models.Keyword) section {
	s := section{title: "Keywords", header: table.Row{"ID", "Keyword", "Category", "Active", "Searches", "Results", "Last search"}}
	for _, k := range ks {
		last := "-"
		if k.LastSearchAt != nil {
			last = k.LastSearchAt.UTC().Format(time.DateTime)
		}
		s.rows = append(s.rows, table.Row{k.ID, k.Text, k.Category, yesNo(k.Active), k.TotalSearches, k.TotalResults, last})
	}
	return s
}

func leads(ls []models.Lead) section {
	s := section{title: "Leads", header: table.Row{"ID", "Domain", "Tab", "Email", "Phone", "Tax id"}}
	for _, l := range ls {
		s.rows = append(s.rows, table.Row{l.ID, l.Domain, l.Tab, deref(l.Email), deref(l.Phone), deref(l.TaxID)})
	}
	return s
}

func suggestions(ss []models.KeywordSuggestion) section {
	s := section{title: "Keyword suggestions", header: table.Row{"ID", "Keyword", "Source", "Frequency", "Websites", "Status"}}
	for _, sg := range ss {
		status := "pending"
		switch {
		case sg.Added:
			status = "added"
		case sg.Ignored:
			status = "ignored"
		}
		s.rows = append(s.rows, table.Row{sg.ID, sg.Text, sg.Source, sg.Frequency, sg.WebsitesCount, status})
	}
	return s
}

func marketplaces(es []models.MarketplaceEntry) section {
	s := section{title: "Marketplaces", header: table.Row{"Domain", "Name", "Source"}}
	for _, e := range es {
		source := "user"
		if e.IsSystem {
			source = "system"
		}
		s.rows = append(s.rows, table.Row{e.Domain, e.Name, source})
	}
	return s
}

func audits(as []models.SearchAudit) section {
	s := section{title: "Search history", header: table.Row{"When", "Keyword", "Results", "New leads", "Status"}}
	for _, a := range as {
		status := "ok"
		if !a.Success {
			status = "failed: " + deref(a.ErrorMessage)
		}
		s.rows = append(s.rows, table.Row{a.SearchedAt.UTC().Format(time.DateTime), a.KeywordText, a.ResultsCount, a.NewLeadsCount, status})
	}
	return s
}

func tabCounts(counts map[models.Tab]int) section {
	s := section{title: "Leads by tab", header: table.Row{"Tab", "Leads"}}
	total := 0
	for _, tab := range models.Tabs() {
		s.rows = append(s.rows, table.Row{tab, counts[tab]})
		total += counts[tab]
	}
	s.rows = append(s.rows, table.Row{"total", total})
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
