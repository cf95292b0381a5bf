package pubmed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/scriptoria/litreview/internal/domain"
)

// RecordParser turns one efetch response body into a paper record.
// A non-nil error drops the record.
type RecordParser interface {
	ParseRecord(data []byte) (domain.Paper, error)
}

// NewParser returns the parser for the given variant name
// (config.ParserOfficial or config.ParserGeneric).
func NewParser(variant string) (RecordParser, error) {
	switch variant {
	case "official", "":
		return &OfficialParser{}, nil
	case "generic":
		return &GenericParser{}, nil
	default:
		return nil, fmt.Errorf("unknown pubmed parser variant: %q", variant)
	}
}

// OfficialParser parses the official PubmedArticleSet efetch schema.
type OfficialParser struct{}

var _ RecordParser = (*OfficialParser)(nil)

// ParseRecord extracts a paper from the first PubmedArticle in the response.
// Records without an article element or a journal element are rejected.
func (p *OfficialParser) ParseRecord(data []byte) (domain.Paper, error) {
	var set PubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return domain.Paper{}, fmt.Errorf("failed to parse efetch XML: %w", err)
	}
	if len(set.Articles) == 0 {
		return domain.Paper{}, fmt.Errorf("no article in efetch response")
	}

	article := set.Articles[0]
	citation := article.MedlineCitation
	if citation.Article.Journal == nil {
		return domain.Paper{}, fmt.Errorf("article has no journal element")
	}

	var names []authorName
	if citation.Article.AuthorList != nil {
		for _, a := range citation.Article.AuthorList.Authors {
			names = append(names, authorName{Initials: a.Initials, LastName: a.LastName})
		}
	}

	var doi string
	for _, aid := range article.PubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			doi = aid.Value
			break
		}
	}

	var abstract string
	if citation.Article.Abstract != nil {
		abstract = joinAbstract(citation.Article.Abstract.AbstractTexts)
	}

	pubDate := citation.Article.Journal.JournalIssue.PubDate

	return domain.Paper{
		Title:      stripBrackets(citation.Article.ArticleTitle),
		Authors:    formatAuthors(names),
		Date:       formatDate(pubDate.Month, pubDate.Year),
		Journal:    citation.Article.Journal.Title,
		DOI:        doi,
		ExternalID: strings.TrimSpace(citation.PMID),
		Abstract:   abstract,
		Source:     domain.SourceTypePubMed,
	}, nil
}

// GenericParser parses the flat lowercase article shape.
type GenericParser struct{}

var _ RecordParser = (*GenericParser)(nil)

// ParseRecord extracts a paper from the first article in the response.
func (p *GenericParser) ParseRecord(data []byte) (domain.Paper, error) {
	var set genericArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return domain.Paper{}, fmt.Errorf("failed to parse article XML: %w", err)
	}
	if len(set.Articles) == 0 {
		return domain.Paper{}, fmt.Errorf("no article in response")
	}

	article := set.Articles[0]

	names := make([]authorName, 0, len(article.Authors.Authors))
	for _, a := range article.Authors.Authors {
		names = append(names, authorName{Initials: a.Initials, LastName: a.LastName})
	}

	return domain.Paper{
		Title:      stripBrackets(article.Title),
		Authors:    formatAuthors(names),
		Date:       formatDate(article.Month, article.Year),
		Journal:    article.Journal,
		DOI:        article.DOI,
		ExternalID: strings.TrimSpace(article.ID),
		Abstract:   strings.TrimSpace(article.Abstract),
		Source:     domain.SourceTypePubMed,
	}, nil
}

// authorName is the minimal name pair needed for display formatting.
type authorName struct {
	Initials string
	LastName string
}

// formatAuthors renders authors as "JA. Smith, E. Johnson and P. Brown":
// each author is "Initials. LastName", the last two are joined with " and ",
// earlier ones with ", ". Authors missing either part are skipped.
func formatAuthors(names []authorName) string {
	kept := make([]authorName, 0, len(names))
	for _, n := range names {
		if n.Initials != "" && n.LastName != "" {
			kept = append(kept, n)
		}
	}

	var b strings.Builder
	for i, n := range kept {
		b.WriteString(n.Initials)
		b.WriteString(". ")
		b.WriteString(n.LastName)
		switch {
		case i == len(kept)-2:
			b.WriteString(" and ")
		case i < len(kept)-1:
			b.WriteString(", ")
		}
	}
	return b.String()
}

// monthAbbrs maps month numbers to their display abbreviation.
var monthAbbrs = [...]string{
	"", "Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// formatDate renders the publication date as "(Mon. Year)" when both parts
// are present, "(Year)" with only a year, and "" otherwise. Numeric months
// are converted through the abbreviation table; unparseable ones pass
// through as-is.
func formatDate(month, year string) string {
	if year == "" {
		return ""
	}
	if month == "" {
		return "(" + year + ")"
	}
	if len(month) < 3 {
		if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
			month = monthAbbrs[m]
		}
	}
	return "(" + month + ". " + year + ")"
}

// stripBrackets removes square brackets from a title. PubMed wraps
// translated titles in brackets.
func stripBrackets(s string) string {
	return strings.NewReplacer("[", "", "]", "").Replace(s)
}

// joinAbstract concatenates structured abstract sections with spaces.
func joinAbstract(sections []string) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if t := strings.TrimSpace(s); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
