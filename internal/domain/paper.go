package domain

import "strings"

// SourceType identifies which client produced a paper record.
type SourceType string

const (
	// SourceTypePubMed marks records fetched from the structured metadata API.
	SourceTypePubMed SourceType = "pubmed"

	// SourceTypeScholar marks records recovered through the scholar listing scrape.
	SourceTypeScholar SourceType = "scholar"
)

// Paper is the canonical paper record produced by the fetch clients and
// consumed, read-only, by the aggregator, composer, and reconciler.
//
// There is no global primary key: identity is structural, keyed by the
// normalized title (see TitleKey). Two records with equal normalized titles
// are the same paper wherever collections are merged. Optional fields
// default to the empty string.
type Paper struct {
	// Title is the display title and the deduplication key.
	Title string `json:"title"`

	// Authors is the joined display form, e.g. "JA. Smith and E. Johnson".
	Authors string `json:"authors"`

	// Date is free-form: "2023", "(Mar. 2023)", or empty.
	Date string `json:"date"`

	// Journal is the publication venue, empty if unknown.
	Journal string `json:"journal"`

	// DOI is the digital object identifier, empty if absent.
	DOI string `json:"doi,omitempty"`

	// ExternalID is the source-native record identifier (e.g. a PMID).
	ExternalID string `json:"external_id,omitempty"`

	// URL is a resolvable link to the record, empty if absent.
	URL string `json:"url,omitempty"`

	// Abstract is the abstract text. Scholar records without an abstract
	// are dropped before they reach this type.
	Abstract string `json:"abstract"`

	// ListingTitle is the unresolved title as it appeared on the scholar
	// result listing. Kept only for matching; not required downstream.
	ListingTitle string `json:"listing_title,omitempty"`

	// Source identifies the producing client.
	Source SourceType `json:"source,omitempty"`
}

// TitleKey returns the normalized dedup key for the paper: the title
// lowercased and trimmed of surrounding whitespace.
func (p *Paper) TitleKey() string {
	return NormalizeTitle(p.Title)
}

// DisplayURL returns the best link for the paper, preferring the DOI
// resolver, then the PubMed record page, then the raw URL.
func (p *Paper) DisplayURL() string {
	if p.DOI != "" {
		return "https://doi.org/" + p.DOI
	}
	if p.ExternalID != "" {
		return "https://pubmed.ncbi.nlm.nih.gov/" + p.ExternalID
	}
	return p.URL
}

// NormalizeTitle normalizes a title for use as a dedup key.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// NormalizeAbstract normalizes abstract text for abstract-keyed dedup.
func NormalizeAbstract(abstract string) string {
	return strings.TrimSpace(abstract)
}

// DedupeByTitle returns papers with at most one record per distinct
// normalized title. The first occurrence wins; order is preserved.
func DedupeByTitle(papers []Paper) []Paper {
	seen := make(map[string]struct{}, len(papers))
	out := make([]Paper, 0, len(papers))
	for _, p := range papers {
		key := p.TitleKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
