// Package pubmed provides the metadata search client backed by the NCBI
// PubMed E-utilities API.
//
// Searches run in two steps: esearch.fcgi returns the record IDs matching a
// phrase (JSON), and efetch.fcgi returns the record metadata per ID (XML).
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import "encoding/xml"

// esearchResponse is the JSON payload from the esearch.fcgi endpoint.
// A populated Error field is the API's throttling signal.
type esearchResponse struct {
	ESearchResult esearchResult `json:"esearchresult"`
	Error         string        `json:"error"`
}

// esearchResult holds the record IDs matching a search phrase.
type esearchResult struct {
	Count  string   `json:"count"`
	IDList []string `json:"idlist"`
}

// PubmedArticleSet is the root of an efetch.fcgi XML response in the
// official schema.
type PubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle represents a single record in the official schema.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
	PubmedData      PubmedData      `xml:"PubmedData"`
}

// MedlineCitation contains the core bibliographic information.
type MedlineCitation struct {
	PMID    string  `xml:"PMID"`
	Article Article `xml:"Article"`
}

// Article contains the article metadata.
type Article struct {
	Journal      *Journal    `xml:"Journal"`
	ArticleTitle string      `xml:"ArticleTitle"`
	Abstract     *Abstract   `xml:"Abstract"`
	AuthorList   *AuthorList `xml:"AuthorList"`
}

// Journal contains journal information.
type Journal struct {
	Title        string       `xml:"Title"`
	JournalIssue JournalIssue `xml:"JournalIssue"`
}

// JournalIssue contains the volume, issue, and publication date.
type JournalIssue struct {
	Volume  string  `xml:"Volume"`
	Issue   string  `xml:"Issue"`
	PubDate PubDate `xml:"PubDate"`
}

// PubDate represents the publication date which may have various formats.
type PubDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

// Abstract contains the article abstract, which may have multiple sections.
type Abstract struct {
	AbstractTexts []string `xml:"AbstractText"`
}

// AuthorList contains the list of authors.
type AuthorList struct {
	Authors []Author `xml:"Author"`
}

// Author represents a single author. Records missing either the last name
// or the initials are skipped when formatting.
type Author struct {
	LastName string `xml:"LastName"`
	Initials string `xml:"Initials"`
}

// PubmedData carries the typed identifier list.
type PubmedData struct {
	ArticleIdList ArticleIdList `xml:"ArticleIdList"`
}

// ArticleIdList contains various identifiers for the article.
type ArticleIdList struct {
	ArticleIds []ArticleId `xml:"ArticleId"`
}

// ArticleId represents a typed article identifier (pubmed, doi, pmc).
type ArticleId struct {
	IdType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// genericArticleSet is the root of a record in the generic lowercase shape
// served by some E-utilities mirrors.
type genericArticleSet struct {
	XMLName  xml.Name         `xml:"articleset"`
	Articles []genericArticle `xml:"article"`
}

// genericArticle mirrors the fields of the official schema with flat
// lowercase elements.
type genericArticle struct {
	ID       string         `xml:"id"`
	Title    string         `xml:"title"`
	Journal  string         `xml:"journal"`
	Year     string         `xml:"year"`
	Month    string         `xml:"month"`
	DOI      string         `xml:"doi"`
	Abstract string         `xml:"abstract"`
	Authors  genericAuthors `xml:"authors"`
}

type genericAuthors struct {
	Authors []genericAuthor `xml:"author"`
}

type genericAuthor struct {
	Initials string `xml:"initials"`
	LastName string `xml:"lastname"`
}
