package scholar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/papersources"
)

func listingPage(titles ...string) string {
	html := "<html><body>"
	for _, title := range titles {
		html += fmt.Sprintf(`<div class="gs_ri"><h3 class="gs_rt"><a href="#">%s</a></h3></div>`, title)
	}
	return html + "</body></html>"
}

func detailPage(title, journal, date, doi, abstract, authors string) string {
	page := fmt.Sprintf(`<html><head>
<meta name="citation_title" content="%s">
<meta name="citation_journal_title" content="%s">
<meta name="citation_publication_date" content="%s">
</head><body>`, title, journal, date)
	if authors != "" {
		page += `<div class="authors-list">` + authors + `</div>`
	}
	if abstract != "" {
		page += `<div class="abstract-content">` + abstract + `</div>`
	}
	if doi != "" {
		page += fmt.Sprintf(`<elocationid eidtype="doi">%s</elocationid>`, doi)
	}
	return page + "</body></html>"
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:         srv.URL,
		CrossRefBaseURL: srv.URL,
		ListingPages:    2,
		PageSize:        10,
	}
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  1000,
		BurstSize:  1000,
		RetryDelay: time.Millisecond,
	})

	return NewWithHTTPClient(cfg, zerolog.Nop(), httpClient)
}

func TestDiscover(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/scholar":
			if r.URL.Query().Get("start") == "0" {
				// Duplicate title across pages must not be cross-referenced twice.
				w.Write([]byte(listingPage("Alpha study", "Beta study")))
				return
			}
			w.Write([]byte(listingPage("Alpha study", "Gamma study", "Missing study", "No abstract study")))
		case r.URL.Path == "/" && r.URL.Query().Get("term") != "":
			term := r.URL.Query().Get("term")
			if term == "Missing study" {
				w.Write([]byte(`<html><body>no results</body></html>`))
				return
			}
			w.Write([]byte(fmt.Sprintf(`<html><body><a class="docsum-title" href="/detail/%s/"></a></body></html>`,
				map[string]string{
					"Alpha study":       "alpha",
					"Beta study":        "beta",
					"Gamma study":       "gamma",
					"No abstract study": "empty",
				}[term])))
		case r.URL.Path == "/detail/alpha/":
			w.Write([]byte(detailPage("Alpha: resolved title", "Alpha Journal", "2021/03/15", "10.1/alpha",
				"Alpha abstract.",
				`<span class="authors-list-item">Jane Doe 1</span><span class="authors-list-item">John Smith 2.</span><span class="authors-list-item">Jane Doe 1</span>`)))
		case r.URL.Path == "/detail/beta/":
			w.Write([]byte(detailPage("Beta: resolved title", "Beta Journal", "2019", "",
				"Beta abstract.", `<span class="authors-list-item">Ada Lovelace</span>`)))
		case r.URL.Path == "/detail/gamma/":
			// Same abstract as alpha: deduplicated away.
			w.Write([]byte(detailPage("Gamma: resolved title", "Gamma Journal", "2020", "",
				"Alpha abstract.", `<span class="authors-list-item">Grace Hopper</span>`)))
		case r.URL.Path == "/detail/empty/":
			w.Write([]byte(detailPage("Empty", "Journal", "2020", "", "", "")))
		default:
			t.Errorf("unexpected request: %s?%s", r.URL.Path, r.URL.RawQuery)
		}
	})

	papers, err := client.Discover(context.Background(), "some topic")
	require.NoError(t, err)

	require.Len(t, papers, 2)

	alpha := papers[0]
	assert.Equal(t, "Alpha: resolved title", alpha.Title)
	assert.Equal(t, "Alpha study", alpha.ListingTitle)
	assert.Equal(t, "Jane Doe, John Smith", alpha.Authors)
	assert.Equal(t, "2021", alpha.Date)
	assert.Equal(t, "Alpha Journal", alpha.Journal)
	assert.Equal(t, "10.1/alpha", alpha.DOI)
	assert.Equal(t, "Alpha abstract.", alpha.Abstract)
	assert.Contains(t, alpha.URL, "/detail/alpha/")
	assert.Equal(t, domain.SourceTypeScholar, alpha.Source)

	beta := papers[1]
	assert.Equal(t, "Beta: resolved title", beta.Title)
	assert.Equal(t, "Ada Lovelace", beta.Authors)
	assert.Equal(t, "2019", beta.Date)
	assert.Empty(t, beta.DOI)
}

func TestDiscoverListingPagesRequested(t *testing.T) {
	var starts []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scholar", r.URL.Path)
		assert.Equal(t, "some topic", r.URL.Query().Get("q"))
		starts = append(starts, r.URL.Query().Get("start"))
		w.Write([]byte(listingPage()))
	})

	papers, err := client.Discover(context.Background(), "some topic")
	require.NoError(t, err)
	assert.Empty(t, papers)
	assert.Equal(t, []string{"0", "10"}, starts)
}

func TestDiscoverFallsBackToListingTitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/scholar":
			if r.URL.Query().Get("start") == "0" {
				w.Write([]byte(listingPage("Only study")))
				return
			}
			w.Write([]byte(listingPage()))
		case r.URL.Path == "/":
			w.Write([]byte(`<html><body><a class="docsum-title" href="/detail/x/"></a></body></html>`))
		case r.URL.Path == "/detail/x/":
			// No citation_title meta; year only from the cit div.
			w.Write([]byte(`<html><body>` +
				`<div class="cit">2018 Jan;12(3)</div>` +
				`<div class="abstract-content">An abstract.</div>` +
				`</body></html>`))
		}
	})

	papers, err := client.Discover(context.Background(), "topic")
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "Only study", papers[0].Title)
	assert.Equal(t, "2018", papers[0].Date)
	assert.Empty(t, papers[0].Journal)
}

func TestDiscoverSearchFailureDropsTitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/scholar":
			if r.URL.Query().Get("start") == "0" {
				w.Write([]byte(listingPage("Broken study")))
				return
			}
			w.Write([]byte(listingPage()))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	papers, err := client.Discover(context.Background(), "topic")
	require.NoError(t, err)
	assert.Empty(t, papers)
}
