package pipeline

import (
	"regexp"
	"strings"

	"github.com/scriptoria/litreview/internal/domain"
)

// Checkpoint names published to the table sink.
const (
	CheckpointExactSearch = "exact_search"
	CheckpointSelection   = "selection"
	CheckpointFinal       = "final"
)

// ProgressSink receives human-readable status updates as the run advances.
type ProgressSink interface {
	Progress(runID, status string)
}

// TableSink receives the paper collection at each checkpoint.
type TableSink interface {
	PublishPapers(runID, checkpoint string, papers []domain.Paper)
}

// SidebarRenderer receives the final bibliography with each entry matched
// back to its paper record where possible.
type SidebarRenderer interface {
	RenderSidebar(runID string, entries []SidebarEntry)
}

// SidebarEntry pairs one bibliography line with the paper it refers to.
// Paper is nil when no title match was found.
type SidebarEntry struct {
	Reference string
	Paper     *domain.Paper
}

// NopSinks returns sinks that discard everything. Used when no front end
// is attached to the run.
func NopSinks() Sinks {
	return Sinks{
		Progress: nopSink{},
		Table:    nopSink{},
		Sidebar:  nopSink{},
	}
}

// Sinks bundles the outbound collaborators of a run.
type Sinks struct {
	Progress ProgressSink
	Table    TableSink
	Sidebar  SidebarRenderer
}

// applyDefaults fills missing sinks with no-ops.
func (s *Sinks) applyDefaults() {
	if s.Progress == nil {
		s.Progress = nopSink{}
	}
	if s.Table == nil {
		s.Table = nopSink{}
	}
	if s.Sidebar == nil {
		s.Sidebar = nopSink{}
	}
}

type nopSink struct{}

func (nopSink) Progress(string, string)                      {}
func (nopSink) PublishPapers(string, string, []domain.Paper) {}
func (nopSink) RenderSidebar(string, []SidebarEntry)         {}

// Bibliography entries come back from the model in two shapes: a full
// "[n] Authors. (Year). Title. Journal." line, or a bare "[n] Title" line.
var (
	fullReferenceTitleRe = regexp.MustCompile(`\[\d+\]\s.*?\(\d{4}\)\.\s(.*?)\.`)
	bareReferenceTitleRe = regexp.MustCompile(`\[\d+\]\s+(.*?)\n`)
)

// MatchBibliography pairs each bibliography entry with the paper whose
// title it contains. The title is extracted from the entry with the full
// reference pattern first, then the bare pattern; the extracted title and
// the paper title match when either contains the other, case-insensitive.
func MatchBibliography(entries []string, papers []domain.Paper) []SidebarEntry {
	matched := make([]SidebarEntry, len(entries))
	for i, entry := range entries {
		matched[i] = SidebarEntry{Reference: entry}

		title := extractReferenceTitle(entry)
		if title == "" {
			continue
		}
		for j := range papers {
			if titlesMatch(title, papers[j].Title) {
				matched[i].Paper = &papers[j]
				break
			}
		}
	}
	return matched
}

func extractReferenceTitle(entry string) string {
	if m := fullReferenceTitleRe.FindStringSubmatch(entry); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareReferenceTitleRe.FindStringSubmatch(entry + "\n"); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func titlesMatch(extracted, title string) bool {
	extracted = strings.ToLower(extracted)
	title = strings.ToLower(strings.TrimSpace(title))
	if extracted == "" || title == "" {
		return false
	}
	return strings.Contains(title, extracted) || strings.Contains(extracted, title)
}
