package search

import (
	"strings"

	"facilitysync/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ProposalID  string   `json:"proposal_id"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet"`
	Type        string   `json:"type"`
	DataSession string   `json:"data_session"`
	Instruments []string `json:"instruments"`
}

// Query describes a search request.
type Query struct {
	Text       string
	Instrument string // empty = any beamline
	Cycle      string // empty = any cycle
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ProposalRecord is the data we index for a proposal.
type ProposalRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	DataSession string   `json:"dataSession"`
	Instruments []string `json:"instruments"`
	Cycles      []string `json:"cycles"`
	PI          string   `json:"pi"`
	Users       []string `json:"users"`
}

// RecordFromProposal flattens a stored proposal into its index document.
func RecordFromProposal(p store.Proposal) ProposalRecord {
	record := ProposalRecord{
		ID:          p.ProposalID,
		Title:       p.Title,
		Type:        p.Type,
		DataSession: p.DataSession,
		Instruments: nonNilStrings(p.Instruments),
		Cycles:      nonNilStrings(p.Cycles),
		Users:       make([]string, 0, len(p.Users)),
	}
	for _, user := range p.Users {
		name := strings.TrimSpace(user.FirstName + " " + user.LastName)
		if name == "" {
			continue
		}
		record.Users = append(record.Users, name)
		if user.IsPI && record.PI == "" {
			record.PI = name
		}
	}
	return record
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
