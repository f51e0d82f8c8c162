package explorer

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/biogas-sitemap/internal/domain"
	"golang.org/x/text/cases"
)

// MessageKind distinguishes the status line variants shown after a search.
type MessageKind string

const (
	MessageNone    MessageKind = ""
	MessageSuccess MessageKind = "success"
	MessageNoMatch MessageKind = "no_match"
)

// StatusMessage is the short line reported to the user after a search.
type StatusMessage struct {
	Kind MessageKind `json:"kind,omitempty"`
	Text string      `json:"text,omitempty"`
}

// SearchResult is the outcome of one operator search.
type SearchResult struct {
	Query         string        `json:"query"`
	Matches       []domain.Site `json:"-"`
	IDs           []string      `json:"ids"`
	Count         int           `json:"count"`
	OperatorCount int           `json:"operator_count"`
	Message       StatusMessage `json:"message"`
}

// NormalizeQuery trims whitespace. An empty result means search is inactive.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

// Search returns the sites whose operator contains the query, ignoring case.
// Sites without an operator match only the sentinel query "N/A".
func Search(sites []domain.Site, query string) SearchResult {
	q := NormalizeQuery(query)
	res := SearchResult{Query: q, IDs: []string{}}
	if q == "" {
		return res
	}

	fold := cases.Fold()
	folded := fold.String(q)
	sentinel := strings.EqualFold(q, domain.OperatorSentinel)

	operators := make(map[string]struct{})
	for _, s := range sites {
		if !matchOperator(s, folded, sentinel, fold) {
			continue
		}
		res.Matches = append(res.Matches, s)
		res.IDs = append(res.IDs, s.ID)
		operators[s.DisplayOperator()] = struct{}{}
	}

	res.Count = len(res.Matches)
	res.OperatorCount = len(operators)
	res.Message = searchMessage(q, res.Count, res.OperatorCount)
	return res
}

func matchOperator(s domain.Site, foldedQuery string, sentinel bool, fold cases.Caser) bool {
	if !s.HasOperator() {
		return sentinel
	}
	return strings.Contains(fold.String(s.Operator), foldedQuery)
}

func searchMessage(q string, count, operators int) StatusMessage {
	if count == 0 {
		return StatusMessage{Kind: MessageNoMatch, Text: fmt.Sprintf("No sites found for operator %q", q)}
	}
	return StatusMessage{Kind: MessageSuccess, Text: fmt.Sprintf("%d site(s) from %d operator(s)", count, operators)}
}
