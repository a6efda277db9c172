package report

import (
	"sort"
	"time"

	"github.com/nao1215/bannerscan/internal/model"
)

// Summary aggregates outcome counts over a scan.
type Summary struct {
	// Total is the number of results seen.
	Total int

	// ByKind counts results per outcome kind.
	ByKind map[model.OutcomeKind]int

	// ByProtocol counts results per protocol name and outcome kind.
	ByProtocol map[string]map[model.OutcomeKind]int

	// First and Last are the earliest and latest task start times.
	First time.Time
	Last  time.Time
}

// NewSummary creates an empty Summary.
func NewSummary() *Summary {
	return &Summary{
		ByKind:     make(map[model.OutcomeKind]int),
		ByProtocol: make(map[string]map[model.OutcomeKind]int),
	}
}

// Add counts one result.
func (s *Summary) Add(r *model.ConnectionResult) {
	s.Total++
	s.ByKind[r.Outcome.Kind]++

	perKind, ok := s.ByProtocol[r.Protocol]
	if !ok {
		perKind = make(map[model.OutcomeKind]int)
		s.ByProtocol[r.Protocol] = perKind
	}
	perKind[r.Outcome.Kind]++

	if s.First.IsZero() || r.ScannedAt.Before(s.First) {
		s.First = r.ScannedAt
	}
	if r.ScannedAt.After(s.Last) {
		s.Last = r.ScannedAt
	}
}

// Protocols returns the protocol names seen, sorted.
func (s *Summary) Protocols() []string {
	names := make([]string, 0, len(s.ByProtocol))
	for name := range s.ByProtocol {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Responsive is the number of results that captured a banner.
func (s *Summary) Responsive() int {
	return s.ByKind[model.OutcomeSuccess] + s.ByKind[model.OutcomeProbeDegraded]
}
