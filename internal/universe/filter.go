// Package universe narrows the instrument directory down to the instruments
// a scan should look at: first by market-segment membership, then by a
// closing-price band over the resolved trading-day snapshot.
package universe

import (
	"sort"
	"strings"

	"github.com/yshimizu/kabuscan/internal/market"
)

// Filter holds the universe criteria. Both stages are pure; Apply composes
// them.
type Filter struct {
	Segments []string // market-segment allow-list, substring match
	MinPrice float64
	MaxPrice float64
}

// FilterBySegment keeps instruments whose segment name contains any of the
// allow-listed labels. The match is a case-sensitive substring match because
// vendor segment names carry qualifiers ("プライム（内国株式）"). An
// instrument with no segment name is excluded.
func FilterBySegment(instruments []market.Instrument, segments []string) []market.Instrument {
	kept := make([]market.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst.MarketSegmentName == "" {
			continue
		}
		for _, segment := range segments {
			if strings.Contains(inst.MarketSegmentName, segment) {
				kept = append(kept, inst)
				break
			}
		}
	}
	return kept
}

// Apply runs the segment filter over the directory, then joins the
// latest-snapshot map against it on normalized code, keeping entries whose
// close lies in [MinPrice, MaxPrice] inclusive. A snapshot entry the
// directory knows nothing about is still included with empty name/market
// fields: a directory lookup failure must not drop a priced instrument. A
// directory entry excluded by segment stays excluded. Output is sorted by
// code so repeated scans walk instruments in the same order.
func (f Filter) Apply(instruments []market.Instrument, latest map[string]market.Bar) []market.Candidate {
	inDirectory := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		inDirectory[market.NormalizeCode(inst.Code)] = true
	}

	allowed := make(map[string]market.Instrument)
	for _, inst := range FilterBySegment(instruments, f.Segments) {
		allowed[market.NormalizeCode(inst.Code)] = inst
	}

	candidates := make([]market.Candidate, 0, len(latest))
	for code, bar := range latest {
		if bar.Close < f.MinPrice || bar.Close > f.MaxPrice {
			continue
		}
		inst, ok := allowed[code]
		if !ok && inDirectory[code] {
			// Known instrument outside the allowed segments.
			continue
		}
		candidates = append(candidates, market.Candidate{
			Code:        code,
			CompanyName: inst.DisplayName,
			Market:      inst.MarketSegmentName,
			LatestPrice: bar.Close,
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Code < candidates[j].Code })
	return candidates
}
