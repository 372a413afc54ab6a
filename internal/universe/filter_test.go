package universe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yshimizu/kabuscan/internal/market"
)

func snapshotBar(code string, close float64) market.Bar {
	return market.Bar{
		InstrumentCode: code,
		Date:           time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Open:           close,
		High:           close,
		Low:            close,
		Close:          close,
		Volume:         100,
	}
}

func TestFilterBySegment(t *testing.T) {
	instruments := []market.Instrument{
		{Code: "10010", DisplayName: "A", MarketSegmentName: "プライム（内国株式）"},
		{Code: "10020", DisplayName: "B", MarketSegmentName: "スタンダード（内国株式）"},
		{Code: "10030", DisplayName: "C", MarketSegmentName: "グロース（内国株式）"},
		{Code: "10040", DisplayName: "D", MarketSegmentName: "TOKYO PRO MARKET"},
		{Code: "10050", DisplayName: "E", MarketSegmentName: ""},
	}

	tests := []struct {
		name     string
		segments []string
		want     []string
	}{
		{
			name:     "all three main segments",
			segments: []string{"プライム", "スタンダード", "グロース"},
			want:     []string{"A", "B", "C"},
		},
		{
			name:     "prime only, substring matches qualified name",
			segments: []string{"プライム"},
			want:     []string{"A"},
		},
		{
			name:     "no allow-list matches nothing",
			segments: nil,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := FilterBySegment(instruments, tt.segments)
			names := make([]string, 0, len(kept))
			for _, inst := range kept {
				names = append(names, inst.DisplayName)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFilterBySegmentMissingSegmentExcluded(t *testing.T) {
	instruments := []market.Instrument{
		{Code: "10050", DisplayName: "E"}, // no segment name
	}
	assert.Empty(t, FilterBySegment(instruments, []string{"プライム", ""}),
		"missing segment name excludes the instrument even with an empty allow-list entry")
}

func TestApplyPriceBandInclusive(t *testing.T) {
	f := Filter{Segments: []string{"プライム"}, MinPrice: 100, MaxPrice: 600}
	instruments := []market.Instrument{
		{Code: "10010", DisplayName: "Low", MarketSegmentName: "プライム"},
		{Code: "10020", DisplayName: "Min", MarketSegmentName: "プライム"},
		{Code: "10030", DisplayName: "Mid", MarketSegmentName: "プライム"},
		{Code: "10040", DisplayName: "Max", MarketSegmentName: "プライム"},
		{Code: "10050", DisplayName: "High", MarketSegmentName: "プライム"},
	}
	latest := map[string]market.Bar{
		"1001": snapshotBar("1001", 99.99),
		"1002": snapshotBar("1002", 100), // at minPrice, inclusive
		"1003": snapshotBar("1003", 350),
		"1004": snapshotBar("1004", 600), // at maxPrice, inclusive
		"1005": snapshotBar("1005", 600.01),
	}

	candidates := f.Apply(instruments, latest)

	names := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		names[c.CompanyName] = c.LatestPrice
	}
	assert.Equal(t, map[string]float64{"Min": 100, "Mid": 350, "Max": 600}, names)
}

func TestApplyJoinsOnNormalizedCode(t *testing.T) {
	f := Filter{Segments: []string{"プライム"}, MinPrice: 100, MaxPrice: 600}
	// Directory carries the 5-character representation, the snapshot map is
	// keyed by the normalized 4-character code.
	instruments := []market.Instrument{
		{Code: "72030", DisplayName: "トヨタ自動車", MarketSegmentName: "プライム（内国株式）"},
	}
	latest := map[string]market.Bar{
		"7203": snapshotBar("72030", 250),
	}

	candidates := f.Apply(instruments, latest)
	require.Len(t, candidates, 1)
	assert.Equal(t, "7203", candidates[0].Code)
	assert.Equal(t, "トヨタ自動車", candidates[0].CompanyName)
	assert.Equal(t, "プライム（内国株式）", candidates[0].Market)
	assert.Equal(t, 250.0, candidates[0].LatestPrice)
}

func TestApplyKeepsPricedInstrumentMissingFromDirectory(t *testing.T) {
	f := Filter{Segments: []string{"プライム"}, MinPrice: 100, MaxPrice: 600}
	instruments := []market.Instrument{
		{Code: "10010", DisplayName: "A", MarketSegmentName: "プライム"},
	}
	latest := map[string]market.Bar{
		"1001": snapshotBar("1001", 200),
		"9999": snapshotBar("9999", 300), // not in the directory at all
	}

	candidates := f.Apply(instruments, latest)
	require.Len(t, candidates, 2)

	var orphan market.Candidate
	for _, c := range candidates {
		if c.Code == "9999" {
			orphan = c
		}
	}
	assert.Equal(t, "9999", orphan.Code)
	assert.Empty(t, orphan.CompanyName)
	assert.Empty(t, orphan.Market)
	assert.Equal(t, 300.0, orphan.LatestPrice)
}

func TestApplyExcludesWrongSegmentEvenWhenPriced(t *testing.T) {
	f := Filter{Segments: []string{"プライム"}, MinPrice: 100, MaxPrice: 600}
	instruments := []market.Instrument{
		{Code: "10010", DisplayName: "A", MarketSegmentName: "TOKYO PRO MARKET"},
	}
	latest := map[string]market.Bar{
		"1001": snapshotBar("1001", 200),
	}

	assert.Empty(t, f.Apply(instruments, latest),
		"a directory instrument outside the allowed segments stays excluded")
}
