package jquants

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/yshimizu/kabuscan/internal/market"
)

// DailyQuote is the vendor shape of one daily bar. The price fields arrive
// under abbreviated keys.
type DailyQuote struct {
	Code   string  `json:"Code"`
	Date   string  `json:"Date"` // YYYY-MM-DD
	Open   float64 `json:"O"`
	High   float64 `json:"H"`
	Low    float64 `json:"L"`
	Close  float64 `json:"C"`
	Volume int64   `json:"V"`
}

// Bar normalizes the vendor fields into the canonical shape. A quote whose
// date does not parse yields a zero-date Bar; callers that care filter it.
func (q DailyQuote) Bar() market.Bar {
	date, _ := time.Parse(market.DateFormat, q.Date)
	return market.Bar{
		InstrumentCode: q.Code,
		Date:           date,
		Open:           q.Open,
		High:           q.High,
		Low:            q.Low,
		Close:          q.Close,
		Volume:         q.Volume,
	}
}

// DailyQuotesByDate fetches the market-wide daily bar set for one calendar
// date. A "no data for this date" response surfaces as ErrNoData so the
// trading-day resolver can distinguish it from transient failures.
func (c *Client) DailyQuotesByDate(ctx context.Context, date time.Time) ([]DailyQuote, error) {
	params := url.Values{}
	params.Set("date", date.Format(queryDateFormat))

	quotes, err := c.fetchQuotes(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch daily quotes for %s: %w", date.Format(market.DateFormat), err)
	}
	return quotes, nil
}

// DailyQuotesByCode fetches one instrument's daily bars for a date range.
// "Not found" means the instrument has no data in the window and returns an
// empty slice, not an error.
func (c *Client) DailyQuotesByCode(ctx context.Context, code string, from, to time.Time) ([]DailyQuote, error) {
	params := url.Values{}
	params.Set("code", code)
	params.Set("from", from.Format(queryDateFormat))
	params.Set("to", to.Format(queryDateFormat))

	quotes, err := c.fetchQuotes(ctx, params)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch daily quotes for %s: %w", code, err)
	}
	return quotes, nil
}

// fetchQuotes pulls all pages of /prices/daily_quotes for the given params.
func (c *Client) fetchQuotes(ctx context.Context, params url.Values) ([]DailyQuote, error) {
	var quotes []DailyQuote

	for {
		body, err := c.get(ctx, "/prices/daily_quotes", params)
		if err != nil {
			return nil, err
		}

		var page []DailyQuote
		if err := decodeList(body, "daily_quotes", &page); err != nil {
			return nil, err
		}
		quotes = append(quotes, page...)

		next := gjson.GetBytes(body, "pagination_key").String()
		if next == "" {
			return quotes, nil
		}
		params.Set("pagination_key", next)
	}
}
