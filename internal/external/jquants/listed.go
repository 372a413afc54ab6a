package jquants

import (
	"context"
	"fmt"

	"github.com/yshimizu/kabuscan/internal/market"
)

// listedInfo is the vendor shape of one directory entry.
type listedInfo struct {
	Code           string `json:"Code"`
	CompanyName    string `json:"CompanyName"`
	MarketCodeName string `json:"MarketCodeName"`
}

// ListedInfo fetches the full instrument universe with market-segment
// metadata. An empty directory is reported as-is; the caller decides
// whether that is fatal.
func (c *Client) ListedInfo(ctx context.Context) ([]market.Instrument, error) {
	body, err := c.get(ctx, "/listed/info", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch listed info: %w", err)
	}

	var info []listedInfo
	if err := decodeList(body, "info", &info); err != nil {
		return nil, err
	}

	instruments := make([]market.Instrument, 0, len(info))
	for _, item := range info {
		instruments = append(instruments, market.Instrument{
			Code:              item.Code,
			DisplayName:       item.CompanyName,
			MarketSegmentName: item.MarketCodeName,
		})
	}

	c.logger.WithField("count", len(instruments)).Debug("Fetched instrument directory")
	return instruments, nil
}
