package bot

import (
	"context"
	"strconv"

	"bag-sniper/feature/market"

	"golang.org/x/sync/singleflight"
)

// itemFetcher deduplicates concurrent item-detail lookups. A tick and a
// firing snipe can ask for the same item at the same instant; one upstream
// call serves both.
type itemFetcher struct {
	client market.Client
	group  singleflight.Group
}

func newItemFetcher(client market.Client) *itemFetcher {
	return &itemFetcher{client: client}
}

func (f *itemFetcher) Get(ctx context.Context, itemID int64) (*market.Item, error) {
	v, err, _ := f.group.Do(strconv.FormatInt(itemID, 10), func() (any, error) {
		return f.client.GetItem(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*market.Item), nil
}
