package bot

import (
	"context"
	"testing"

	"bag-sniper/feature/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func snipeTarget(id int64) *market.Item {
	return &market.Item{Favorite: market.Favorite{ID: id, Name: "Bakery", Tag: market.TagCheckAgainLater}}
}

func TestSnipe_HoldsWhenStockAppears(t *testing.T) {
	client := newMockClient()
	client.On("GetItem", mock.Anything, int64(1)).Return(sellingItem(1, 2, 0), nil).Once()
	client.On("Reserve", mock.Anything, int64(1), 2).Return(reservation("res-1", 1, 2), nil).Once()

	b, fs := newTestBot(client, testConfig())
	res, err := b.Snipe(context.Background(), snipeTarget(1))

	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 1, b.heldCount(1))
	assert.Equal(t, 3, b.snipeBudget(), "an early hit leaves the budget alone")
	_, ok := fs.find("del-scheduled-snipe-1")
	assert.True(t, ok, "the registry entry is always aged out")
	client.AssertExpectations(t)
}

func TestSnipe_WidensBudgetOnFinalAttempt(t *testing.T) {
	client := newMockClient()
	unchanged := &market.Item{Favorite: market.Favorite{ID: 1, Tag: market.TagCheckAgainLater}}
	client.On("GetItem", mock.Anything, int64(1)).Return(unchanged, nil).Twice()
	client.On("GetItem", mock.Anything, int64(1)).Return(sellingItem(1, 1, 0), nil).Once()
	client.On("Reserve", mock.Anything, int64(1), 1).Return(reservation("res-1", 1, 1), nil).Once()

	b, _ := newTestBot(client, testConfig())
	res, err := b.Snipe(context.Background(), snipeTarget(1))

	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 4, b.snipeBudget(), "landing on the last attempt widens the budget")
	client.AssertExpectations(t)
}

func TestSnipe_UnexpectedStateStops(t *testing.T) {
	client := newMockClient()
	soldOut := &market.Item{Favorite: market.Favorite{ID: 1, Tag: market.TagSoldOut}}
	client.On("GetItem", mock.Anything, int64(1)).Return(soldOut, nil).Once()

	b, _ := newTestBot(client, testConfig())
	res, err := b.Snipe(context.Background(), snipeTarget(1))

	assert.NoError(t, err)
	assert.Nil(t, res, "a changed but unsellable state ends the snipe")
	client.AssertExpectations(t)
}

func TestSnipe_UnchangedExhaustsBudget(t *testing.T) {
	client := newMockClient()
	unchanged := &market.Item{Favorite: market.Favorite{ID: 1, Tag: market.TagCheckAgainLater}}
	client.On("GetItem", mock.Anything, int64(1)).Return(unchanged, nil).Times(3)

	b, _ := newTestBot(client, testConfig())
	res, err := b.Snipe(context.Background(), snipeTarget(1))

	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 3, b.snipeBudget())
	client.AssertExpectations(t)
}

func TestSnipe_ConflictingCleanupFails(t *testing.T) {
	client := newMockClient()
	b, fs := newTestBot(client, testConfig())
	fs.failIDs = map[string]error{"del-scheduled-snipe-1": assert.AnError}

	_, err := b.Snipe(context.Background(), snipeTarget(1))

	assert.Error(t, err, "two armed snipes for one item is a defect")
	client.AssertExpectations(t)
}

func TestSnipe_FetchErrorPropagates(t *testing.T) {
	client := newMockClient()
	client.On("GetItem", mock.Anything, int64(1)).Return(nil, assert.AnError).Once()

	b, _ := newTestBot(client, testConfig())
	_, err := b.Snipe(context.Background(), snipeTarget(1))

	assert.Error(t, err)
	client.AssertExpectations(t)
}
