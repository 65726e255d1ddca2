package bot

import (
	"context"
	"testing"

	"bag-sniper/core/sched"
	"bag-sniper/feature/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHold_Success(t *testing.T) {
	client := newMockClient()
	item := sellingItem(1, 3, 2)
	client.On("Reserve", mock.Anything, int64(1), 2).Return(reservation("res-1", 1, 2), nil).Once()

	b, fs := newTestBot(client, testConfig())
	res := b.Hold(context.Background(), item)

	assert.NotNil(t, res)
	assert.Equal(t, 1, b.heldCount(1))
	call, ok := fs.find("catch-reservation-res-1")
	assert.True(t, ok, "a catch is armed for the new hold")
	assert.Equal(t, sched.ErrorOnDuplicate, call.policy)
	client.AssertExpectations(t)
}

func TestHold_BusinessRefusalReturnsNil(t *testing.T) {
	client := newMockClient()
	client.On("Reserve", mock.Anything, int64(1), 3).Return(nil, market.ErrSoldOut).Once()

	b, fs := newTestBot(client, testConfig())
	res := b.Hold(context.Background(), sellingItem(1, 3, 0))

	assert.Nil(t, res)
	assert.Equal(t, 0, b.heldCount(1))
	assert.Empty(t, fs.ids())
	client.AssertExpectations(t)
}

func TestHold_RetriesTransientFailure(t *testing.T) {
	client := newMockClient()
	client.On("Reserve", mock.Anything, int64(1), 2).
		Return(nil, &market.StatusError{StatusCode: 502}).Once()
	client.On("Reserve", mock.Anything, int64(1), 2).
		Return(reservation("res-1", 1, 2), nil).Once()

	b, _ := newTestBot(client, testConfig())
	res := b.Hold(context.Background(), sellingItem(1, 3, 2))

	assert.NotNil(t, res)
	client.AssertExpectations(t)
}

func TestHold_LimitExceededUntracks(t *testing.T) {
	client := newMockClient()
	client.On("Reserve", mock.Anything, int64(1), 2).Return(nil, market.ErrLimitExceeded).Once()
	client.On("SetFavorite", mock.Anything, int64(1), false).Return(nil).Once()

	cfg := testConfig()
	cfg.TrackedItems = "1"
	b, _ := newTestBot(client, cfg)

	res := b.Hold(context.Background(), sellingItem(1, 3, 2))

	assert.Nil(t, res)
	_, tracked := b.trackedLookup(1)
	assert.False(t, tracked)
	client.AssertExpectations(t)
}

func TestCatch_ReReserves(t *testing.T) {
	client := newMockClient()
	old := reservation("res-old", 1, 2)
	client.On("Reserve", mock.Anything, int64(1), 2).Return(reservation("res-new", 1, 2), nil).Once()

	b, fs := newTestBot(client, testConfig())
	b.appendHeld(*old)

	b.Catch(context.Background(), *old)

	held := b.heldFor(1)
	assert.Len(t, held, 1)
	assert.Equal(t, "res-new", held[0].ID, "the expired hold is replaced, not stacked")
	_, ok := fs.find("catch-reservation-res-new")
	assert.True(t, ok)
	client.AssertExpectations(t)
}

func TestCatch_SaleClosedDropsHold(t *testing.T) {
	client := newMockClient()
	old := reservation("res-old", 1, 2)
	client.On("Reserve", mock.Anything, int64(1), 2).Return(nil, market.ErrSaleClosed).Once()

	b, _ := newTestBot(client, testConfig())
	b.appendHeld(*old)

	b.Catch(context.Background(), *old)

	assert.Equal(t, 0, b.heldCount(1))
	client.AssertExpectations(t)
}

func TestCatch_LimitExceededUntracks(t *testing.T) {
	client := newMockClient()
	old := reservation("res-old", 1, 2)
	client.On("Reserve", mock.Anything, int64(1), 2).Return(nil, market.ErrLimitExceeded).Once()
	client.On("SetFavorite", mock.Anything, int64(1), false).Return(nil).Once()

	cfg := testConfig()
	cfg.TrackedItems = "1"
	b, _ := newTestBot(client, cfg)
	b.appendHeld(*old)

	b.Catch(context.Background(), *old)

	assert.Equal(t, 0, b.heldCount(1))
	_, tracked := b.trackedLookup(1)
	assert.False(t, tracked)
	client.AssertExpectations(t)
}

func TestOrder_PaysAndReturnsOrder(t *testing.T) {
	client := newMockClient()
	res := reservation("res-1", 1, 1)
	client.On("Reserve", mock.Anything, int64(1), 1).Return(res, nil).Once()
	client.On("Pay", mock.Anything, res).Return([]market.Payment{{ID: 9, State: market.PaymentCaptured}}, nil).Once()
	client.On("GetOrder", mock.Anything, "res-1").
		Return(map[string]any{"order": map[string]any{"state": "ACTIVE"}}, nil).Once()

	b, _ := newTestBot(client, testConfig())
	order, err := b.Order(context.Background(), sellingItem(1, 1, 0))

	assert.NoError(t, err)
	assert.Equal(t, "ACTIVE", order["state"], "the nested order record is unwrapped")
	client.AssertExpectations(t)
}

func TestOrder_PaymentErrorFallsBackToHold(t *testing.T) {
	client := newMockClient()
	res := reservation("res-1", 1, 1)
	client.On("Reserve", mock.Anything, int64(1), 1).Return(res, nil).Once()
	client.On("Pay", mock.Anything, res).
		Return(nil, &market.PaymentError{Reason: "insufficient voucher balance"}).Once()
	client.On("AbortReservation", mock.Anything, "res-1").Return(nil).Once()
	// The fallback hold re-reserves the same item.
	client.On("Reserve", mock.Anything, int64(1), 1).Return(reservation("res-2", 1, 1), nil).Once()

	b, _ := newTestBot(client, testConfig())
	order, err := b.Order(context.Background(), sellingItem(1, 1, 0))

	assert.NoError(t, err)
	assert.Nil(t, order)
	held := b.heldFor(1)
	assert.Len(t, held, 1)
	assert.Equal(t, "res-2", held[0].ID)
	client.AssertExpectations(t)
}

func TestOrder_BusinessRefusalIsSilentNil(t *testing.T) {
	client := newMockClient()
	client.On("Reserve", mock.Anything, int64(1), 1).Return(nil, market.ErrSaleClosed).Once()

	b, _ := newTestBot(client, testConfig())
	order, err := b.Order(context.Background(), sellingItem(1, 1, 0))

	assert.NoError(t, err)
	assert.Nil(t, order)
	client.AssertExpectations(t)
}

func TestWithRetry_StopsOnBusinessError(t *testing.T) {
	b, _ := newTestBot(newMockClient(), testConfig())

	calls := 0
	_, err := withRetry(context.Background(), b.logger, b.cfg, func() (int, error) {
		calls++
		return 0, market.ErrSoldOut
	})

	assert.ErrorIs(t, err, market.ErrSoldOut)
	assert.Equal(t, 1, calls, "business errors are never retried")
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	b, _ := newTestBot(newMockClient(), testConfig())

	calls := 0
	_, err := withRetry(context.Background(), b.logger, b.cfg, func() (int, error) {
		calls++
		return 0, &market.StatusError{StatusCode: 503}
	})

	var se *market.StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 3, calls)
}

func TestRemoveHeld_KeepsSiblings(t *testing.T) {
	b, _ := newTestBot(newMockClient(), testConfig())
	b.appendHeld(*reservation("res-1", 1, 2))
	b.appendHeld(*reservation("res-2", 1, 1))

	b.removeHeld(1, "res-1")

	held := b.heldFor(1)
	assert.Len(t, held, 1)
	assert.Equal(t, "res-2", held[0].ID)
}
