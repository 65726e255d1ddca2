package mocks

import (
	"context"

	"bag-sniper/feature/market"

	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of market.Client
type Client struct {
	mock.Mock
}

func (m *Client) Favorites(ctx context.Context, pageSize int) ([]*market.Favorite, error) {
	args := m.Called(ctx, pageSize)
	if faves, ok := args.Get(0).([]*market.Favorite); ok {
		return faves, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) GetItem(ctx context.Context, itemID int64) (*market.Item, error) {
	args := m.Called(ctx, itemID)
	if item, ok := args.Get(0).(*market.Item); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) Reserve(ctx context.Context, itemID int64, quantity int) (*market.Reservation, error) {
	args := m.Called(ctx, itemID, quantity)
	if r, ok := args.Get(0).(*market.Reservation); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) AbortReservation(ctx context.Context, reservationID string) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *Client) Pay(ctx context.Context, r *market.Reservation) ([]market.Payment, error) {
	args := m.Called(ctx, r)
	if payments, ok := args.Get(0).([]market.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) GetOrder(ctx context.Context, orderID string) (map[string]any, error) {
	args := m.Called(ctx, orderID)
	if order, ok := args.Get(0).(map[string]any); ok {
		return order, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) SetFavorite(ctx context.Context, itemID int64, favorite bool) error {
	args := m.Called(ctx, itemID, favorite)
	return args.Error(0)
}

func (m *Client) ActiveVouchers(ctx context.Context) ([]market.Voucher, error) {
	args := m.Called(ctx)
	if vouchers, ok := args.Get(0).([]market.Voucher); ok {
		return vouchers, args.Error(1)
	}
	return nil, args.Error(1)
}
