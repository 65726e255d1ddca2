package market

import "context"

// Client is the gateway to the marketplace's private mobile API.
//
// Implementations own transport concerns (authentication, timeouts,
// transparent credential refresh); callers see domain records and the error
// taxonomy in errors.go. All blocking calls take a context.
type Client interface {
	// Favorites returns every favorited listing, paginating internally with
	// the given page size. A page shorter than pageSize terminates paging.
	Favorites(ctx context.Context, pageSize int) ([]*Favorite, error)

	// GetItem fetches live purchase detail for a single listing.
	GetItem(ctx context.Context, itemID int64) (*Item, error)

	// Reserve claims quantity units of an item. Fails with ErrSaleClosed,
	// ErrSoldOut, ErrReservationBlocked, ErrLimitExceeded or a generic error.
	Reserve(ctx context.Context, itemID int64, quantity int) (*Reservation, error)

	// AbortReservation releases a held reservation. Fails with
	// ErrAlreadyAborted when it was already released.
	AbortReservation(ctx context.Context, reservationID string) error

	// Pay settles a reservation from voucher balance. Fails with
	// *PaymentError when no usable balance covers the total.
	Pay(ctx context.Context, r *Reservation) ([]Payment, error)

	// GetOrder fetches the raw order record for a paid reservation.
	GetOrder(ctx context.Context, orderID string) (map[string]any, error)

	// SetFavorite follows or unfollows a listing.
	SetFavorite(ctx context.Context, itemID int64, favorite bool) error

	// ActiveVouchers lists the account's redeemable vouchers.
	ActiveVouchers(ctx context.Context) ([]Voucher, error)
}
