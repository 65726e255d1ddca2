package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds configuration for the marketplace gateway.
type Config struct {
	// BaseURL is the root of the mobile API.
	BaseURL string `mapstructure:"base_url" default:""`
	// Token is the bearer token of an already-authenticated session.
	// Credential bootstrapping and refresh live outside this process.
	Token string `mapstructure:"token" default:""`
	// Latitude and Longitude anchor favorites queries, like the mobile app does.
	Latitude  float64 `mapstructure:"latitude" default:"43.7729744"`
	Longitude float64 `mapstructure:"longitude" default:"-79.2576479"`
	// Radius is the search radius in kilometers (the app caps it at 30).
	Radius int `mapstructure:"radius" default:"30"`
	// TimeoutSeconds bounds each request so a dropped request fails fast
	// instead of stalling a poll tick.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
}

// Validate checks the fields a live gateway cannot run without.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("market base_url is required")
	}
	if c.Token == "" {
		return errors.New("market token is required")
	}
	return nil
}

// HTTPClient is a thin Client implementation over the mobile API. It maps
// wire records to domain records and response states to the error taxonomy;
// it deliberately carries no credential-refresh or anti-bot machinery.
type HTTPClient struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates a gateway from config.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger: logger,
	}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept-Language", "en-US")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-DD-B") != "":
		c.logger.Debug("Challenge response", zap.ByteString("body", raw))
		return ErrChallenge
	default:
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *HTTPClient) origin() map[string]float64 {
	return map[string]float64{"latitude": c.cfg.Latitude, "longitude": c.cfg.Longitude}
}

// Favorites implements Client. A page shorter than pageSize is terminal.
func (c *HTTPClient) Favorites(ctx context.Context, pageSize int) ([]*Favorite, error) {
	var favorites []*Favorite
	for page := 0; ; page++ {
		var out struct {
			MobileBucket struct {
				Items []favoriteDTO `json:"items"`
			} `json:"mobile_bucket"`
		}
		err := c.post(ctx, "/discover/v1/bucket", map[string]any{
			"origin": c.origin(),
			"radius": float64(c.cfg.Radius),
			"paging": map[string]int{"page": page, "size": pageSize},
			"bucket": map[string]string{"filler_type": "Favorites"},
		}, &out)
		if err != nil {
			return nil, err
		}

		for _, dto := range out.MobileBucket.Items {
			fave, err := dto.toFavorite()
			if err != nil {
				c.logger.Debug("Skipping unparseable favorite", zap.Error(err))
				continue
			}
			favorites = append(favorites, fave)
		}
		if len(out.MobileBucket.Items) < pageSize {
			return favorites, nil
		}
	}
}

// GetItem implements Client.
func (c *HTTPClient) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	var dto itemDTO
	err := c.post(ctx, fmt.Sprintf("/item/v8/%d", itemID), map[string]any{"origin": c.origin()}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toItem()
}

// Reserve implements Client. The upstream downgrade states
// (INSUFFICIENT_STOCK, OVER_USER_WINDOW_LIMIT for an oversized request) are
// resolved here with a single re-attempt at the item's current MaxQuantity.
func (c *HTTPClient) Reserve(ctx context.Context, itemID int64, quantity int) (*Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %d", quantity)
	}
	return c.reserve(ctx, itemID, quantity, true)
}

func (c *HTTPClient) reserve(ctx context.Context, itemID int64, quantity int, allowDowngrade bool) (*Reservation, error) {
	var out struct {
		State string         `json:"state"`
		Order reservationDTO `json:"order"`
	}
	err := c.post(ctx, fmt.Sprintf("/order/v7/create/%d", itemID), map[string]int{"item_count": quantity}, &out)
	if err != nil {
		return nil, err
	}

	switch out.State {
	case "SUCCESS":
		return out.Order.toReservation()
	case "SALE_CLOSED":
		return nil, ErrSaleClosed
	case "SOLD_OUT":
		return nil, ErrSoldOut
	case "USER_BLOCKED":
		if item, err := c.GetItem(ctx, itemID); err == nil && item.BlockedUntil != nil {
			c.logger.Error("Reservation blocked",
				zap.Int64("item_id", itemID),
				zap.Time("blocked_until", *item.BlockedUntil))
		}
		return nil, ErrReservationBlocked
	case "INSUFFICIENT_STOCK", "OVER_USER_WINDOW_LIMIT":
		item, err := c.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if out.State == "OVER_USER_WINDOW_LIMIT" && quantity <= item.PurchaseLimit {
			return nil, ErrLimitExceeded
		}
		if !allowDowngrade || item.MaxQuantity() == 0 || item.MaxQuantity() >= quantity {
			if out.State == "OVER_USER_WINDOW_LIMIT" {
				return nil, ErrLimitExceeded
			}
			return nil, ErrSoldOut
		}
		c.logger.Warn("Downgrading reservation quantity",
			zap.Int64("item_id", itemID),
			zap.Int("requested", quantity),
			zap.Int("max", item.MaxQuantity()))
		return c.reserve(ctx, itemID, item.MaxQuantity(), false)
	default:
		return nil, &APIError{State: out.State}
	}
}

// AbortReservation implements Client.
func (c *HTTPClient) AbortReservation(ctx context.Context, reservationID string) error {
	var out struct {
		State string `json:"state"`
	}
	err := c.post(ctx, fmt.Sprintf("/order/v7/%s/abort", reservationID), map[string]int{"cancel_reason_id": 1}, &out)
	if err != nil {
		return err
	}
	switch out.State {
	case "SUCCESS":
		return nil
	case "ALREADY_ABORTED":
		return ErrAlreadyAborted
	case "CANCEL_DEADLINE_EXCEEDED":
		return ErrCancelDeadline
	default:
		return &APIError{State: out.State}
	}
}

// Pay implements Client: plans voucher authorizations for the reservation
// total, submits them, and polls until every payment reaches a terminal
// state. A FAILED payment or an unplannable total yields *PaymentError.
func (c *HTTPClient) Pay(ctx context.Context, r *Reservation) ([]Payment, error) {
	vouchers, err := c.ActiveVouchers(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := PlanVoucherPayment(vouchers, r.TotalPrice)
	if err != nil {
		return nil, err
	}

	authorizations := make([]map[string]any, 0, len(plan))
	for _, auth := range plan {
		authorizations = append(authorizations, map[string]any{
			"authorization_payload": map[string]any{
				"voucher_id":          strconv.FormatInt(auth.VoucherID, 10),
				"save_payment_method": false,
				"type":                "voucherAuthorizationPayload",
			},
			"payment_provider": "VOUCHER",
			"amount": map[string]any{
				"code":        auth.Amount.Code,
				"minor_units": auth.Amount.MinorUnits,
				"decimals":    auth.Amount.Decimals,
			},
		})
	}

	var out struct {
		Payments []paymentDTO `json:"payments"`
	}
	err = c.post(ctx, fmt.Sprintf("/order/v7/%s/pay", r.ID), map[string]any{"authorizations": authorizations}, &out)
	if err != nil {
		return nil, err
	}
	payments := toPayments(out.Payments)

	for pending(payments) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
		var status struct {
			Payments []paymentDTO `json:"payments"`
		}
		if err := c.post(ctx, fmt.Sprintf("/order/v7/%s/payment_status", r.ID), nil, &status); err != nil {
			return nil, err
		}
		payments = toPayments(status.Payments)
	}

	for _, p := range payments {
		if p.State == PaymentFailed {
			return payments, &PaymentError{Reason: p.FailureReason}
		}
	}
	return payments, nil
}

func pending(payments []Payment) bool {
	for _, p := range payments {
		if p.State == PaymentAuthorizationInitiated {
			return true
		}
	}
	return false
}

// GetOrder implements Client.
func (c *HTTPClient) GetOrder(ctx context.Context, orderID string) (map[string]any, error) {
	var out map[string]any
	err := c.post(ctx, fmt.Sprintf("/order/v7/%s/status", orderID), nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetFavorite implements Client.
func (c *HTTPClient) SetFavorite(ctx context.Context, itemID int64, favorite bool) error {
	return c.post(ctx, fmt.Sprintf("/user/favorite/v1/%d/update", itemID),
		map[string]bool{"is_favorite": favorite}, nil)
}

// ActiveVouchers implements Client.
func (c *HTTPClient) ActiveVouchers(ctx context.Context) ([]Voucher, error) {
	var out struct {
		Vouchers []voucherDTO `json:"vouchers"`
	}
	if err := c.post(ctx, "/voucher/v4/active", nil, &out); err != nil {
		return nil, err
	}
	vouchers := make([]Voucher, 0, len(out.Vouchers))
	for _, dto := range out.Vouchers {
		vouchers = append(vouchers, dto.toVoucher())
	}
	return vouchers, nil
}
