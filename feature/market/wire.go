package market

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire records for the mobile API, mapped into the domain records in
// models.go. Field sets are reduced to what the bot reasons over.

type tagDTO struct {
	ID      string `json:"id"`
	Variant string `json:"variant"`
}

var wireTags = map[string]Tag{
	"NEW":                   TagNew,
	"HIDDEN_GEM":            TagHiddenGem,
	"POPULAR":               TagPopular,
	"RARE_FIND":             TagRareFind,
	"SELLING_FAST":          TagSellingFast,
	"CHECK_AGAIN_LATER":     TagCheckAgainLater,
	"ENDING_SOON":           TagEndingSoon,
	"NOTHING_TO_SAVE_TODAY": TagNothingToday,
	"SOLD_OUT":              TagSoldOut,
	"X_ITEMS_LEFT":          TagXItemsLeft,
}

func (t tagDTO) toTag() (Tag, error) {
	id := t.ID
	if id == "GENERIC" {
		id = t.Variant
	}
	tag, ok := wireTags[id]
	if !ok {
		return TagNone, fmt.Errorf("unknown tag %q", t.ID)
	}
	return tag, nil
}

type priceDTO struct {
	Code       string `json:"code"`
	MinorUnits int64  `json:"minor_units"`
	Decimals   int    `json:"decimals"`
}

func (p priceDTO) toPrice() Price {
	return Price{Code: p.Code, MinorUnits: p.MinorUnits, Decimals: p.Decimals}
}

type intervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type storeDTO struct {
	StoreName string `json:"store_name"`
	Branch    string `json:"branch"`
	TimeZone  string `json:"store_time_zone"`
}

type favoriteDTO struct {
	Item struct {
		ItemID            json.Number `json:"item_id"`
		Name              string      `json:"name"`
		UserPurchaseLimit int         `json:"user_purchase_limit"`
	} `json:"item"`
	Store          storeDTO     `json:"store"`
	ItemTags       []tagDTO     `json:"item_tags"`
	ItemsAvailable int          `json:"items_available"`
	PickupInterval *intervalDTO `json:"pickup_interval"`
	SoldOutAt      string       `json:"sold_out_at"`
	PurchaseEnd    string       `json:"purchase_end"`
}

// displayName builds the tracked name from store and product, the way the
// app's favorites page titles a listing.
func (d favoriteDTO) displayName() string {
	parts := []string{strings.TrimSpace(d.Store.StoreName)}
	if branch := strings.TrimSpace(d.Store.Branch); branch != "" {
		parts = append(parts, "-", branch)
	}
	itemName := strings.TrimSpace(d.Item.Name)
	if itemName == "" {
		itemName = "Surprise Bag"
	}
	parts = append(parts, "("+itemName+")")
	return strings.Join(parts, " ")
}

func (d favoriteDTO) toFavorite() (*Favorite, error) {
	id, err := strconv.ParseInt(d.Item.ItemID.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("item id: %w", err)
	}

	tags := make([]Tag, 0, len(d.ItemTags))
	for _, t := range d.ItemTags {
		tag, err := t.toTag()
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	tag, err := CollapseTags(tags)
	if err != nil {
		return nil, err
	}
	if tag == TagNone {
		tag = defaultTag
	}

	pickup, err := parseInterval(d.PickupInterval, d.Store.TimeZone)
	if err != nil {
		return nil, err
	}
	soldOutAt, err := parseInstant(d.SoldOutAt)
	if err != nil {
		return nil, err
	}
	purchaseEnd, err := parseInstant(d.PurchaseEnd)
	if err != nil {
		return nil, err
	}
	// The reported purchase_end mirrors the pickup window end; keep it only
	// when it carries new information.
	if purchaseEnd != nil && pickup != nil && pickup.End.Equal(*purchaseEnd) {
		purchaseEnd = nil
	}

	fave := &Favorite{
		ID:             id,
		Name:           d.displayName(),
		Tag:            tag,
		NumAvailable:   d.ItemsAvailable,
		PickupInterval: pickup,
		SoldOutAt:      soldOutAt,
		PurchaseEnd:    purchaseEnd,
	}
	if err := fave.Validate(); err != nil {
		return nil, err
	}
	return fave, nil
}

type itemDTO struct {
	favoriteDTO
	NextSalesWindowPurchaseStart string `json:"next_sales_window_purchase_start"`
	ReservationBlockedUntil      string `json:"reservation_blocked_until"`
}

func (d itemDTO) toItem() (*Item, error) {
	fave, err := d.toFavorite()
	if err != nil {
		return nil, err
	}
	nextDrop, err := parseInstant(d.NextSalesWindowPurchaseStart)
	if err != nil {
		return nil, err
	}
	blockedUntil, err := parseInstant(d.ReservationBlockedUntil)
	if err != nil {
		return nil, err
	}
	return &Item{
		Favorite:      *fave,
		PurchaseLimit: d.Item.UserPurchaseLimit,
		NextDrop:      nextDrop,
		BlockedUntil:  blockedUntil,
	}, nil
}

type reservationDTO struct {
	ID        json.Number `json:"id"`
	ItemID    json.Number `json:"item_id"`
	State     string      `json:"state"`
	OrderLine struct {
		Quantity   int      `json:"quantity"`
		TotalPrice priceDTO `json:"total_price"`
	} `json:"order_line"`
	ReservedAt string `json:"reserved_at"`
}

func (d reservationDTO) toReservation() (*Reservation, error) {
	itemID, err := strconv.ParseInt(d.ItemID.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("item id: %w", err)
	}
	// reserved_at arrives without a zone marker but is UTC.
	reservedAt, err := parseInstant(d.ReservedAt + "Z")
	if err != nil {
		return nil, err
	}
	return &Reservation{
		ID:         d.ID.String(),
		ItemID:     itemID,
		Quantity:   d.OrderLine.Quantity,
		TotalPrice: d.OrderLine.TotalPrice.toPrice(),
		ReservedAt: *reservedAt,
	}, nil
}

type paymentDTO struct {
	PaymentID       json.Number `json:"payment_id"`
	PaymentProvider string      `json:"payment_provider"`
	State           string      `json:"state"`
	FailureReason   string      `json:"failure_reason"`
}

func toPayments(dtos []paymentDTO) []Payment {
	payments := make([]Payment, 0, len(dtos))
	for _, d := range dtos {
		id, _ := strconv.ParseInt(d.PaymentID.String(), 10, 64)
		payments = append(payments, Payment{
			ID:            id,
			Provider:      d.PaymentProvider,
			State:         PaymentState(d.State),
			FailureReason: d.FailureReason,
		})
	}
	return payments
}

type voucherDTO struct {
	ID            json.Number `json:"id"`
	Name          string      `json:"name"`
	State         string      `json:"state"`
	Version       string      `json:"version"`
	CurrentAmount *priceDTO   `json:"current_amount"`
}

func (d voucherDTO) toVoucher() Voucher {
	id, _ := strconv.ParseInt(d.ID.String(), 10, 64)
	v := Voucher{
		ID:      id,
		Name:    d.Name,
		State:   VoucherState(d.State),
		Version: VoucherVersion(d.Version),
	}
	if d.CurrentAmount != nil {
		v.Amount = d.CurrentAmount.toPrice()
	}
	return v
}

func parseInstant(s string) (*time.Time, error) {
	if s == "" || s == "Z" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("parsing instant %q: %w", s, err)
	}
	t = t.UTC()
	return &t, nil
}

func parseInterval(d *intervalDTO, tz string) (*Interval, error) {
	if d == nil {
		return nil, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("store time zone: %w", err)
	}
	start, err := time.Parse(time.RFC3339, d.Start)
	if err != nil {
		return nil, fmt.Errorf("parsing interval start %q: %w", d.Start, err)
	}
	end, err := time.Parse(time.RFC3339, d.End)
	if err != nil {
		return nil, fmt.Errorf("parsing interval end %q: %w", d.End, err)
	}
	return &Interval{Start: start.In(loc), End: end.In(loc)}, nil
}
