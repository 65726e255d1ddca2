package market

import (
	"fmt"
	"strings"
	"time"
)

// Tag is the coarse status badge the marketplace attaches to a listing.
// Generic tags describe popularity; state tags describe live availability.
type Tag string

const (
	// TagNone means the upstream reported no tag for the listing.
	TagNone Tag = ""

	TagNew Tag = "New"

	// Generic tags
	TagHiddenGem   Tag = "Hidden gem"
	TagPopular     Tag = "Popular"
	TagRareFind    Tag = "Rare find"
	TagSellingFast Tag = "Selling fast"

	// State tags
	TagCheckAgainLater Tag = "Check again later"
	TagEndingSoon      Tag = "Ending soon"
	TagNothingToday    Tag = "Nothing today"
	TagSoldOut         Tag = "Sold out"
	TagXItemsLeft      Tag = "X left"
)

// IsGeneric reports whether the tag is a popularity badge.
func (t Tag) IsGeneric() bool {
	switch t {
	case TagHiddenGem, TagPopular, TagRareFind, TagSellingFast:
		return true
	}
	return false
}

// IsState reports whether the tag describes live availability.
func (t Tag) IsState() bool {
	switch t {
	case TagCheckAgainLater, TagEndingSoon, TagNothingToday, TagSoldOut, TagXItemsLeft:
		return true
	}
	return false
}

// CollapseTags reduces the tag list the upstream reports to the single tag
// that is retained on a Favorite. "New" is dropped, state tags take priority
// over generic ones, and "X left" is suppressed when "Check again later" or
// "Ending soon" is present. More than one surviving tag is a parse error.
func CollapseTags(tags []Tag) (Tag, error) {
	set := make(map[Tag]struct{}, len(tags))
	for _, t := range tags {
		if t != TagNew {
			set[t] = struct{}{}
		}
	}

	states := make(map[Tag]struct{})
	for t := range set {
		if t.IsState() {
			states[t] = struct{}{}
		}
	}
	if len(states) > 0 {
		set = states
		_, cal := set[TagCheckAgainLater]
		_, es := set[TagEndingSoon]
		if cal || es {
			delete(set, TagXItemsLeft)
		}
	}

	if len(set) > 1 {
		return TagNone, fmt.Errorf("ambiguous tags: %v", tags)
	}
	for t := range set {
		return t, nil
	}
	return TagNone, nil
}

// Interval is a half-open time interval in the store's local zone.
// Both endpoints carry the store's location.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Equal reports whether both intervals describe the same instants.
func (iv *Interval) Equal(other *Interval) bool {
	if iv == nil || other == nil {
		return iv == other
	}
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}

func (iv *Interval) String() string {
	return iv.Start.Format("Mon 15:04") + "-" + iv.End.Format("15:04 MST")
}

// Favorite is a marketplace listing the account follows. It carries the
// fields reported on the favorites page; Item adds live purchase detail.
//
// The zero value of every field except ID and Name is the upstream default;
// IsInteresting keys off that.
type Favorite struct {
	ID             int64
	Name           string
	Tag            Tag
	NumAvailable   int
	PickupInterval *Interval
	SoldOutAt      *time.Time
	PurchaseEnd    *time.Time
}

// defaultTag is what the upstream reports for a listing with no stock and no
// special state.
const defaultTag = TagNothingToday

// IsSelling reports whether the listing currently has purchasable stock,
// derived from the tag when one is present.
func (f *Favorite) IsSelling() bool {
	if f.Tag == TagNone {
		return f.NumAvailable > 0
	}
	return f.Tag == TagEndingSoon || f.Tag == TagXItemsLeft || f.Tag.IsGeneric()
}

// Validate enforces the parse-level invariant that the tag-derived selling
// state agrees with the reported quantity.
func (f *Favorite) Validate() error {
	if f.IsSelling() != (f.NumAvailable > 0) {
		return fmt.Errorf("item %d: tag %q implies selling=%t but %d available",
			f.ID, f.Tag, f.IsSelling(), f.NumAvailable)
	}
	return nil
}

// IsInteresting reports whether any field other than identity carries a
// non-default value.
func (f *Favorite) IsInteresting() bool {
	return f.Tag != defaultTag ||
		f.NumAvailable != 0 ||
		f.PickupInterval != nil ||
		f.SoldOutAt != nil ||
		f.PurchaseEnd != nil
}

// Equal reports whether two favorites describe the same observed state.
func (f *Favorite) Equal(other *Favorite) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.ID == other.ID &&
		f.Name == other.Name &&
		f.Tag == other.Tag &&
		f.NumAvailable == other.NumAvailable &&
		f.PickupInterval.Equal(other.PickupInterval) &&
		timesEqual(f.SoldOutAt, other.SoldOutAt) &&
		timesEqual(f.PurchaseEnd, other.PurchaseEnd)
}

// Diff returns one description per field that changed relative to old.
func (f *Favorite) Diff(old *Favorite) []string {
	changes := []string{}
	if f.Tag != old.Tag {
		changes = append(changes, fmt.Sprintf("tag: %s -> %s", tagLabel(old.Tag), tagLabel(f.Tag)))
	}
	if f.NumAvailable != old.NumAvailable {
		changes = append(changes, fmt.Sprintf("num_available: %d -> %d", old.NumAvailable, f.NumAvailable))
	}
	if !f.PickupInterval.Equal(old.PickupInterval) {
		changes = append(changes, fmt.Sprintf("pickup_interval: %s -> %s", intervalLabel(old.PickupInterval), intervalLabel(f.PickupInterval)))
	}
	if !timesEqual(f.SoldOutAt, old.SoldOutAt) {
		changes = append(changes, fmt.Sprintf("sold_out_at: %s -> %s", timeLabel(old.SoldOutAt), timeLabel(f.SoldOutAt)))
	}
	if !timesEqual(f.PurchaseEnd, old.PurchaseEnd) {
		changes = append(changes, fmt.Sprintf("purchase_end: %s -> %s", timeLabel(old.PurchaseEnd), timeLabel(f.PurchaseEnd)))
	}
	return changes
}

func tagLabel(t Tag) string {
	if t == TagNone {
		return "<none>"
	}
	return string(t)
}

func timeLabel(t *time.Time) string {
	if t == nil {
		return "<unset>"
	}
	return t.Format(time.RFC3339)
}

func intervalLabel(iv *Interval) string {
	if iv == nil {
		return "<unset>"
	}
	return iv.String()
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Item is a Favorite augmented with the live purchase-availability detail
// returned by the per-item endpoint.
type Item struct {
	Favorite

	// PurchaseLimit is the per-user cap on units per sale window; 0 means no limit.
	PurchaseLimit int
	// NextDrop is the predicted start of the next sale window, when known.
	NextDrop *time.Time
	// BlockedUntil is set while the account is temporarily barred from reserving.
	BlockedUntil *time.Time
}

// MaxQuantity is the largest quantity a single reservation may claim.
func (i *Item) MaxQuantity() int {
	if i.PurchaseLimit > 0 && i.PurchaseLimit < i.NumAvailable {
		return i.PurchaseLimit
	}
	return i.NumAvailable
}

// AsFavorite returns a copy of the favorite-level fields, for diffing
// against favorites-page state.
func (i *Item) AsFavorite() *Favorite {
	f := i.Favorite
	return &f
}

// Price is a currency amount in minor units.
type Price struct {
	Code       string
	MinorUnits int64
	Decimals   int
}

// Add returns the sum of two same-currency prices.
func (p Price) Add(other Price) (Price, error) {
	if p.Code != other.Code {
		return Price{}, ErrCurrencyMismatch
	}
	p.MinorUnits += other.MinorUnits
	return p, nil
}

// Sub returns the difference of two same-currency prices.
func (p Price) Sub(other Price) (Price, error) {
	if p.Code != other.Code {
		return Price{}, ErrCurrencyMismatch
	}
	p.MinorUnits -= other.MinorUnits
	return p, nil
}

func (p Price) String() string {
	units := fmt.Sprintf("%0*d", p.Decimals+1, p.MinorUnits)
	cut := len(units) - p.Decimals
	var b strings.Builder
	b.WriteString(units[:cut])
	if p.Decimals > 0 {
		b.WriteByte('.')
		b.WriteString(units[cut:])
	}
	b.WriteByte(' ')
	b.WriteString(p.Code)
	return b.String()
}

// ReservationTTL is how long the marketplace holds a reservation before it
// lapses unpaid.
const ReservationTTL = 4 * time.Minute

// Reservation is a time-limited claim on inventory units. It must be paid
// before it expires or re-reserved ("caught") to keep the hold alive.
type Reservation struct {
	ID         string
	ItemID     int64
	Quantity   int
	TotalPrice Price
	ReservedAt time.Time
}

// ExpiresAt is the instant the reservation lapses.
func (r *Reservation) ExpiresAt() time.Time {
	return r.ReservedAt.Add(ReservationTTL)
}

// PaymentState is the lifecycle state of a single payment authorization.
type PaymentState string

const (
	PaymentAuthorizationInitiated PaymentState = "AUTHORIZATION_INITIATED"
	PaymentAuthorized             PaymentState = "AUTHORIZED"
	PaymentCancelled              PaymentState = "CANCELLED"
	PaymentCaptured               PaymentState = "CAPTURED"
	PaymentFailed                 PaymentState = "FAILED"
	PaymentFullyRefunded          PaymentState = "FULLY_REFUNDED"
)

// Payment is one payment authorization attached to an order.
type Payment struct {
	ID            int64
	Provider      string
	State         PaymentState
	FailureReason string
}

// VoucherVersion distinguishes the two voucher families the marketplace
// issues. Only multi-use vouchers carry a spendable balance.
type VoucherVersion string

const (
	VoucherSingleUse VoucherVersion = "COUNTRY_BASED_SINGLE_USE_VOUCHER"
	VoucherMultiUse  VoucherVersion = "CURRENCY_BASED_MULTI_USE_VOUCHER"
)

// VoucherState is the redemption state of a voucher.
type VoucherState string

const (
	VoucherActive VoucherState = "ACTIVE"
	VoucherUsed   VoucherState = "USED"
)

// Voucher is a pre-paid credit redeemable against reservation cost.
type Voucher struct {
	ID      int64
	Name    string
	State   VoucherState
	Version VoucherVersion
	// Amount is the remaining balance. Only meaningful for multi-use vouchers.
	Amount Price
}

// IsMultiUse reports whether the voucher carries a balance that can cover
// part of an order.
func (v Voucher) IsMultiUse() bool {
	return v.Version == VoucherMultiUse
}
