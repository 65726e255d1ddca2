package market

// VoucherAuthorization is one voucher charge inside a payment plan.
type VoucherAuthorization struct {
	VoucherID int64
	Amount    Price
}

// PlanVoucherPayment selects multi-use vouchers matching the total's
// currency and charges them in order until the total is covered, clamping
// the final authorization to the exact remainder. It fails with a
// *PaymentError when no voucher applies or the combined balance falls short.
func PlanVoucherPayment(vouchers []Voucher, total Price) ([]VoucherAuthorization, error) {
	if len(vouchers) == 0 {
		return nil, &PaymentError{Reason: "no vouchers available"}
	}

	usable := make([]Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		if v.IsMultiUse() && v.Amount.Code == total.Code {
			usable = append(usable, v)
		}
	}
	if len(usable) == 0 {
		return nil, &PaymentError{Reason: "no " + total.Code + " vouchers available"}
	}

	var authorizations []VoucherAuthorization
	running := Price{Code: total.Code, Decimals: total.Decimals}
	for _, v := range usable {
		running.MinorUnits += v.Amount.MinorUnits
		amount := v.Amount
		if running.MinorUnits >= total.MinorUnits {
			amount.MinorUnits -= running.MinorUnits - total.MinorUnits
			authorizations = append(authorizations, VoucherAuthorization{VoucherID: v.ID, Amount: amount})
			return authorizations, nil
		}
		authorizations = append(authorizations, VoucherAuthorization{VoucherID: v.ID, Amount: amount})
	}

	return nil, &PaymentError{Reason: "insufficient voucher balance"}
}
