package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Collateral tokens use 6 decimal places; all amounts are scaled to that.
var microUnit = decimal.NewFromInt(1_000_000)

// parseAmount validates the user-entered collateral amount. It must parse to
// a positive decimal before any network interaction is attempted.
func parseAmount(input string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q is not positive", ErrInvalidAmount, input)
	}
	return d, nil
}

// scaleAmounts converts a collateral amount and a quoted price into integer
// base-unit strings. Both are floored, never rounded up, so the client never
// asks for more collateral than the user authorized.
func scaleAmounts(amount, price decimal.Decimal) (makerAmount, takerAmount string) {
	maker := amount.Mul(microUnit).Floor()
	taker := amount.Div(price).Mul(microUnit).Floor()
	return maker.String(), taker.String()
}

// Build constructs the canonical unsigned order for an intent. The maker is
// the connected account, acting as its own signer; salt and expiration are
// derived from now, so two builds at different instants never collide.
func Build(intent Intent, maker string, now time.Time) (Order, error) {
	amount, err := parseAmount(intent.Amount)
	if err != nil {
		return Order{}, err
	}

	price := decimal.NewFromFloat(intent.Price)
	if !price.IsPositive() || price.GreaterThan(decimal.NewFromInt(1)) {
		return Order{}, fmt.Errorf("%w: price %v out of range", ErrInvalidAmount, intent.Price)
	}

	makerAmount, takerAmount := scaleAmounts(amount, price)
	maker = strings.ToLower(maker)

	return Order{
		Salt:          strconv.FormatInt(now.UnixMilli(), 10),
		Maker:         maker,
		Signer:        maker,
		Taker:         zeroAddress,
		TokenID:       intent.Market.TokenID(intent.Outcome),
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    now.Add(orderTTL).Unix(),
		Nonce:         "0",
		FeeRateBps:    feeRateBps,
		Side:          int(intent.Side),
		SignatureType: signatureTypeEOA,
	}, nil
}
