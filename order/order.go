package order

import "time"

type Side int

const (
	Buy  Side = 0
	Sell Side = 1
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

type Outcome int

const (
	Yes Outcome = iota
	No
)

func (o Outcome) String() string {
	if o == No {
		return "NO"
	}
	return "YES"
}

const (
	// All orders carry the platform's fixed 2% fee.
	feeRateBps = 200

	// Orders expire 24 hours after they are built; resubmission regenerates
	// both salt and expiration, so retries never collide.
	orderTTL = 24 * time.Hour

	// Plain externally-owned-account signature.
	signatureTypeEOA = 0

	// Zero taker address marks an open order anyone may fill.
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// Market carries the identifying fields of a market an order binds to.
// All of them are opaque to the client and passed through unchanged.
type Market struct {
	ConditionID string
	YesTokenID  string
	NoTokenID   string
	Collateral  string
	Oracle      string
}

// TokenID returns the outcome-token id for the chosen side of the market.
func (m Market) TokenID(outcome Outcome) string {
	if outcome == No {
		return m.NoTokenID
	}
	return m.YesTokenID
}

// Intent is one user's trade request, alive for the duration of a single
// submission. Amount is the raw collateral-denominated input string; it is
// validated before any network interaction happens.
type Intent struct {
	Market  Market
	Side    Side
	Outcome Outcome
	Amount  string
	Price   float64
}

// Order is the canonical unsigned payload. The signature travels next to it
// in the submission body, never inside it.
type Order struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    int64  `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    int    `json:"feeRateBps"`
	Side          int    `json:"side"`
	SignatureType int    `json:"signatureType"`
}

// Receipt is the successful outcome of one submission.
type Receipt struct {
	OrderHash string
	Order     Order
}
