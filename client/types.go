package client

import (
	"strconv"
	"strings"

	"predictterm/order"
)

// StringFloat64 decodes numeric JSON values the backend quotes as strings.
type StringFloat64 float64

func (sf *StringFloat64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*sf = StringFloat64(f)
	return nil
}

type Market struct {
	ID              string  `json:"id"`
	ConditionID     string  `json:"conditionId"`
	QuestionID      string  `json:"questionId"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Image           string  `json:"image"`
	YesTokenID      string  `json:"yesTokenId"`
	NoTokenID       string  `json:"noTokenId"`
	Collateral      string  `json:"collateral"`
	Oracle          string  `json:"oracle"`
	Status          string  `json:"status"` // ACTIVE, PAUSED, RESOLVED
	YesPrice        float64 `json:"yesPrice"`
	NoPrice         float64 `json:"noPrice"`
	Volume          float64 `json:"volume"`
	Liquidity       float64 `json:"liquidity"`
	CreatedAt       string  `json:"createdAt"`
	ResolvedAt      string  `json:"resolvedAt"`
	ExpirationDate  string  `json:"expirationDate"`
	ResolutionTx    string  `json:"resolutionTx"`
	ResolvedOutcome *int    `json:"resolvedOutcome"`
}

// OrderMarket extracts the identifying fields an order binds to.
func (m Market) OrderMarket() order.Market {
	return order.Market{
		ConditionID: m.ConditionID,
		YesTokenID:  m.YesTokenID,
		NoTokenID:   m.NoTokenID,
		Collateral:  m.Collateral,
		Oracle:      m.Oracle,
	}
}

type PriceLevel struct {
	Price     StringFloat64 `json:"price"`
	Size      StringFloat64 `json:"size"`
	NumOrders int           `json:"numOrders"`
}

type Orderbook struct {
	Market    string       `json:"market"`
	Timestamp int64        `json:"timestamp"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

type Trade struct {
	ID        string        `json:"id"`
	MarketID  string        `json:"marketId"`
	Price     StringFloat64 `json:"price"`
	Amount    StringFloat64 `json:"amount"`
	Side      string        `json:"side"` // "BUY" or "SELL"
	Timestamp string        `json:"timestamp"`
}

type Candle struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type PriceHistory struct {
	Market   string   `json:"market"`
	Interval string   `json:"interval"`
	Data     []Candle `json:"data"`
}

type Category struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type UserOrder struct {
	OrderHash string        `json:"orderHash"`
	Market    string        `json:"market"`
	Side      string        `json:"side"`
	Price     StringFloat64 `json:"price"`
	Size      StringFloat64 `json:"size"`
	Status    string        `json:"status"`
	CreatedAt string        `json:"createdAt"`
}

type UserBalance struct {
	Token   string        `json:"token"`
	Balance StringFloat64 `json:"balance"`
}
