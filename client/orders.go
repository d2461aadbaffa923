package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"predictterm/logger"
	"predictterm/order"
)

// OrdersClient talks to the order submission service.
type OrdersClient struct {
	*Client
}

func NewOrdersClient(baseURL string, log *logger.Logger) *OrdersClient {
	return &OrdersClient{Client: New(baseURL, log)}
}

// submitRequest carries the unsigned order next to its detached signature.
type submitRequest struct {
	Order     order.Order `json:"order"`
	Signature string      `json:"signature"`
}

type submitResponse struct {
	Order struct {
		OrderHash string `json:"orderHash"`
	} `json:"order"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Submit posts {order, signature} and returns the backend's order hash. A
// non-2xx response becomes *order.RejectionError carrying the backend's
// message; transport failures pass through untyped.
func (c *OrdersClient) Submit(ctx context.Context, ord order.Order, signature string) (string, error) {
	var resp submitResponse
	if err := c.postJSON(ctx, "/orders", submitRequest{Order: ord, Signature: signature}, &resp); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			var body errorResponse
			if json.Unmarshal(apiErr.Body, &body) == nil && body.Message != "" {
				return "", &order.RejectionError{Reason: body.Message}
			}
			return "", &order.RejectionError{Reason: fmt.Sprintf("http %d", apiErr.Status)}
		}
		return "", err
	}

	if resp.Order.OrderHash == "" {
		return "", errors.New("submission response missing order hash")
	}
	return resp.Order.OrderHash, nil
}

// UserOrders lists the open and historical orders of one account.
func (c *OrdersClient) UserOrders(ctx context.Context, address string) ([]UserOrder, error) {
	var resp struct {
		Orders []UserOrder `json:"orders"`
	}
	if err := c.get(ctx, "/users/"+address+"/orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// UserBalances lists one account's token balances.
func (c *OrdersClient) UserBalances(ctx context.Context, address string) ([]UserBalance, error) {
	var resp struct {
		Balances []UserBalance `json:"balances"`
	}
	if err := c.get(ctx, "/users/"+address+"/balances", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}
