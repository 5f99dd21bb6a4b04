// Package payment holds the contract the workflow expects from a payment
// gateway and the sandbox adapter used outside production.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrGatewayUnavailable is returned when the adapter cannot open an order.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// OrderRequest describes an order to open with the gateway.
type OrderRequest struct {
	Reference string
	Amount    int64
	Currency  string
	Metadata  map[string]string
}

// Order is what the gateway returns for an opened order.
type Order struct {
	Reference      string `json:"reference"`
	GatewayOrderID string `json:"gateway_order_id"`
	CheckoutURL    string `json:"checkout_url,omitempty"`
}

// Gateway opens payment orders. Settlement arrives later as a signed callback.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// CallbackType enumerates the callbacks a gateway delivers.
type CallbackType string

const (
	CallbackSucceeded CallbackType = "payment.succeeded"
	CallbackFailed    CallbackType = "payment.failed"
	CallbackCancelled CallbackType = "payment.cancelled"
)

// Callback is the webhook body the gateway posts for an order.
type Callback struct {
	Type           CallbackType `json:"type" validate:"required,oneof=payment.succeeded payment.failed payment.cancelled"`
	OrderRef       string       `json:"order_ref" validate:"required"`
	GatewayOrderID string       `json:"gateway_order_id"`
	Reason         string       `json:"reason,omitempty"`
}

// SandboxGateway accepts every order and never talks to a network. Orders are
// remembered so tests and local tooling can inspect them.
type SandboxGateway struct {
	baseURL string

	mu     sync.Mutex
	orders map[string]Order
	fail   error
}

// NewSandboxGateway builds a sandbox adapter whose checkout URLs live under baseURL.
func NewSandboxGateway(baseURL string) *SandboxGateway {
	if baseURL == "" {
		baseURL = "https://sandbox.payments.local"
	}
	return &SandboxGateway{baseURL: strings.TrimRight(baseURL, "/"), orders: make(map[string]Order)}
}

// FailWith makes subsequent CreateOrder calls fail with err. nil restores success.
func (g *SandboxGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

// CreateOrder implements Gateway.
func (g *SandboxGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("order reference required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("order amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, g.fail)
	}
	if existing, ok := g.orders[req.Reference]; ok {
		return &existing, nil
	}

	id := "sbx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	order := Order{
		Reference:      req.Reference,
		GatewayOrderID: id,
		CheckoutURL:    fmt.Sprintf("%s/checkout/%s", g.baseURL, id),
	}
	g.orders[req.Reference] = order
	return &order, nil
}

// Lookup returns a previously created order.
func (g *SandboxGateway) Lookup(reference string) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[reference]
	return order, ok
}
