package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentDetails struct {
	Amount   decimal.Decimal
	Currency string
}

// Session is the result of creating a transaction with a provider. Reference
// is the provider's own id: a Stripe checkout session, a PayPal order, a
// JazzCash bill reference or an Easypaisa order.
type Session struct {
	Method        Method
	TransactionID string
	CheckoutURL   string
	Reference     string
}

// Gateway creates a transaction with one payment provider.
type Gateway interface {
	CreateTransaction(ctx context.Context, details PaymentDetails) (*Session, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, details PaymentDetails) (*Session, error)

func (f GatewayFunc) CreateTransaction(ctx context.Context, details PaymentDetails) (*Session, error) {
	return f(ctx, details)
}

// stubGateway simulates a provider: a fixed latency followed by a session
// with a sandbox checkout URL.
type stubGateway struct {
	method      Method
	latency     time.Duration
	checkoutURL string
	reference   func(now time.Time) string
	now         func() time.Time
}

func (g *stubGateway) CreateTransaction(ctx context.Context, details PaymentDetails) (*Session, error) {
	if !details.Amount.IsPositive() {
		return nil, fmt.Errorf("%s: amount must be positive, got %s", g.method, details.Amount)
	}
	if err := sleep(ctx, g.latency); err != nil {
		return nil, err
	}

	now := g.now()
	return &Session{
		Method:        g.method,
		TransactionID: newTransactionID(g.method, now),
		CheckoutURL:   g.checkoutURL,
		Reference:     g.reference(now),
	}, nil
}

// StubGatewayLatency is the simulated provider round trip per method.
var StubGatewayLatency = map[Method]time.Duration{
	Stripe:    1000 * time.Millisecond,
	PayPal:    1200 * time.Millisecond,
	JazzCash:  800 * time.Millisecond,
	Easypaisa: 900 * time.Millisecond,
}

// NewStubGateways returns the simulated provider set. A zero scale disables
// the latency; 1 keeps the simulated timings.
func NewStubGateways(latencyScale float64) map[Method]Gateway {
	scaled := func(m Method) time.Duration {
		return time.Duration(float64(StubGatewayLatency[m]) * latencyScale)
	}

	return map[Method]Gateway{
		Stripe: &stubGateway{
			method:      Stripe,
			latency:     scaled(Stripe),
			checkoutURL: "https://checkout.stripe.com/pay/simulated-session",
			reference:   func(time.Time) string { return "cs_test_" + randomToken(24) },
			now:         time.Now,
		},
		PayPal: &stubGateway{
			method:      PayPal,
			latency:     scaled(PayPal),
			checkoutURL: "https://www.paypal.com/checkoutnow?token=simulated-token",
			reference:   func(time.Time) string { return "PAYID-" + strings.ToUpper(randomToken(13)) },
			now:         time.Now,
		},
		JazzCash: &stubGateway{
			method:      JazzCash,
			latency:     scaled(JazzCash),
			checkoutURL: "https://sandbox.jazzcash.com.pk/CustomerPortal/Transaction/simulated-page",
			reference:   func(now time.Time) string { return fmt.Sprintf("ref_%d", now.UnixMilli()) },
			now:         time.Now,
		},
		Easypaisa: &stubGateway{
			method:      Easypaisa,
			latency:     scaled(Easypaisa),
			checkoutURL: "https://sandbox.easypaisa.com.pk/simulated-checkout",
			reference:   func(now time.Time) string { return fmt.Sprintf("order_%d", now.UnixMilli()) },
			now:         time.Now,
		},
	}
}

// newTransactionID is txn_<provider>_<unix ms>_<suffix>. The suffix keeps ids
// unique when two attempts start in the same millisecond.
func newTransactionID(m Method, now time.Time) string {
	return fmt.Sprintf("txn_%s_%d_%s", m.slug(), now.UnixMilli(), randomToken(8))
}

func randomToken(n int) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(token) {
		n = len(token)
	}
	return token[:n]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
