package payments

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"Stripe", Stripe, false},
		{"paypal", PayPal, false},
		{" JAZZCASH ", JazzCash, false},
		{"easypaisa", Easypaisa, false},
		{"bitcoin", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		got, err := ParseMethod(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownMethod) {
				t.Errorf("%q: expected ErrUnknownMethod, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%q: expected %s, got %s (%v)", tc.in, tc.want, got, err)
		}
	}
}

func TestStubGateways(t *testing.T) {
	gateways := NewStubGateways(0)
	details := PaymentDetails{Amount: decimal.RequireFromString("9.99"), Currency: "USD"}

	tests := []struct {
		method    Method
		txnPrefix string
		reference *regexp.Regexp
		checkout  string
	}{
		{Stripe, "txn_stripe_", regexp.MustCompile(`^cs_test_[0-9a-f]{24}$`), "https://checkout.stripe.com/pay/simulated-session"},
		{PayPal, "txn_paypal_", regexp.MustCompile(`^PAYID-[0-9A-F]{13}$`), "https://www.paypal.com/checkoutnow?token=simulated-token"},
		{JazzCash, "txn_jazzcash_", regexp.MustCompile(`^ref_\d+$`), "https://sandbox.jazzcash.com.pk/CustomerPortal/Transaction/simulated-page"},
		{Easypaisa, "txn_easypaisa_", regexp.MustCompile(`^order_\d+$`), "https://sandbox.easypaisa.com.pk/simulated-checkout"},
	}

	for _, tc := range tests {
		t.Run(string(tc.method), func(t *testing.T) {
			s, err := gateways[tc.method].CreateTransaction(context.Background(), details)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Method != tc.method || s.CheckoutURL != tc.checkout {
				t.Fatalf("unexpected session %+v", s)
			}
			if !regexp.MustCompile(`^` + tc.txnPrefix + `\d+_[0-9a-f]{8}$`).MatchString(s.TransactionID) {
				t.Fatalf("unexpected transaction id %q", s.TransactionID)
			}
			if !tc.reference.MatchString(s.Reference) {
				t.Fatalf("unexpected reference %q", s.Reference)
			}
		})
	}
}

func TestStubGateway_TransactionIDsAreUnique(t *testing.T) {
	gw := NewStubGateways(0)[Stripe]
	details := PaymentDetails{Amount: decimal.NewFromInt(1), Currency: "USD"}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s, err := gw.CreateTransaction(context.Background(), details)
		if err != nil {
			t.Fatal(err)
		}
		if seen[s.TransactionID] {
			t.Fatalf("duplicate transaction id %s", s.TransactionID)
		}
		seen[s.TransactionID] = true
	}
}

func TestStubGateway_RejectsNonPositiveAmount(t *testing.T) {
	gw := NewStubGateways(0)[PayPal]
	if _, err := gw.CreateTransaction(context.Background(), PaymentDetails{Amount: decimal.Zero}); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestStubGateway_HonoursCancellation(t *testing.T) {
	gw := NewStubGateways(1)[Stripe]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := gw.CreateTransaction(ctx, PaymentDetails{Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("cancelled call must not wait out the latency")
	}
}

func TestSimulatedVerifier(t *testing.T) {
	v := &SimulatedVerifier{SuccessRate: 0.9, Rand: always(0.89)}
	got, err := v.Verify(context.Background(), "txn_stripe_1_a", Stripe)
	if err != nil || !got.Success || got.Message != VerifiedMessage {
		t.Fatalf("unexpected result %+v %v", got, err)
	}

	v.Rand = always(0.9)
	got, _ = v.Verify(context.Background(), "txn_stripe_1_a", Stripe)
	if got.Success || got.Message != UnverifiedMessage {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestWebhookCompletion_EarlyDeliveryIsBuffered(t *testing.T) {
	c := NewWebhookCompletion(time.Second)
	c.Deliver("txn_a", true)
	c.Deliver("txn_a", false)

	ok, err := c.Await(context.Background(), &Session{TransactionID: "txn_a"})
	if err != nil || !ok {
		t.Fatalf("expected the first callback to win, got %v %v", ok, err)
	}
}

func TestSignature(t *testing.T) {
	body := []byte(`{"transaction_id":"txn_stripe_1_a","status":"completed"}`)
	sig := Sign("s3cret", body)

	tests := []struct {
		name      string
		secret    string
		signature string
		wantErr   bool
	}{
		{"valid", "s3cret", sig, false},
		{"wrong secret", "other", sig, true},
		{"missing", "s3cret", "", true},
		{"not hex", "s3cret", "zz", true},
		{"unsigned without secret", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(tc.secret, body, tc.signature)
			if tc.wantErr != (err != nil) {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}
