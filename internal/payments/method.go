package payments

import (
	"errors"
	"strings"
)

var ErrUnknownMethod = errors.New("unknown payment method")

// Method is one of the supported payment providers.
type Method string

const (
	Stripe    Method = "Stripe"
	PayPal    Method = "PayPal"
	JazzCash  Method = "JazzCash"
	Easypaisa Method = "Easypaisa"
)

var allMethods = []Method{Stripe, PayPal, JazzCash, Easypaisa}

func Methods() []Method {
	return append([]Method(nil), allMethods...)
}

// ParseMethod accepts the display name in any letter case.
func ParseMethod(s string) (Method, error) {
	s = strings.TrimSpace(s)
	for _, m := range allMethods {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", ErrUnknownMethod
}

// slug is the lowercase provider token used inside transaction ids.
func (m Method) slug() string {
	return strings.ToLower(string(m))
}
