package enums

import "fmt"

// PaymentStatus tracks settlement of an order independently of fulfillment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
}

var paymentStatusLabels = map[PaymentStatus]string{
	PaymentStatusPending: "Payment Pending",
	PaymentStatusPaid:    "Paid",
	PaymentStatusFailed:  "Payment Failed",
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// Label returns the customer-facing name of the payment status.
func (p PaymentStatus) Label() string {
	if label, ok := paymentStatusLabels[p]; ok {
		return label
	}
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
