// Package helpers validates and normalizes checkout requests before any
// database work happens.
package helpers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// OrderDetails is the customer-supplied part of a checkout.
type OrderDetails struct {
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	ShippingAddress types.Address       `json:"shipping_address"`
	BillingAddress  types.Address       `json:"billing_address"`
	CustomerNotes   *string             `json:"customer_notes" validate:"omitempty,max=1000"`
	CouponCode      *string             `json:"coupon_code" validate:"omitempty,max=50"`
}

// Normalize trims free text and address fields.
func (d OrderDetails) Normalize() OrderDetails {
	d.PaymentMethod = enums.PaymentMethod(strings.ToLower(strings.TrimSpace(string(d.PaymentMethod))))
	d.ShippingAddress = d.ShippingAddress.Normalize()
	d.BillingAddress = d.BillingAddress.Normalize()
	d.CustomerNotes = trimOptional(d.CustomerNotes)
	d.CouponCode = trimOptional(d.CouponCode)
	if d.CouponCode != nil {
		code := strings.ToUpper(*d.CouponCode)
		d.CouponCode = &code
	}
	return d
}

// ValidateOrderDetails reports every malformed field at once as a
// VALIDATION_ERROR keyed by field path.
func ValidateOrderDetails(d OrderDetails) error {
	details := map[string]string{}
	if !d.PaymentMethod.IsValid() {
		details["payment_method"] = "must be one of credit_card, paypal, bank_transfer, cash_on_delivery"
	}
	if err := validate.Struct(d); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		for _, fe := range errs {
			field := fieldPath(fe.Namespace())
			if _, exists := details[field]; exists {
				continue
			}
			details[field] = message(fe)
		}
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	}
	return "is invalid"
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
