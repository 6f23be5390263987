package types

import "strings"

// Address is the postal snapshot copied onto an order at checkout. It is embedded
// with a shipping_/billing_ column prefix and never references a mutable record.
type Address struct {
	FirstName    string  `json:"first_name" gorm:"column:first_name;size:100;not null" validate:"required,max=100"`
	LastName     string  `json:"last_name" gorm:"column:last_name;size:100;not null" validate:"required,max=100"`
	Company      *string `json:"company,omitempty" gorm:"column:company;size:100" validate:"omitempty,max=100"`
	AddressLine1 string  `json:"address_line_1" gorm:"column:address_line_1;size:255;not null" validate:"required,max=255"`
	AddressLine2 *string `json:"address_line_2,omitempty" gorm:"column:address_line_2;size:255" validate:"omitempty,max=255"`
	City         string  `json:"city" gorm:"column:city;size:100;not null" validate:"required,max=100"`
	State        string  `json:"state" gorm:"column:state;size:100;not null" validate:"required,max=100"`
	PostalCode   string  `json:"postal_code" gorm:"column:postal_code;size:20;not null" validate:"required,max=20"`
	Country      string  `json:"country" gorm:"column:country;size:2;not null" validate:"required,len=2"`
	Phone        *string `json:"phone,omitempty" gorm:"column:phone;size:20" validate:"omitempty,max=20"`
}

// Normalize trims whitespace and uppercases the country code.
func (a Address) Normalize() Address {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Company = trimOptional(a.Company)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.AddressLine2 = trimOptional(a.AddressLine2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Phone = trimOptional(a.Phone)
	return a
}

// FullName joins the first and last names.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
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
