package enums

import "fmt"

// InventoryLogType classifies a stock movement.
type InventoryLogType string

const (
	InventoryLogIn         InventoryLogType = "in"
	InventoryLogOut        InventoryLogType = "out"
	InventoryLogAdjustment InventoryLogType = "adjustment"
)

var validInventoryLogTypes = []InventoryLogType{
	InventoryLogIn,
	InventoryLogOut,
	InventoryLogAdjustment,
}

// IsValid reports whether the value is a known InventoryLogType.
func (t InventoryLogType) IsValid() bool {
	for _, candidate := range validInventoryLogTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryLogType converts raw input into an InventoryLogType.
func ParseInventoryLogType(value string) (InventoryLogType, error) {
	for _, candidate := range validInventoryLogTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory log type %q", value)
}
