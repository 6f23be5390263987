package orders

import "github.com/angelmondragon/storefront-backend/pkg/enums"

// Machine is the order lifecycle as a directed edge set. Statuses only move
// along these edges; there are no implicit skips.
type Machine struct {
	edges map[enums.OrderStatus][]enums.OrderStatus
}

// NewMachine returns the storefront order lifecycle.
func NewMachine() *Machine {
	return &Machine{edges: map[enums.OrderStatus][]enums.OrderStatus{
		enums.OrderStatusPending:          {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		enums.OrderStatusConfirmed:        {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
		enums.OrderStatusPreparing:        {enums.OrderStatusReadyForDelivery, enums.OrderStatusCancelled},
		enums.OrderStatusReadyForDelivery: {enums.OrderStatusOutForDelivery, enums.OrderStatusCancelled},
		enums.OrderStatusOutForDelivery:   {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
		enums.OrderStatusDelivered:        {enums.OrderStatusRefunded},
	}}
}

// CanTransition reports whether from -> to is an edge.
func (m *Machine) CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range m.edges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Targets lists the statuses reachable from the given status in one step.
func (m *Machine) Targets(from enums.OrderStatus) []enums.OrderStatus {
	out := make([]enums.OrderStatus, len(m.edges[from]))
	copy(out, m.edges[from])
	return out
}

// Cancellable reports whether the status has a cancel edge.
func (m *Machine) Cancellable(from enums.OrderStatus) bool {
	return m.CanTransition(from, enums.OrderStatusCancelled)
}
