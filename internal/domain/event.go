package domain

import "time"

// EventType names a broadcast notification
type EventType string

const (
	EventProductCreated EventType = "product.created"
	EventProductUpdated EventType = "product.updated"
	EventProductDeleted EventType = "product.deleted"
	EventCartCreated    EventType = "cart.created"
	EventCartUpdated    EventType = "cart.updated"
	EventCartCleared    EventType = "cart.cleared"
	EventCartReplaced   EventType = "cart.replaced"
)

// CartAction is the cart mutation an event reports
type CartAction string

const (
	CartActionAdd     CartAction = "add"
	CartActionRemove  CartAction = "remove"
	CartActionUpdate  CartAction = "update"
	CartActionReplace CartAction = "replace"
	CartActionClear   CartAction = "clear"
)

// Event is a fire-and-forget notification about a committed mutation
type Event struct {
	Type       EventType  `json:"type"`
	ProductID  string     `json:"productId,omitempty"`
	CartID     string     `json:"cartId,omitempty"`
	Action     CartAction `json:"action,omitempty"`
	Quantity   *int       `json:"quantity,omitempty"`
	Product    *Product   `json:"product,omitempty"`
	Cart       *Cart      `json:"cart,omitempty"`
	Origin     string     `json:"origin,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// Key returns the id of the aggregate the event is about
func (e Event) Key() string {
	if e.CartID != "" {
		return e.CartID
	}
	return e.ProductID
}
