package webhook

import "strings"

// inboundGuest is the guest sub-object on an inbound booking payload.
type inboundGuest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// inboundData is the booking payload's data object, in either the joined or
// split event shape.
type inboundData struct {
	ID            string       `json:"id"`
	RoomTypeID    string       `json:"room_type_id"`
	RatePlanID    string       `json:"rate_plan_id"`
	Guest         inboundGuest `json:"guest"`
	ArrivalDate   string       `json:"arrival_date"`
	DepartureDate string       `json:"departure_date"`
	TotalPrice    string       `json:"total_price"`
	Currency      string       `json:"currency"`
	Status        string       `json:"status"`
	RevisionID    string       `json:"revision_id"`
	UpdatedAt     string       `json:"updated_at"`
	OTAName       string       `json:"ota_name"`
}

// inboundPayload is the top-level shape of an accepted webhook body. Event
// and EventType together carry the canonical event type, either joined
// ("booking.new") or split ("booking" + "new"). ID/EventID are the
// provider's delivery identifiers, distinct from Data.ID (the booking's
// external reservation id); the documented payload shape leaves both null.
type inboundPayload struct {
	ID         string      `json:"id"`
	EventID    string      `json:"event_id"`
	Event      string      `json:"event"`
	EventType  string      `json:"event_type"`
	PropertyID string      `json:"property_id"`
	Data       inboundData `json:"data"`
}

// deliveryID returns the provider's top-level delivery identifier, if any.
func (p inboundPayload) deliveryID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.EventID
}

// deriveEventType resolves the canonical event_type from the joined or split
// payload shape: "booking.new" and "booking"+"new" both resolve the same way.
func deriveEventType(p inboundPayload) string {
	if strings.Contains(p.Event, ".") || strings.Contains(p.Event, "_") {
		return p.Event
	}
	if p.Event != "" && p.EventType != "" {
		return p.Event + "." + p.EventType
	}
	if p.Event != "" {
		return p.Event
	}
	return p.EventType
}

type dispatchKind int

const (
	dispatchUnknown dispatchKind = iota
	dispatchNew
	dispatchModified
	dispatchCancelled
)

func classifyDispatch(eventType string) dispatchKind {
	switch eventType {
	case "booking.new", "booking_created":
		return dispatchNew
	case "booking.modified", "booking_updated":
		return dispatchModified
	case "booking.cancelled", "booking_cancelled":
		return dispatchCancelled
	default:
		return dispatchUnknown
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
