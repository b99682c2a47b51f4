// Package datatypes defines shared types for events (e.g. webhook event types).
package datatypes

import (
	"errors"
	"fmt"
)

// Event type validation errors.
var (
	ErrInvalidEventType   = errors.New("invalid event type")
	ErrDuplicateEventType = errors.New("duplicate event type")
)

// EventType represents a webhook event type as an enum.
// Use String() to get the string representation for API/database.
type EventType uint16

// Event type constants; string form is given in eventTypeMap.
const (
	LeadCreated EventType = iota
	LeadUpdated
	LeadDeleted
	LeadShared
	LeadRealtorAssigned
	LeadRealtorUnassigned
	LeadPartnerAssigned
	LeadPartnerUnassigned
	LeadBrokerAssigned
	ExchangeAlertCreated
	ExchangeAlertUpdated
	ExchangeAlertDeleted
	ExchangeAlertTriggered
)

// eventTypeMap maps string representations to EventType enums.
// This is the single source of truth for valid event type strings.
var eventTypeMap = map[string]EventType{
	"lead.created":             LeadCreated,
	"lead.updated":             LeadUpdated,
	"lead.deleted":             LeadDeleted,
	"lead.shared":              LeadShared,
	"lead.realtor.assigned":    LeadRealtorAssigned,
	"lead.realtor.unassigned":  LeadRealtorUnassigned,
	"lead.partner.assigned":    LeadPartnerAssigned,
	"lead.partner.unassigned":  LeadPartnerUnassigned,
	"lead.broker.assigned":     LeadBrokerAssigned,
	"exchange.alert.created":   ExchangeAlertCreated,
	"exchange.alert.updated":   ExchangeAlertUpdated,
	"exchange.alert.deleted":   ExchangeAlertDeleted,
	"exchange.alert.triggered": ExchangeAlertTriggered,
}

// reverseEventTypeMap maps EventType enums to string representations.
// Built at init time from eventTypeMap for O(1) lookups.
var reverseEventTypeMap map[EventType]string

func init() {
	reverseEventTypeMap = make(map[EventType]string, len(eventTypeMap))
	for str, eventType := range eventTypeMap {
		reverseEventTypeMap[eventType] = str
	}
}

// String returns the string representation of an EventType.
// Returns empty string for unknown event types.
func (et EventType) String() string {
	return reverseEventTypeMap[et]
}

// MarshalText implements encoding.TextMarshaler so []EventType serializes
// as a JSON string array.
func (et EventType) MarshalText() ([]byte, error) {
	str, ok := reverseEventTypeMap[et]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEventType, uint16(et))
	}
	return []byte(str), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (et *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*et = parsed
	return nil
}

// ParseEventType converts a string to an EventType.
func ParseEventType(s string) (EventType, error) {
	eventType, ok := eventTypeMap[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidEventType, s)
	}
	return eventType, nil
}

// ParseEventTypes converts a slice of strings to EventTypes, rejecting
// unknown and duplicate entries.
func ParseEventTypes(strs []string) ([]EventType, error) {
	if len(strs) == 0 {
		return nil, nil
	}

	seen := make(map[EventType]bool, len(strs))
	eventTypes := make([]EventType, 0, len(strs))
	for _, s := range strs {
		eventType, err := ParseEventType(s)
		if err != nil {
			return nil, err
		}
		if seen[eventType] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEventType, s)
		}
		seen[eventType] = true
		eventTypes = append(eventTypes, eventType)
	}

	return eventTypes, nil
}

// EventTypeStrings converts a slice of EventTypes to their string forms
// (e.g. for a text[] database column).
func EventTypeStrings(eventTypes []EventType) []string {
	if len(eventTypes) == 0 {
		return nil
	}

	strs := make([]string, len(eventTypes))
	for i, et := range eventTypes {
		strs[i] = et.String()
	}
	return strs
}

// ValidEventTypes returns all valid event type strings (for error messages).
func ValidEventTypes() []string {
	strs := make([]string, 0, len(eventTypeMap))
	for s := range eventTypeMap {
		strs = append(strs, s)
	}
	return strs
}
