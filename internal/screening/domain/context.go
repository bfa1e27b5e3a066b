package domain

import "github.com/bwmarrin/snowflake"

type ContextType string

const (
	ContextGeneral ContextType = "general"
	ContextEvent   ContextType = "event"
	ContextVenue   ContextType = "venue"
)

// Context is where a submission is being considered. Exactly one of
// GeneralContext, EventContext or VenueContext.
type Context interface {
	Type() ContextType
	isContext()
}

type GeneralContext struct{}

type EventContext struct {
	EventID snowflake.ID
}

type VenueContext struct {
	VenueID snowflake.ID
}

func (GeneralContext) Type() ContextType { return ContextGeneral }
func (EventContext) Type() ContextType   { return ContextEvent }
func (VenueContext) Type() ContextType   { return ContextVenue }

func (GeneralContext) isContext() {}
func (EventContext) isContext()   {}
func (VenueContext) isContext()   {}

// ContextFromColumns rebuilds a Context from its stored columns and rejects
// any combination that does not describe exactly one context.
func ContextFromColumns(contextType ContextType, eventID, venueID *snowflake.ID) (Context, error) {
	switch contextType {
	case ContextGeneral:
		if eventID != nil || venueID != nil {
			return nil, ErrInvalidContext
		}
		return GeneralContext{}, nil
	case ContextEvent:
		if eventID == nil || *eventID == 0 || venueID != nil {
			return nil, ErrInvalidContext
		}
		return EventContext{EventID: *eventID}, nil
	case ContextVenue:
		if venueID == nil || *venueID == 0 || eventID != nil {
			return nil, ErrInvalidContext
		}
		return VenueContext{VenueID: *venueID}, nil
	default:
		return nil, ErrInvalidContext
	}
}

// ContextColumns is the inverse of ContextFromColumns.
func ContextColumns(c Context) (ContextType, *snowflake.ID, *snowflake.ID) {
	switch v := c.(type) {
	case EventContext:
		id := v.EventID
		return ContextEvent, &id, nil
	case VenueContext:
		id := v.VenueID
		return ContextVenue, nil, &id
	default:
		return ContextGeneral, nil, nil
	}
}

// ParseContext builds a Context from request fields.
func ParseContext(raw ContextInput) (Context, error) {
	var eventID, venueID *snowflake.ID
	if raw.EventID != "" {
		id, err := snowflake.ParseString(raw.EventID)
		if err != nil || id == 0 {
			return nil, ErrInvalidContext
		}
		eventID = &id
	}
	if raw.VenueID != "" {
		id, err := snowflake.ParseString(raw.VenueID)
		if err != nil || id == 0 {
			return nil, ErrInvalidContext
		}
		venueID = &id
	}
	contextType := raw.Type
	if contextType == "" {
		contextType = ContextGeneral
	}
	return ContextFromColumns(contextType, eventID, venueID)
}

type ContextInput struct {
	Type    ContextType `json:"type"`
	EventID string      `json:"event_id,omitempty"`
	VenueID string      `json:"venue_id,omitempty"`
}
