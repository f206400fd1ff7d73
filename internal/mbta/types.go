package mbta

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Resource types carried in the "type" field of a JSON:API resource.
const (
	TypeSchedule   = "schedule"
	TypePrediction = "prediction"
	TypeStop       = "stop"
	TypeTrip       = "trip"
	TypeRoute      = "route"
)

// Document is the top-level JSON:API response of the v3 API.
type Document struct {
	Data     []Resource `json:"data"`
	Included []Resource `json:"included"`
	Errors   []APIError `json:"errors,omitempty"`
}

// APIError is one entry of the "errors" member.
type APIError struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (e APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %s (%s): %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("api error %s (%s)", e.Status, e.Code)
}

// Resource is a single JSON:API resource object.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    json.RawMessage         `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship holds the linkage of one relationship. Data may be null, a
// single identifier, or an array for to-many links.
type Relationship struct {
	Data json.RawMessage `json:"data"`
}

// ResourceRef identifies another resource.
type ResourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Ref returns the to-one linkage named rel. ok is false when the relationship
// is absent, null or to-many.
func (r Resource) Ref(rel string) (ResourceRef, bool) {
	link, found := r.Relationships[rel]
	if !found {
		return ResourceRef{}, false
	}
	data := bytes.TrimSpace(link.Data)
	if len(data) == 0 || data[0] != '{' {
		return ResourceRef{}, false
	}
	var ref ResourceRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ID == "" {
		return ResourceRef{}, false
	}
	return ref, true
}

// Decode unmarshals the attributes object into v.
func (r Resource) Decode(v any) error {
	if len(r.Attributes) == 0 {
		return fmt.Errorf("%s %s has no attributes", r.Type, r.ID)
	}
	if err := json.Unmarshal(r.Attributes, v); err != nil {
		return fmt.Errorf("decode %s %s attributes: %w", r.Type, r.ID, err)
	}
	return nil
}

// ScheduleAttributes are the attributes of a schedule resource. Times are
// ISO-8601 with a fixed UTC offset; the first stop of a trip has no arrival
// and the last has no departure.
type ScheduleAttributes struct {
	ArrivalTime   *string `json:"arrival_time"`
	DepartureTime *string `json:"departure_time"`
	StopSequence  *int    `json:"stop_sequence"`
	DirectionID   *int    `json:"direction_id"`
	StopHeadsign  *string `json:"stop_headsign"`
	PickupType    int     `json:"pickup_type"`
	DropOffType   int     `json:"drop_off_type"`
	Timepoint     bool    `json:"timepoint"`
}

// PredictionAttributes are the attributes of a prediction resource.
type PredictionAttributes struct {
	ArrivalTime          *string `json:"arrival_time"`
	DepartureTime        *string `json:"departure_time"`
	StopSequence         *int    `json:"stop_sequence"`
	DirectionID          *int    `json:"direction_id"`
	ScheduleRelationship *string `json:"schedule_relationship"`
	Status               *string `json:"status"`
}

// StopAttributes are the attributes of a stop resource.
type StopAttributes struct {
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	PlatformName string  `json:"platform_name,omitempty"`
	PlatformCode string  `json:"platform_code,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// TripAttributes are the attributes of a trip resource.
type TripAttributes struct {
	Headsign    string `json:"headsign"`
	Name        string `json:"name"`
	DirectionID *int   `json:"direction_id"`
}

// RouteAttributes are the attributes of a route resource.
type RouteAttributes struct {
	LongName              string   `json:"long_name"`
	ShortName             string   `json:"short_name"`
	Color                 string   `json:"color"`
	TextColor             string   `json:"text_color"`
	Type                  int      `json:"type"`
	DirectionNames        []string `json:"direction_names"`
	DirectionDestinations []string `json:"direction_destinations"`
}
