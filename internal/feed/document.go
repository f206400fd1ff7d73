package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"etasensor/internal/mbta"
)

// Schedules wraps a /schedules response: schedule rows in data, predictions,
// stops, trips and routes in included.
func Schedules(doc *mbta.Document, logger *slog.Logger) (Payload, error) {
	if err := checkDocument(doc); err != nil {
		return nil, err
	}
	return &document{doc: doc, inline: false, logger: logger}, nil
}

// Inline wraps a response whose schedule and prediction records may both sit
// in data, as returned by /predictions with schedules included.
func Inline(doc *mbta.Document, logger *slog.Logger) (Payload, error) {
	if err := checkDocument(doc); err != nil {
		return nil, err
	}
	return &document{doc: doc, inline: true, logger: logger}, nil
}

func checkDocument(doc *mbta.Document) error {
	if doc == nil {
		return ErrEmptyFeed
	}
	if len(doc.Errors) > 0 {
		return fmt.Errorf("%w: %w", ErrAPIStatus, doc.Errors[0])
	}
	if len(doc.Data) == 0 {
		return ErrEmptyFeed
	}
	return nil
}

type document struct {
	doc    *mbta.Document
	inline bool
	logger *slog.Logger
}

func (d *document) Stops() StopIndex {
	idx := make(StopIndex)
	for _, res := range d.doc.Included {
		if res.Type != mbta.TypeStop {
			continue
		}
		var attrs mbta.StopAttributes
		if err := res.Decode(&attrs); err != nil || attrs.Name == "" {
			continue
		}
		idx.Add(attrs.Name, res.ID)
	}
	return idx
}

func (d *document) Normalize(filter StopFilter) (*Records, error) {
	recs := NewRecords()

	// In the inline layout a prediction may only point back at its schedule.
	predictionBySchedule := make(map[string]string)

	resources := d.doc.Data
	if d.inline {
		resources = append(append([]mbta.Resource(nil), d.doc.Data...), d.doc.Included...)
	}
	for _, res := range resources {
		if res.Type != mbta.TypePrediction {
			continue
		}
		if sched, ok := res.Ref("schedule"); ok {
			predictionBySchedule[sched.ID] = res.ID
		}
	}

	for _, res := range d.doc.Data {
		switch res.Type {
		case mbta.TypeSchedule:
			d.addSchedule(recs, res, filter, predictionBySchedule)
		case mbta.TypePrediction:
			if d.inline {
				d.addPrediction(recs, res)
			}
		}
	}

	if d.inline {
		for _, res := range d.doc.Included {
			if res.Type == mbta.TypeSchedule {
				d.addSchedule(recs, res, filter, predictionBySchedule)
			}
		}
	}

	for _, res := range d.doc.Included {
		switch res.Type {
		case mbta.TypePrediction:
			d.addPrediction(recs, res)
		case mbta.TypeTrip:
			var attrs mbta.TripAttributes
			if err := res.Decode(&attrs); err != nil {
				d.logger.Debug("skipping trip metadata", "id", res.ID, "error", err)
				continue
			}
			recs.Trips[res.ID] = TripInfo{Headsign: attrs.Headsign, DirectionID: attrs.DirectionID}
		case mbta.TypeRoute:
			var attrs mbta.RouteAttributes
			if err := res.Decode(&attrs); err != nil {
				d.logger.Debug("skipping route metadata", "id", res.ID, "error", err)
				continue
			}
			recs.Routes[res.ID] = RouteInfo{
				ID:                    res.ID,
				LongName:              attrs.LongName,
				Color:                 attrs.Color,
				Type:                  attrs.Type,
				DirectionNames:        attrs.DirectionNames,
				DirectionDestinations: attrs.DirectionDestinations,
			}
		}
	}

	if recs.Dropped > 0 {
		d.logger.Info("dropped malformed records", "count", recs.Dropped)
	}
	return recs, nil
}

func (d *document) addSchedule(recs *Records, res mbta.Resource, filter StopFilter, predictionBySchedule map[string]string) {
	rec, err := parseSchedule(res)
	if err != nil {
		recs.Dropped++
		d.logger.Debug("dropping schedule record", "id", res.ID, "error", err)
		return
	}
	if !filter.Allows(rec.StopID) {
		return
	}
	if rec.PredictionID == "" {
		rec.PredictionID = predictionBySchedule[res.ID]
	}
	recs.Add(rec)
}

func (d *document) addPrediction(recs *Records, res mbta.Resource) {
	p, err := parsePrediction(res)
	if err != nil {
		recs.Dropped++
		d.logger.Debug("dropping prediction record", "id", res.ID, "error", err)
		return
	}
	recs.Predictions[p.ID] = p
}

var errNoTime = errors.New("record has neither departure nor arrival time")

func parseSchedule(res mbta.Resource) (StopRecord, error) {
	stop, ok := res.Ref("stop")
	if !ok {
		return StopRecord{}, errors.New("missing stop relationship")
	}
	trip, ok := res.Ref("trip")
	if !ok {
		return StopRecord{}, errors.New("missing trip relationship")
	}

	var attrs mbta.ScheduleAttributes
	if err := res.Decode(&attrs); err != nil {
		return StopRecord{}, err
	}
	if attrs.StopSequence == nil {
		return StopRecord{}, errors.New("missing stop_sequence")
	}
	at, err := pickTime(attrs.DepartureTime, attrs.ArrivalTime)
	if err != nil {
		return StopRecord{}, err
	}

	rec := StopRecord{
		StopID:      stop.ID,
		TripID:      trip.ID,
		Sequence:    *attrs.StopSequence,
		Scheduled:   at,
		DirectionID: attrs.DirectionID,
	}
	if attrs.StopHeadsign != nil {
		rec.Headsign = *attrs.StopHeadsign
	}
	if pred, ok := res.Ref("prediction"); ok {
		rec.PredictionID = pred.ID
	}
	return rec, nil
}

func parsePrediction(res mbta.Resource) (PredictionRecord, error) {
	var attrs mbta.PredictionAttributes
	if err := res.Decode(&attrs); err != nil {
		return PredictionRecord{}, err
	}
	at, err := pickTime(attrs.DepartureTime, attrs.ArrivalTime)
	if err != nil {
		return PredictionRecord{}, err
	}
	p := PredictionRecord{ID: res.ID, Predicted: at}
	if stop, ok := res.Ref("stop"); ok {
		p.StopID = stop.ID
	}
	if trip, ok := res.Ref("trip"); ok {
		p.TripID = trip.ID
	}
	return p, nil
}

// pickTime prefers the departure instant and falls back to the arrival
// instant, which is all a trip's last stop carries.
func pickTime(departure, arrival *string) (time.Time, error) {
	raw := departure
	if raw == nil || *raw == "" {
		raw = arrival
	}
	if raw == nil || *raw == "" {
		return time.Time{}, errNoTime
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", *raw, err)
	}
	return t, nil
}
