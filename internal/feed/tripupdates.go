package feed

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// TripUpdates wraps a GTFS-Realtime TripUpdates feed. Only entities for
// routeID are kept; an empty routeID keeps all of them.
//
// The feed carries predicted instants and their delay, so the scheduled
// instant is reconstructed as predicted minus delay. Stop time events with no
// delay are treated as schedule-only.
func TripUpdates(raw []byte, routeID string, logger *slog.Logger) (Payload, error) {
	msg := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: trip updates protobuf: %w", ErrDecode, err)
	}
	if len(msg.GetEntity()) == 0 {
		return nil, ErrEmptyFeed
	}
	return &tripUpdates{msg: msg, routeID: routeID, logger: logger}, nil
}

type tripUpdates struct {
	msg     *gtfs.FeedMessage
	routeID string
	logger  *slog.Logger
}

// Stops returns an empty index; GTFS-Realtime carries no stop names.
func (t *tripUpdates) Stops() StopIndex { return StopIndex{} }

func (t *tripUpdates) Normalize(filter StopFilter) (*Records, error) {
	recs := NewRecords()

	for _, entity := range t.msg.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		trip := tu.GetTrip()
		if t.routeID != "" && trip.GetRouteId() != t.routeID {
			continue
		}
		if trip.GetScheduleRelationship() == gtfs.TripDescriptor_CANCELED {
			continue
		}
		tripID := trip.GetTripId()
		if tripID == "" {
			recs.Dropped++
			t.logger.Debug("dropping trip update without trip id", "entity", entity.GetId())
			continue
		}

		var direction *int
		if trip.DirectionId != nil {
			d := int(trip.GetDirectionId())
			direction = &d
		}
		recs.Trips[tripID] = TripInfo{DirectionID: direction}

		for _, stu := range tu.GetStopTimeUpdate() {
			if stu.GetScheduleRelationship() == gtfs.TripUpdate_StopTimeUpdate_SKIPPED {
				continue
			}
			stopID := stu.GetStopId()
			if stopID == "" || stu.StopSequence == nil {
				recs.Dropped++
				t.logger.Debug("dropping stop time update", "trip", tripID, "reason", "missing stop id or sequence")
				continue
			}
			if !filter.Allows(stopID) {
				continue
			}

			ev := stu.GetDeparture()
			if ev == nil || ev.Time == nil {
				ev = stu.GetArrival()
			}
			if ev == nil || ev.Time == nil {
				recs.Dropped++
				t.logger.Debug("dropping stop time update", "trip", tripID, "stop", stopID, "reason", "no event time")
				continue
			}

			predicted := time.Unix(ev.GetTime(), 0).UTC()
			rec := StopRecord{
				StopID:      stopID,
				TripID:      tripID,
				Sequence:    int(stu.GetStopSequence()),
				Scheduled:   predicted,
				DirectionID: direction,
			}

			if ev.Delay != nil {
				rec.Scheduled = predicted.Add(-time.Duration(ev.GetDelay()) * time.Second)
				id := tripID + ":" + strconv.Itoa(rec.Sequence)
				rec.PredictionID = id
				recs.Predictions[id] = PredictionRecord{
					ID:        id,
					StopID:    stopID,
					TripID:    tripID,
					Predicted: predicted,
				}
			}
			recs.Add(rec)
		}
	}

	if recs.Dropped > 0 {
		t.logger.Info("dropped malformed stop time updates", "count", recs.Dropped)
	}
	return recs, nil
}
