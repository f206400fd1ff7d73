package reconcile

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etasensor/internal/feed"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func stop(trip, stopID string, seq int, scheduled time.Time) feed.StopRecord {
	return feed.StopRecord{StopID: stopID, TripID: trip, Sequence: seq, Scheduled: scheduled}
}

func withPrediction(r feed.StopRecord, id string) feed.StopRecord {
	r.PredictionID = id
	return r
}

func records(stops ...feed.StopRecord) *feed.Records {
	recs := feed.NewRecords()
	for _, s := range stops {
		recs.Add(s)
	}
	return recs
}

func engine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMatch_Direction(t *testing.T) {
	recs := records(
		stop("T1", "A", 1, at(10, 0)),
		stop("T1", "B", 5, at(10, 20)),
		stop("T2", "B", 1, at(11, 0)),
		stop("T2", "A", 5, at(11, 20)),
		stop("T3", "A", 2, at(12, 0)),
		stop("T4", "A", 3, at(12, 0)),
		stop("T4", "B", 3, at(12, 0)),
	)

	got, stats := Match(recs, NewIDSet("A"), NewIDSet("B"))
	require.Len(t, got, 1)
	assert.Equal(t, "T1", got[0].TripID)
	assert.Equal(t, "A", got[0].Origin.StopID)
	assert.Equal(t, "B", got[0].Destination.StopID)

	assert.Equal(t, 4, stats.Considered)
	assert.Equal(t, 1, stats.Reversed)
	assert.Equal(t, 1, stats.Incomplete)
	assert.Equal(t, 1, stats.Ambiguous)
}

func TestMatch_PlatformVariantsAndCase(t *testing.T) {
	recs := records(
		stop("T1", "place-lynn-1", 3, at(10, 0)),
		stop("T1", "place-north", 9, at(10, 30)),
		stop("T2", "place-lynn-2", 3, at(11, 0)),
		stop("T2", "place-north", 9, at(11, 30)),
	)
	got, _ := Match(recs, NewIDSet("PLACE-LYNN-1", "place-lynn-2"), NewIDSet("place-north"))
	require.Len(t, got, 2)
	assert.Equal(t, "T1", got[0].TripID)
	assert.Equal(t, "T2", got[1].TripID)
}

func TestMatch_OverlappingSetsUseOrdinal(t *testing.T) {
	// A loop route serving the same station name at both ends.
	recs := records(
		stop("T1", "loop-out", 1, at(10, 0)),
		stop("T1", "loop-in", 12, at(10, 40)),
	)
	both := NewIDSet("loop-out", "loop-in")
	got, _ := Match(recs, both, both)
	require.Len(t, got, 1)
	assert.Equal(t, "loop-out", got[0].Origin.StopID)
}

func TestMatch_NilRecords(t *testing.T) {
	got, stats := Match(nil, NewIDSet("A"), NewIDSet("B"))
	assert.Empty(t, got)
	assert.Zero(t, stats.Considered)
}

func TestResolve(t *testing.T) {
	dir := 1
	origin := withPrediction(stop("T1", "A", 1, at(10, 0)), "p1")
	origin.DirectionID = &dir
	m := MatchedTrip{TripID: "T1", Origin: origin, Destination: stop("T1", "B", 5, at(10, 20))}

	t.Run("prediction", func(t *testing.T) {
		preds := map[string]feed.PredictionRecord{"p1": {ID: "p1", Predicted: at(10, 5)}}
		r := Resolve(m, preds, nil)
		assert.True(t, r.Accurate.Equal(at(10, 5)))
		d, ok := r.Delay()
		require.True(t, ok)
		assert.Equal(t, 5*time.Minute, d)
		require.NotNil(t, r.DirectionID)
		assert.Equal(t, 1, *r.DirectionID)

		again := Resolve(m, preds, nil)
		assert.True(t, again.Accurate.Equal(r.Accurate))
	})

	t.Run("on time prediction has no delay", func(t *testing.T) {
		preds := map[string]feed.PredictionRecord{"p1": {ID: "p1", Predicted: at(10, 0)}}
		r := Resolve(m, preds, nil)
		assert.True(t, r.HasPrediction())
		_, ok := r.Delay()
		assert.False(t, ok)
	})

	t.Run("dangling prediction id", func(t *testing.T) {
		r := Resolve(m, map[string]feed.PredictionRecord{}, nil)
		assert.False(t, r.HasPrediction())
		assert.True(t, r.Accurate.Equal(at(10, 0)))
	})

	t.Run("trip metadata fills gaps", func(t *testing.T) {
		zero := 0
		bare := MatchedTrip{TripID: "T9", Origin: stop("T9", "A", 1, at(9, 0)), Destination: stop("T9", "B", 2, at(9, 9))}
		r := Resolve(bare, nil, map[string]feed.TripInfo{"T9": {Headsign: "Wonderland", DirectionID: &zero}})
		assert.Equal(t, "Wonderland", r.Headsign)
		require.NotNil(t, r.DirectionID)
		assert.Equal(t, 0, *r.DirectionID)
	})
}

func TestUpcoming_StrictOffset(t *testing.T) {
	now := at(9, 50)
	trips := []ResolvedTrip{
		{TripID: "exact", Accurate: at(9, 55)},
		{TripID: "past", Accurate: at(9, 40)},
		{TripID: "later", Accurate: at(9, 56)},
	}
	got := Upcoming(trips, now, 5*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, "later", got[0].TripID)

	got = Upcoming(trips, now, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].TripID)
}

func TestUpcoming_OrderingProperty(t *testing.T) {
	now := at(8, 0)
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		var trips []ResolvedTrip
		for i := 0; i < 20; i++ {
			trips = append(trips, ResolvedTrip{
				TripID:   string(rune('a' + i)),
				Accurate: now.Add(time.Duration(rng.Intn(120)-20) * time.Minute),
				order:    i,
			})
		}
		offset := time.Duration(rng.Intn(10)) * time.Minute

		got := Upcoming(trips, now, offset)
		for i, tr := range got {
			assert.Greater(t, tr.Accurate.Sub(now), offset)
			if i == 0 {
				continue
			}
			prev := got[i-1]
			assert.False(t, tr.Accurate.Before(prev.Accurate), "round %d not sorted", round)
			if tr.Accurate.Equal(prev.Accurate) {
				assert.Less(t, prev.order, tr.order, "ties keep payload order")
			}
		}
	}
}

func TestFormatDuration(t *testing.T) {
	base := time.Date(2026, 1, 31, 9, 50, 0, 0, time.UTC)
	tests := []struct {
		name string
		to   time.Time
		want string
	}{
		{"zero", base, ""},
		{"minutes", base.Add(10 * time.Minute), "10m"},
		{"hours minutes seconds", base.Add(time.Hour + 5*time.Minute + 3*time.Second), "1h 5m 3s"},
		{"days", base.Add(49 * time.Hour), "2days 1h"},
		{"month clamps to end of february", time.Date(2026, 2, 28, 9, 50, 0, 0, time.UTC), "1months"},
		{"years", time.Date(2028, 1, 31, 9, 50, 30, 0, time.UTC), "2yrs 30s"},
		{"negative", base.Add(-5 * time.Minute), "-5m"},
		{"sub-second", base.Add(300 * time.Millisecond), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(base, tt.to); got != tt.want {
				t.Errorf("FormatDuration(%s) = %q, want %q", tt.to.Sub(base), got, tt.want)
			}
		})
	}
}

func TestFormatDuration_AcrossOffsets(t *testing.T) {
	boston := time.FixedZone("EST", -5*3600)
	now := time.Date(2026, 3, 2, 14, 50, 0, 0, time.UTC)
	dep := time.Date(2026, 3, 2, 10, 0, 0, 0, boston)
	assert.Equal(t, "10m", FormatDuration(now, dep))
}

func TestBuild_Limit(t *testing.T) {
	now := at(9, 0)
	var trips []ResolvedTrip
	for i := 0; i < 5; i++ {
		trips = append(trips, ResolvedTrip{TripID: string(rune('a' + i)), Accurate: now.Add(time.Duration(i+1) * 10 * time.Minute)})
	}

	p := Build(trips, now, 2, Labels{})
	assert.Equal(t, "10m", p.State)
	require.Len(t, p.Upcoming, 2)
	assert.Equal(t, "20m", p.Upcoming[0].ETA)
	assert.Equal(t, "30m", p.Upcoming[1].ETA)

	p = Build(trips, now, 0, Labels{})
	assert.Empty(t, p.Upcoming)
	assert.NotNil(t, p.Upcoming)
}

func TestBuild_DirectionLabel(t *testing.T) {
	dir := 1
	p := Build([]ResolvedTrip{{Accurate: at(9, 10), DirectionID: &dir}}, at(9, 0), 10,
		Labels{DirectionNames: []string{"Outbound", "Inbound"}})
	assert.Equal(t, "Inbound", p.DirectionLabel)

	bad := 7
	p = Build([]ResolvedTrip{{Accurate: at(9, 10), DirectionID: &bad}}, at(9, 0), 10,
		Labels{DirectionNames: []string{"Outbound", "Inbound"}})
	assert.Empty(t, p.DirectionLabel)
}

func TestEngine_Scenarios(t *testing.T) {
	now := at(9, 50)
	origin, dest := NewIDSet("A"), NewIDSet("B")
	req := Request{Origin: origin, Destination: dest, Now: now, Limit: 10, Labels: Labels{Route: "Red", DepartFrom: "A", ArriveAt: "B"}}

	t.Run("scheduled only", func(t *testing.T) {
		recs := records(stop("T1", "A", 1, at(10, 0)), stop("T1", "B", 5, at(10, 30)))
		out := engine().Run(recs, req)
		assert.Equal(t, "10m", out.Projection.State)
		assert.Nil(t, out.Projection.Delay())
		assert.Equal(t, "Red", out.Projection.Labels.Route)
	})

	t.Run("predicted late", func(t *testing.T) {
		recs := records(withPrediction(stop("T1", "A", 1, at(10, 0)), "p1"), stop("T1", "B", 5, at(10, 30)))
		recs.Predictions["p1"] = feed.PredictionRecord{ID: "p1", StopID: "A", TripID: "T1", Predicted: at(10, 5)}
		out := engine().Run(recs, req)
		assert.Equal(t, "15m", out.Projection.State)
		require.NotNil(t, out.Projection.Delay())
		assert.Equal(t, "5m", *out.Projection.Delay())
	})

	t.Run("reverse trip excluded", func(t *testing.T) {
		recs := records(stop("T2", "B", 1, at(10, 0)), stop("T2", "A", 5, at(10, 30)))
		out := engine().Run(recs, req)
		assert.Equal(t, NothingScheduled, out.Projection.State)
		assert.Equal(t, 1, out.Stats.Reversed)
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		out := engine().Run(feed.NewRecords(), req)
		assert.Equal(t, NothingScheduled, out.Projection.State)
		assert.True(t, out.Projection.Empty())
		assert.NotNil(t, out.Projection.Upcoming)
		assert.Empty(t, out.Projection.Upcoming)
	})

	t.Run("offset hides near departure", func(t *testing.T) {
		recs := records(
			stop("T1", "A", 1, at(9, 52)), stop("T1", "B", 5, at(10, 20)),
			stop("T3", "A", 1, at(10, 10)), stop("T3", "B", 5, at(10, 40)),
		)
		r := req
		r.Offset = 5 * time.Minute
		out := engine().Run(recs, r)
		assert.Equal(t, "20m", out.Projection.State)
		assert.Empty(t, out.Projection.Upcoming)
	})

	t.Run("out of order feed is sorted", func(t *testing.T) {
		recs := records(
			stop("late", "A", 1, at(11, 0)), stop("late", "B", 5, at(11, 30)),
			stop("early", "A", 1, at(10, 0)), stop("early", "B", 5, at(10, 30)),
		)
		out := engine().Run(recs, req)
		require.Len(t, out.Trips, 2)
		assert.Equal(t, "early", out.Trips[0].TripID)
		assert.Equal(t, "1h 10m", out.Projection.Upcoming[0].ETA)
	})
}
