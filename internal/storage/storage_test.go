package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "lookup.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v, err := db.GetMetadata(ctx, "etag")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetMetadata(ctx, "etag", `"abc"`))
	v, err = db.GetMetadata(ctx, "etag")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, v)
}

func TestReplaceLookup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	routes := []RouteRow{{
		RouteID: "CR-Newburyport", LongName: "Newburyport/Rockport Line", Type: 2, Color: "80276C",
		DirectionNames: []string{"Outbound", "Inbound"},
	}}
	stops := []StopRow{
		{StopID: "place-north", Name: "North Station", LocationType: 1},
		{StopID: "BNT-0000", Name: "North Station", ParentStation: "place-north"},
		{StopID: "place-ER-0115", Name: "Lynn", LocationType: 1},
	}
	require.NoError(t, db.ReplaceLookup(ctx, routes, stops, map[string]string{"imported_at": "now"}))

	gotRoutes, err := db.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, gotRoutes, 1)
	assert.Equal(t, []string{"Outbound", "Inbound"}, gotRoutes[0].DirectionNames)
	assert.Nil(t, gotRoutes[0].DirectionDestinations)

	gotStops, err := db.Stops(ctx)
	require.NoError(t, err)
	require.Len(t, gotStops, 3)
	assert.Equal(t, "Lynn", gotStops[0].Name)
	assert.Equal(t, "BNT-0000", gotStops[1].StopID)

	// A second import replaces rather than appends.
	require.NoError(t, db.ReplaceLookup(ctx, nil, stops[:1], nil))
	gotStops, err = db.Stops(ctx)
	require.NoError(t, err)
	assert.Len(t, gotStops, 1)
	gotRoutes, err = db.Routes(ctx)
	require.NoError(t, err)
	assert.Empty(t, gotRoutes)

	v, err := db.GetMetadata(ctx, "imported_at")
	require.NoError(t, err)
	assert.Equal(t, "now", v)
}
