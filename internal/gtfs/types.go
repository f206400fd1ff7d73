package gtfs

// Feed holds the parts of a static GTFS zip needed for name lookup.
type Feed struct {
	Routes       []Route
	Stops        []Stop
	Directions   []Direction
	LastModified string // From HTTP response header
	ETag         string // From HTTP response header
}

type Route struct {
	RouteID        string `csv:"route_id,required"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	RouteType      string `csv:"route_type"`
	RouteColor     string `csv:"route_color"`
	RouteTextColor string `csv:"route_text_color"`
}

type Stop struct {
	StopID        string `csv:"stop_id,required"`
	StopName      string `csv:"stop_name,required"`
	PlatformName  string `csv:"platform_name"`
	LocationType  string `csv:"location_type"`
	ParentStation string `csv:"parent_station"`
}

// Direction is a row of directions.txt, an extension file some agencies
// publish to name each direction_id of a route.
type Direction struct {
	RouteID     string `csv:"route_id,required"`
	DirectionID string `csv:"direction_id,required"`
	Direction   string `csv:"direction"`
	Destination string `csv:"direction_destination"`
}
