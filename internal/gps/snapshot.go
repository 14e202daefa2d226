package gps

// Snapshot is the consolidated position and heading the topside expects on
// "set external master position". Field names match the topside JSON.
type Snapshot struct {
	COG         float64 `json:"cog"`         // course over ground, no sentence sets it
	FixQuality  int     `json:"fix_quality"` // GGA fix quality code
	HDOP        float64 `json:"hdop"`
	Latitude    float64 `json:"lat"`         // decimal degrees
	Longitude   float64 `json:"lon"`         // decimal degrees
	NumSats     int     `json:"numsats"`
	Orientation float64 `json:"orientation"` // heading, degrees 0-360
	SOG         float64 `json:"sog"`         // speed over ground, no sentence sets it
}
