package models

// TrackPoint is one GPS fix recorded by a field agent's device.
type TrackPoint struct {
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	RecordedAt JSONTime `json:"recordedAt"`
}
