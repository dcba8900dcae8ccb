package models

import "fmt"

type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

func NewLocation(lat, lng float64) *Location {
	return &Location{Lat: lat, Lng: lng}
}

// Coordinates returns the GeoJSON ordering (lng, lat).
func (l Location) Coordinates() []float64 {
	return []float64{l.Lng, l.Lat}
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lng)
}

// Clone returns an independent copy, or nil for an absent location.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
