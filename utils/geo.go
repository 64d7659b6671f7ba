package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"p9e.in/zeladoria/models"
)

// ValidateCoordinates checks that c is a real WGS84 position.
func ValidateCoordinates(c models.Coordinates) error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %.6f is out of valid range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %.6f is out of valid range [-180, 180]", c.Lng)
	}
	return nil
}

// Point converts c to an orb point (lng, lat order).
func Point(c models.Coordinates) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// ParseBBox reads "minLng,minLat,maxLng,maxLat" as sent by map clients.
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("bbox must be minLng,minLat,maxLng,maxLat")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	sw := models.Coordinates{Lng: v[0], Lat: v[1]}
	ne := models.Coordinates{Lng: v[2], Lat: v[3]}
	for _, c := range []models.Coordinates{sw, ne} {
		if err := ValidateCoordinates(c); err != nil {
			return orb.Bound{}, err
		}
	}
	if sw.Lng > ne.Lng || sw.Lat > ne.Lat {
		return orb.Bound{}, errors.New("bbox min corner must be south-west of max corner")
	}
	return orb.Bound{Min: Point(sw), Max: Point(ne)}, nil
}

// InPolygon reports whether c lies inside poly. Holes are honored.
func InPolygon(c models.Coordinates, poly orb.Polygon) bool {
	if len(poly) == 0 || len(poly[0]) < 3 {
		return false
	}
	return planar.PolygonContains(poly, Point(c))
}

// PathLength is the great-circle length of ls in meters.
func PathLength(ls orb.LineString) float64 {
	return geo.LengthHaversine(ls)
}
