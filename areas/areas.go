// Package areas keeps the named service areas (bairros, regiões) of the
// municipality and tells which area a report falls in.
package areas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/storage"
	"p9e.in/zeladoria/utils"
)

// AreasKey is the key-value slot holding the area list.
const AreasKey = "service_areas"

// Area is one named polygon.
type Area struct {
	Name        string      `json:"name"`
	Group       string      `json:"group,omitempty"`
	Description string      `json:"description,omitempty"`
	Polygon     orb.Polygon `json:"-"`
}

type areaJSON struct {
	Name        string           `json:"name"`
	Group       string           `json:"group,omitempty"`
	Description string           `json:"description,omitempty"`
	Geometry    geojson.Geometry `json:"geometry"`
}

func (a Area) MarshalJSON() ([]byte, error) {
	return json.Marshal(areaJSON{
		Name:        a.Name,
		Group:       a.Group,
		Description: a.Description,
		Geometry:    *geojson.NewGeometry(a.Polygon),
	})
}

func (a *Area) UnmarshalJSON(b []byte) error {
	var raw areaJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	poly, ok := raw.Geometry.Geometry().(orb.Polygon)
	if !ok {
		return fmt.Errorf("area %q: geometry is not a polygon", raw.Name)
	}
	*a = Area{Name: raw.Name, Group: raw.Group, Description: raw.Description, Polygon: poly}
	return nil
}

// Contains reports whether c lies inside the area.
func (a Area) Contains(c models.Coordinates) bool {
	return utils.InPolygon(c, a.Polygon)
}

// Registry persists the area list in a KeyValue.
type Registry struct {
	kv storage.KeyValue
}

func NewRegistry(kv storage.KeyValue) *Registry {
	return &Registry{kv: kv}
}

// List returns the stored areas, empty when none were imported.
func (r *Registry) List(ctx context.Context) ([]Area, error) {
	var areas []Area
	if _, err := storage.GetJSON(ctx, r.kv, AreasKey, &areas); err != nil {
		return nil, err
	}
	if areas == nil {
		areas = []Area{}
	}
	return areas, nil
}

// Replace swaps the whole area list.
func (r *Registry) Replace(ctx context.Context, areas []Area) error {
	if err := storage.SetJSON(ctx, r.kv, AreasKey, areas); err != nil {
		return err
	}
	log.WithField("count", len(areas)).Info("service areas replaced")
	return nil
}

// Find returns the area named name, ignoring case.
func (r *Registry) Find(ctx context.Context, name string) (Area, bool, error) {
	areas, err := r.List(ctx)
	if err != nil {
		return Area{}, false, err
	}
	for _, a := range areas {
		if strings.EqualFold(a.Name, name) {
			return a, true, nil
		}
	}
	return Area{}, false, nil
}

// Locate names the first area containing c, or "".
func Locate(areas []Area, c models.Coordinates) string {
	for _, a := range areas {
		if a.Contains(c) {
			return a.Name
		}
	}
	return ""
}

// Within keeps the reports located inside a.
func Within(reports []models.Report, a Area) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for i := range reports {
		if c := reports[i].Coordinates; c != nil && a.Contains(*c) {
			out = append(out, reports[i].Clone())
		}
	}
	return out
}

// FeatureCollection renders areas for map clients.
func FeatureCollection(areas []Area) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range areas {
		f := geojson.NewFeature(a.Polygon)
		f.Properties["name"] = a.Name
		if a.Group != "" {
			f.Properties["group"] = a.Group
		}
		if a.Description != "" {
			f.Properties["description"] = a.Description
		}
		fc.Append(f)
	}
	return fc
}
