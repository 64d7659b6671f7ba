package areas

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

type kmlRing struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	OuterBoundary struct {
		LinearRing kmlRing `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
	InnerBoundaries []struct {
		LinearRing kmlRing `xml:"LinearRing"`
	} `xml:"innerBoundaryIs"`
}

type kmlPlacemark struct {
	ID            string      `xml:"id,attr"`
	Name          string      `xml:"name"`
	Description   string      `xml:"description"`
	Polygon       *kmlPolygon `xml:"Polygon"`
	MultiGeometry *struct {
		Polygons []kmlPolygon `xml:"Polygon"`
	} `xml:"MultiGeometry"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Folders    []kmlFolder    `xml:"Folder"`
}

type kmlDoc struct {
	XMLName  xml.Name `xml:"kml"`
	Document struct {
		Placemarks []kmlPlacemark `xml:"Placemark"`
		Folders    []kmlFolder    `xml:"Folder"`
	} `xml:"Document"`
}

// MaxKMLSize bounds both an uploaded file and the KML inflated out of a KMZ.
const MaxKMLSize = 20 << 20

// ErrTooLarge is returned when the KML inside a KMZ exceeds the size limit.
var ErrTooLarge = errors.New("areas: KML exceeds size limit")

// ParseKMZ reads the polygon placemarks of a KMZ archive (or a bare KML
// document) as areas. Placemarks without a polygon are skipped.
func ParseKMZ(data []byte) ([]Area, error) {
	return parseKMZ(data, MaxKMLSize)
}

func parseKMZ(data []byte, limit int64) ([]Area, error) {
	kml := data
	if bytes.HasPrefix(data, []byte("PK")) {
		var err error
		if kml, err = extractKML(data, limit); err != nil {
			return nil, err
		}
	}

	var doc kmlDoc
	if err := xml.Unmarshal(kml, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse KML: %w", err)
	}

	var out []Area
	for i := range doc.Document.Placemarks {
		out = append(out, placemarkAreas(&doc.Document.Placemarks[i], "")...)
	}
	for i := range doc.Document.Folders {
		out = append(out, folderAreas(&doc.Document.Folders[i])...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no polygons found in KML")
	}
	return out, nil
}

func extractKML(kmz []byte, limit int64) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(kmz), int64(len(kmz)))
	if err != nil {
		return nil, fmt.Errorf("failed to open KMZ archive: %w", err)
	}
	for _, f := range reader.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open KML file: %w", err)
			}
			defer rc.Close()
			kml, err := io.ReadAll(io.LimitReader(rc, limit+1))
			if err != nil {
				return nil, fmt.Errorf("failed to read KML file: %w", err)
			}
			if int64(len(kml)) > limit {
				return nil, ErrTooLarge
			}
			return kml, nil
		}
	}
	return nil, fmt.Errorf("no KML file found in KMZ archive")
}

func folderAreas(f *kmlFolder) []Area {
	var out []Area
	for i := range f.Placemarks {
		out = append(out, placemarkAreas(&f.Placemarks[i], f.Name)...)
	}
	for i := range f.Folders {
		out = append(out, folderAreas(&f.Folders[i])...)
	}
	return out
}

func placemarkAreas(pm *kmlPlacemark, folder string) []Area {
	var polys []kmlPolygon
	if pm.Polygon != nil {
		polys = append(polys, *pm.Polygon)
	}
	if pm.MultiGeometry != nil {
		polys = append(polys, pm.MultiGeometry.Polygons...)
	}

	name := strings.TrimSpace(pm.Name)
	if name == "" {
		name = pm.ID
	}

	var out []Area
	for _, p := range polys {
		outer := parseRing(p.OuterBoundary.LinearRing.Coordinates)
		if len(outer) < 3 {
			continue
		}
		poly := orb.Polygon{outer}
		for _, inner := range p.InnerBoundaries {
			if ring := parseRing(inner.LinearRing.Coordinates); len(ring) >= 3 {
				poly = append(poly, ring)
			}
		}
		out = append(out, Area{
			Name:        name,
			Group:       folder,
			Description: strings.TrimSpace(pm.Description),
			Polygon:     poly,
		})
	}
	return out
}

// parseRing reads a KML "lng,lat[,alt] lng,lat[,alt] ..." list.
func parseRing(s string) orb.Ring {
	var ring orb.Ring
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lng, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ring = append(ring, orb.Point{lng, lat})
	}
	return ring
}
