package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ReportRow is the relational form of a Report, used when reports live in
// Postgres tables instead of a single persisted blob.
type ReportRow struct {
	ID          int            `gorm:"primaryKey;autoIncrement"          json:"id"`
	Type        string         `gorm:"column:type;size:120;not null;index" json:"type"`
	Description string         `gorm:"column:description;type:text"     json:"description"`
	Address     string         `gorm:"column:address;size:255"           json:"address"`
	Latitude    *float64       `gorm:"column:latitude"                   json:"latitude,omitempty"`
	Longitude   *float64       `gorm:"column:longitude"                  json:"longitude,omitempty"`
	Status      string         `gorm:"column:status;size:20;not null;index" json:"status"`
	Photos      pq.StringArray `gorm:"column:photos;type:text[]"         json:"photos"`
	Complainant datatypes.JSON `gorm:"column:complainant;type:jsonb"     json:"complainant,omitempty"`
	Resolution  datatypes.JSON `gorm:"column:resolution;type:jsonb"      json:"resolution,omitempty"`
	Agent       datatypes.JSON `gorm:"column:agent;type:jsonb"           json:"agent,omitempty"`
	GabineteID  string         `gorm:"column:gabinete_id;size:64;index"  json:"gabineteId"`
	CreatedAt   JSONTime       `gorm:"column:created_at;not null;index"  json:"createdAt"`
	UpdatedAt   *time.Time     `gorm:"column:updated_at"                 json:"updatedAt,omitempty"`
}

// TableName specifies the table name for ReportRow
func (ReportRow) TableName() string {
	return "reports"
}

// ToRow converts a Report into its table form.
func ToRow(r Report) (ReportRow, error) {
	row := ReportRow{
		ID:          r.ID,
		Type:        r.Type,
		Description: r.Description,
		Address:     r.Address,
		Status:      string(r.Status),
		Photos:      pq.StringArray(r.Photos),
		GabineteID:  r.GabineteID(),
		CreatedAt:   r.CreatedAt,
	}
	if row.Photos == nil {
		row.Photos = pq.StringArray{}
	}
	if r.Coordinates != nil {
		lat, lng := r.Coordinates.Lat, r.Coordinates.Lng
		row.Latitude, row.Longitude = &lat, &lng
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time()
		row.UpdatedAt = &t
	}

	var err error
	if row.Complainant, err = marshalOptional(r.Complainant); err != nil {
		return row, fmt.Errorf("complainant: %w", err)
	}
	if row.Resolution, err = marshalOptional(r.Resolution); err != nil {
		return row, fmt.Errorf("resolution: %w", err)
	}
	if row.Agent, err = marshalOptional(r.Agent); err != nil {
		return row, fmt.Errorf("agent: %w", err)
	}
	return row, nil
}

// ToReport converts a table row back into a Report.
func (row ReportRow) ToReport() (Report, error) {
	r := Report{
		ID:          row.ID,
		Type:        row.Type,
		Description: row.Description,
		Address:     row.Address,
		Status:      ReportStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		Photos:      []string(row.Photos),
	}
	if r.Photos == nil {
		r.Photos = []string{}
	}
	if row.Latitude != nil && row.Longitude != nil {
		r.Coordinates = &Coordinates{Lat: *row.Latitude, Lng: *row.Longitude}
	}
	if row.UpdatedAt != nil {
		u := StampNow(*row.UpdatedAt)
		r.UpdatedAt = &u
	}
	if err := unmarshalOptional(row.Complainant, &r.Complainant); err != nil {
		return r, fmt.Errorf("complainant: %w", err)
	}
	if err := unmarshalOptional(row.Resolution, &r.Resolution); err != nil {
		return r, fmt.Errorf("resolution: %w", err)
	}
	if err := unmarshalOptional(row.Agent, &r.Agent); err != nil {
		return r, fmt.Errorf("agent: %w", err)
	}
	return r, nil
}

func marshalOptional[T any](v *T) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func unmarshalOptional[T any](raw datatypes.JSON, dst **T) error {
	if len(raw) == 0 || string(raw) == "null" {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
