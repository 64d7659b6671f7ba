package models

import (
	"slices"
	"strings"
	"time"
)

// ReportStatus is the lifecycle state of a report. The literals are the
// values persisted and exchanged with the UI.
type ReportStatus string

const (
	StatusPending    ReportStatus = "Pendente"
	StatusInProgress ReportStatus = "Em andamento"
	StatusResolved   ReportStatus = "Resolvido"
)

// Statuses lists every valid status in display order.
var Statuses = []ReportStatus{StatusPending, StatusInProgress, StatusResolved}

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// ParseStatus accepts the persisted literal in any letter case.
func ParseStatus(s string) (ReportStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Coordinates is a WGS84 position in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Complainant is the citizen who reported the incident.
type Complainant struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Address  string `json:"address"`
}

// Resolution closes a report once it is Resolvido.
type Resolution struct {
	Description string   `json:"description"`
	Responsible string   `json:"responsible"`
	Date        JSONTime `json:"date"`
}

// Agent is the field agent that filed the report. GabineteID scopes which
// non-admin users can see the report.
type Agent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GabineteID string `json:"gabineteId"`
}

// Report represents one citizen complaint about an urban incident.
type Report struct {
	ID          int          `json:"id"`
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Status      ReportStatus `json:"status"`
	CreatedAt   JSONTime     `json:"createdAt"`
	UpdatedAt   *JSONTime    `json:"updatedAt,omitempty"`
	Photos      []string     `json:"photos"`
	Complainant *Complainant `json:"complainant,omitempty"`
	Resolution  *Resolution  `json:"resolution,omitempty"`
	Agent       *Agent       `json:"agent,omitempty"`
}

// Clone returns a deep copy so callers can never alias store-owned data.
func (r Report) Clone() Report {
	out := r
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	if r.UpdatedAt != nil {
		u := *r.UpdatedAt
		out.UpdatedAt = &u
	}
	out.Photos = slices.Clone(r.Photos)
	if r.Complainant != nil {
		c := *r.Complainant
		out.Complainant = &c
	}
	if r.Resolution != nil {
		res := *r.Resolution
		out.Resolution = &res
	}
	if r.Agent != nil {
		a := *r.Agent
		out.Agent = &a
	}
	return out
}

// CloneReports deep-copies a list of reports.
func CloneReports(in []Report) []Report {
	out := make([]Report, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// GabineteID returns the owning gabinete, or "" when the report has no agent.
func (r Report) GabineteID() string {
	if r.Agent == nil {
		return ""
	}
	return r.Agent.GabineteID
}

// ReportPatch carries the editable fields of a report. Nil fields are left
// untouched; ClearCoordinates removes the position.
type ReportPatch struct {
	Type             *string      `json:"type,omitempty"`
	Description      *string      `json:"description,omitempty"`
	Address          *string      `json:"address,omitempty"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	ClearCoordinates bool         `json:"clearCoordinates,omitempty"`
	Photos           []string     `json:"photos,omitempty"`
	Complainant      *Complainant `json:"complainant,omitempty"`
}

// Apply writes the patch onto r.
func (p ReportPatch) Apply(r *Report) {
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Address != nil {
		r.Address = *p.Address
	}
	if p.ClearCoordinates {
		r.Coordinates = nil
	} else if p.Coordinates != nil {
		c := *p.Coordinates
		r.Coordinates = &c
	}
	if p.Photos != nil {
		r.Photos = append([]string{}, p.Photos...)
	}
	if p.Complainant != nil {
		c := *p.Complainant
		r.Complainant = &c
	}
}

// ResolutionInput is what a supervisor supplies when closing a report; the
// date is stamped by the store.
type ResolutionInput struct {
	Description string `json:"description"`
	Responsible string `json:"responsible"`
}

// StampNow truncates t to the millisecond precision used on the wire.
func StampNow(t time.Time) JSONTime {
	return JSONTime(t.UTC().Truncate(time.Millisecond))
}
