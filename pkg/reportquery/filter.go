// Package reportquery narrows, orders, pages and summarizes report lists.
// Every function is pure: inputs are never modified and results share no
// slices with them.
package reportquery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"p9e.in/zeladoria/models"
)

// StatusToken is the status filter as the list views send it.
type StatusToken string

const (
	StatusAll        StatusToken = "all"
	StatusPending    StatusToken = "pending"
	StatusInProgress StatusToken = "in_progress"
	StatusResolved   StatusToken = "resolved"
)

var tokenStatus = map[StatusToken]models.ReportStatus{
	StatusPending:    models.StatusPending,
	StatusInProgress: models.StatusInProgress,
	StatusResolved:   models.StatusResolved,
}

// ParseStatusToken accepts the filter tokens and, as a convenience, the
// persisted status literals. Empty means all.
func ParseStatusToken(s string) (StatusToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusAll, nil
	}
	tok := StatusToken(strings.ToLower(s))
	if tok == StatusAll {
		return tok, nil
	}
	if _, ok := tokenStatus[tok]; ok {
		return tok, nil
	}
	if st, ok := models.ParseStatus(s); ok {
		for t, v := range tokenStatus {
			if v == st {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("unknown status filter %q", s)
}

// Status maps the token to the literal it selects. ok is false for "all".
func (t StatusToken) Status() (models.ReportStatus, bool) {
	st, ok := tokenStatus[t]
	return st, ok
}

type typeMode int

const (
	typeAny typeMode = iota
	typeExact
	typeKeyword
)

// TypeFilter selects on the report type either by exact label or by a
// case-insensitive keyword. The zero value matches everything.
type TypeFilter struct {
	mode  typeMode
	value string
}

// ExactType matches reports whose type equals label.
func ExactType(label string) TypeFilter {
	if label == "" || label == string(StatusAll) {
		return TypeFilter{}
	}
	return TypeFilter{mode: typeExact, value: label}
}

// TypeKeyword matches reports whose type contains kw, ignoring case.
func TypeKeyword(kw string) TypeFilter {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return TypeFilter{}
	}
	return TypeFilter{mode: typeKeyword, value: strings.ToLower(kw)}
}

func (f TypeFilter) IsZero() bool { return f.mode == typeAny }

func (f TypeFilter) String() string {
	switch f.mode {
	case typeExact:
		return "type=" + f.value
	case typeKeyword:
		return "typeKeyword=" + f.value
	}
	return "type=all"
}

func (f TypeFilter) match(r *models.Report) bool {
	switch f.mode {
	case typeExact:
		return r.Type == f.value
	case typeKeyword:
		return strings.Contains(strings.ToLower(r.Type), f.value)
	}
	return true
}

// Criteria is the filter set of the list, map and export views. Unset fields
// do not filter.
type Criteria struct {
	Status    StatusToken
	Type      TypeFilter
	Search    string
	DateStart *time.Time
	DateEnd   *time.Time
}

// Filter keeps the reports matching every set criterion, in input order.
func Filter(all []models.Report, c Criteria) []models.Report {
	status, byStatus := c.Status.Status()
	search := strings.ToLower(strings.TrimSpace(c.Search))

	var start, end time.Time
	if c.DateStart != nil {
		start = *c.DateStart
	}
	if c.DateEnd != nil {
		// the end date is inclusive
		end = c.DateEnd.Add(24 * time.Hour)
	}

	out := make([]models.Report, 0, len(all))
	for i := range all {
		r := &all[i]
		if byStatus && r.Status != status {
			continue
		}
		if !c.Type.match(r) {
			continue
		}
		created := r.CreatedAt.Time()
		if c.DateStart != nil && created.Before(start) {
			continue
		}
		if c.DateEnd != nil && !created.Before(end) {
			continue
		}
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

func matchesSearch(r *models.Report, needle string) bool {
	if strings.Contains(strconv.Itoa(r.ID), needle) {
		return true
	}
	fields := []string{r.Description, r.Address, r.Type}
	if r.Complainant != nil {
		fields = append(fields, r.Complainant.FullName, r.Complainant.Phone)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Order is the list ordering by creation time.
type Order string

const (
	NewestFirst Order = "desc"
	OldestFirst Order = "asc"
)

// ParseOrder defaults to NewestFirst.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), string(OldestFirst)) {
		return OldestFirst
	}
	return NewestFirst
}

// Sort returns a copy ordered by createdAt, ties broken by id.
func Sort(reports []models.Report, order Order) []models.Report {
	out := models.CloneReports(reports)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt.Time(), out[j].CreatedAt.Time()
		if a.Equal(b) {
			if order == OldestFirst {
				return out[i].ID < out[j].ID
			}
			return out[i].ID > out[j].ID
		}
		if order == OldestFirst {
			return a.Before(b)
		}
		return a.After(b)
	})
	return out
}

// Viewer is who is looking at a list.
type Viewer struct {
	Role       string
	GabineteID string
}

// VisibleTo keeps what v may see: admins see every report, everyone else
// only reports filed by an agent of their own gabinete.
func VisibleTo(reports []models.Report, v Viewer) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for i := range reports {
		if CanSee(v, &reports[i]) {
			out = append(out, reports[i].Clone())
		}
	}
	return out
}

// CanSee reports whether v may read r.
func CanSee(v Viewer, r *models.Report) bool {
	if v.Role == models.RoleAdmin {
		return true
	}
	gid := r.GabineteID()
	return gid != "" && gid == v.GabineteID
}

// WithinBounds keeps reports whose coordinates fall inside b. Reports
// without coordinates are dropped.
func WithinBounds(reports []models.Report, b orb.Bound) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for i := range reports {
		c := reports[i].Coordinates
		if c == nil {
			continue
		}
		if b.Contains(orb.Point{c.Lng, c.Lat}) {
			out = append(out, reports[i].Clone())
		}
	}
	return out
}
