// Package catalog holds the published event programme and the rules used
// to present live seat availability.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/inscricoes/internal/backend"
)

//go:embed courses.yaml
var coursesYAML []byte

// Course is one event of the programme.
type Course struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category" json:"category"`
	Date        string `yaml:"date" json:"date"`
	Time        string `yaml:"time" json:"time"`
	Place       string `yaml:"place" json:"place"`
	Workload    string `yaml:"workload,omitempty" json:"workload,omitempty"`
	Seats       int    `yaml:"seats,omitempty" json:"seats,omitempty"`
	Facilitator string `yaml:"facilitator,omitempty" json:"facilitator,omitempty"`
	Description string `yaml:"description" json:"description"`
}

// Day parses Date. The zero time is returned for malformed dates.
func (c Course) Day() time.Time {
	d, _ := time.Parse("2006-01-02", c.Date)
	return d
}

// Catalog is the parsed programme in publication order.
type Catalog struct {
	courses []Course
}

// Load parses the embedded programme.
func Load() (*Catalog, error) {
	return Parse(coursesYAML)
}

// Parse decodes a YAML course list.
func Parse(data []byte) (*Catalog, error) {
	var courses []Course
	if err := yaml.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(courses))
	for i, c := range courses {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("parse catalog: course %d: id and name are required", i+1)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("parse catalog: duplicate course id %q", c.ID)
		}
		seen[c.ID] = true
	}

	return &Catalog{courses: courses}, nil
}

// All returns every course.
func (c *Catalog) All() []Course {
	return append([]Course(nil), c.courses...)
}

// ByCategory returns the courses of category, compared case-insensitively.
// An empty category returns everything.
func (c *Catalog) ByCategory(category string) []Course {
	if category == "" {
		return c.All()
	}

	var out []Course
	for _, course := range c.courses {
		if strings.EqualFold(course.Category, category) {
			out = append(out, course)
		}
	}
	return out
}

// Categories lists the distinct categories in order of first appearance.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, course := range c.courses {
		if !seen[course.Category] {
			seen[course.Category] = true
			out = append(out, course.Category)
		}
	}
	return out
}

// Get looks a course up by id.
func (c *Catalog) Get(id string) (Course, bool) {
	for _, course := range c.courses {
		if course.ID == id {
			return course, true
		}
	}
	return Course{}, false
}

// Status classifies how many seats are left.
type Status string

const (
	StatusAvailable Status = "available"
	StatusLastSpots Status = "last_spots"
	StatusSoldOut   Status = "sold_out"
)

// LastSpotsThreshold is the remaining-seat count at or below which a course
// is flagged as having its last spots.
const LastSpotsThreshold = 5

// StatusOf returns the availability status for a remaining-seat count.
func StatusOf(remaining int) Status {
	switch {
	case remaining <= 0:
		return StatusSoldOut
	case remaining <= LastSpotsThreshold:
		return StatusLastSpots
	default:
		return StatusAvailable
	}
}

// FilledPercent is the share of taken seats, clamped to [0, 100].
func FilledPercent(capacity, remaining int) int {
	p := float64(capacity-remaining) / float64(max(1, capacity)) * 100
	return int(min(100, max(0, p)))
}

// Availability is a backend availability row decorated for display.
type Availability struct {
	backend.CourseAvailability
	Status        Status `json:"status"`
	FilledPercent int    `json:"filledPercent"`
	Label         string `json:"label"`
}

// Decorate adds status, occupancy and a display label to each row, with
// start times shown in loc.
func Decorate(rows []backend.CourseAvailability, loc *time.Location) []Availability {
	out := make([]Availability, len(rows))
	for i, r := range rows {
		out[i] = Availability{
			CourseAvailability: r,
			Status:             StatusOf(r.Remaining),
			FilledPercent:      FilledPercent(r.Capacity, r.Remaining),
			Label:              CourseLabel(r.Name, &r.StartsAt, loc),
		}
	}
	return out
}

// CourseLabel renders "name (dd/mm/yyyy hh:mm)". Without a start time the
// bare name is returned.
func CourseLabel(name string, startsAt *time.Time, loc *time.Location) string {
	if startsAt == nil || startsAt.IsZero() {
		return name
	}
	return name + " (" + FormatDateTime(*startsAt, loc) + ")"
}

// FormatDateTime renders t as "dd/mm/yyyy hh:mm" in loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006 15:04")
}
