package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults for optional sensor fields.
const (
	DefaultOffsetMinutes = 0
	DefaultLimit         = 10
)

// SensorsFile is the YAML sensor list.
type SensorsFile struct {
	Predictions []Prediction `yaml:"predictions" validate:"dive"`
}

// Prediction configures one stop pair. Pointer fields distinguish "unset"
// from an explicit zero.
type Prediction struct {
	DepartFrom    string `yaml:"depart_from" validate:"required"`
	ArriveAt      string `yaml:"arrive_at" validate:"required,nefield=DepartFrom"`
	Route         string `yaml:"route" validate:"required"`
	ReturnTrips   bool   `yaml:"return_trips"`
	OffsetMinutes *int   `yaml:"offset_minutes" validate:"omitempty,gte=0"`
	Limit         *int   `yaml:"limit" validate:"omitempty,gt=0"`
	Name          string `yaml:"name"`
	Feed          string `yaml:"feed" validate:"omitempty,oneof=schedules predictions gtfs-rt"`
	FeedURL       string `yaml:"feed_url" validate:"required_if=Feed gtfs-rt"`
}

// SensorSpec is one fully defaulted sensor. A Prediction with return_trips
// expands into two specs.
type SensorSpec struct {
	Name          string
	DepartFrom    string
	ArriveAt      string
	Route         string
	OffsetMinutes int
	Limit         int
	Feed          string
	FeedURL       string
	Return        bool
}

// DefaultName is the sensor name used when none is configured.
func DefaultName(departFrom, arriveAt string) string {
	return strings.ReplaceAll(fmt.Sprintf("mbta_%s_to_%s", departFrom, arriveAt), " ", "_")
}

// LoadSensors reads and validates the sensor list at path.
func LoadSensors(path string) ([]SensorSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sensors file: %w", err)
	}
	return ParseSensors(data)
}

// ParseSensors validates a YAML sensor list and expands it into specs.
func ParseSensors(data []byte) ([]SensorSpec, error) {
	var f SensorsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sensors yaml: %w", err)
	}
	if len(f.Predictions) == 0 {
		return nil, errors.New("sensors file has no predictions")
	}

	for i, p := range f.Predictions {
		if err := Validate(p); err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
	}

	var specs []SensorSpec
	seen := make(map[string]bool)
	for _, p := range f.Predictions {
		for _, s := range p.Expand() {
			if seen[s.Name] {
				return nil, fmt.Errorf("duplicate sensor name %q", s.Name)
			}
			seen[s.Name] = true
			specs = append(specs, s)
		}
	}
	return specs, nil
}

var validate = validator.New()

// Validate checks one prediction entry.
func Validate(p Prediction) error {
	return validate.Struct(p)
}

// Expand applies defaults and adds the return leg when requested.
func (p Prediction) Expand() []SensorSpec {
	offset := DefaultOffsetMinutes
	if p.OffsetMinutes != nil {
		offset = *p.OffsetMinutes
	}
	limit := DefaultLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	feed := p.Feed
	if feed == "" {
		feed = "schedules"
	}

	out := SensorSpec{
		Name:          p.Name,
		DepartFrom:    p.DepartFrom,
		ArriveAt:      p.ArriveAt,
		Route:         p.Route,
		OffsetMinutes: offset,
		Limit:         limit,
		Feed:          feed,
		FeedURL:       p.FeedURL,
	}
	if out.Name == "" {
		out.Name = DefaultName(p.DepartFrom, p.ArriveAt)
	}
	specs := []SensorSpec{out}

	if p.ReturnTrips {
		back := out
		back.DepartFrom, back.ArriveAt = p.ArriveAt, p.DepartFrom
		back.Return = true
		if p.Name == "" {
			back.Name = DefaultName(back.DepartFrom, back.ArriveAt)
		} else {
			back.Name = p.Name + "_return"
		}
		specs = append(specs, back)
	}
	return specs
}
