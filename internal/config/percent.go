package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Percent is a strategy amount written as "10%" in the config file.
type Percent float64

// ParsePercent accepts strings like "10%" or " 2.5 % ".
func ParsePercent(raw string) (Percent, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("strategy amount must not be empty")
	}
	number, ok := strings.CutSuffix(trimmed, "%")
	if !ok {
		return 0, fmt.Errorf(`strategy amount must be a percent string like "10%%"`)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(number), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percent strategy amount: %s", raw)
	}
	return Percent(value), nil
}

func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', -1, 64) + "%"
}

// MarshalYAML writes the percent form back.
func (p Percent) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

func (p Percent) validate(field string) error {
	value := float64(p)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s must be a finite number", field)
	}
	if value < 0 {
		return fmt.Errorf("%s must be >= 0", field)
	}
	return nil
}
