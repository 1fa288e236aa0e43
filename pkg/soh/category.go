package soh

import (
	"fmt"
	"strings"
)

// Category is a discrete battery health bucket. Higher values are healthier.
type Category int

const (
	Critical Category = iota
	Poor
	Moderate
	Good
	Excellent
)

var categoryNames = [...]string{
	Critical:  "Critical",
	Poor:      "Poor",
	Moderate:  "Moderate",
	Good:      "Good",
	Excellent: "Excellent",
}

// Categories returns all categories from best to worst.
func Categories() []Category {
	return []Category{Excellent, Good, Moderate, Poor, Critical}
}

func (c Category) String() string {
	if c < Critical || c > Excellent {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	return c >= Critical && c <= Excellent
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory parses a category name, ignoring case and surrounding spaces.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for i, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return Category(i), nil
		}
	}
	return Critical, fmt.Errorf("unknown health category %q", s)
}
