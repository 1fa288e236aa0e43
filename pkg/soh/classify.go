package soh

// Status is the result of classifying a health ratio. ColorTag and
// BackgroundTag are display labels only.
type Status struct {
	Category      Category `json:"category"`
	ColorTag      string   `json:"colorTag"`
	BackgroundTag string   `json:"backgroundTag"`
}

var statuses = map[Category]Status{
	Excellent: {Category: Excellent, ColorTag: "text-green-600", BackgroundTag: "bg-green-50"},
	Good:      {Category: Good, ColorTag: "text-lime-600", BackgroundTag: "bg-lime-50"},
	Moderate:  {Category: Moderate, ColorTag: "text-yellow-600", BackgroundTag: "bg-yellow-50"},
	Poor:      {Category: Poor, ColorTag: "text-orange-600", BackgroundTag: "bg-orange-50"},
	Critical:  {Category: Critical, ColorTag: "text-red-600", BackgroundTag: "bg-red-50"},
}

// thresholds are checked top-down; the first lower bound the ratio reaches wins.
var thresholds = []struct {
	min      float64
	category Category
}{
	{0.90, Excellent},
	{0.80, Good},
	{0.60, Moderate},
	{0.40, Poor},
}

// Classify maps a capacity-retention ratio to its health Status.
//
// Boundary values belong to the better category, so Classify(0.8) is Good.
// Ratios above 1 are Excellent and ratios below 0 are Critical. NaN never
// satisfies a lower bound and therefore falls through to Critical.
func Classify(ratio float64) Status {
	for _, t := range thresholds {
		if ratio >= t.min {
			return statuses[t.category]
		}
	}
	return statuses[Critical]
}

// StatusOf returns the display Status of a category. Unknown categories are
// reported as Critical.
func StatusOf(c Category) Status {
	if s, ok := statuses[c]; ok {
		return s
	}
	return statuses[Critical]
}

// LowerBound returns the smallest ratio that classifies as c. Critical has no
// lower bound and returns false.
func LowerBound(c Category) (float64, bool) {
	for _, t := range thresholds {
		if t.category == c {
			return t.min, true
		}
	}
	return 0, false
}
