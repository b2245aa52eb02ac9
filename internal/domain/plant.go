package domain

// Plant is one catalog entry eligible for recommendation.
// Records are seeded from the CSV dataset and treated as read-only afterwards.
type Plant struct {
	ID            int64
	Name          string
	Growth        string
	Soil          string
	Sunlight      string
	Watering      string
	Fertilization string
	ImageURL      string
}

// HasImage reports whether the plant carries a non-empty image reference.
func (p Plant) HasImage() bool {
	return p.ImageURL != ""
}

// Category identifies one questionnaire dimension. The values double as the
// token namespace prefixes in the lexical corpus.
type Category string

const (
	CategoryWater      Category = "water"
	CategorySun        Category = "sun"
	CategorySoil       Category = "soil"
	CategoryFertilizer Category = "fertilizer"
	CategoryGrowth     Category = "growth"
)

// DontCare is the sentinel answer value excluded from query building.
const DontCare = "don't care"

// Question is one questionnaire entry with its selectable answer options.
type Question struct {
	ID       int64
	Category Category
	Text     string
	Options  []Answer
}

// Answer is one selectable answer option for a question.
type Answer struct {
	ID         int64
	QuestionID int64
	Category   Category
	Value      string
}
