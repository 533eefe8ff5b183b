package core

// CategoryAggregate holds the income and expense sums of one category.
// Total is income minus expense.
type CategoryAggregate struct {
	Category string  `json:"category"`
	Income   float64 `json:"income"`
	Expense  float64 `json:"expense"`
	Total    float64 `json:"total"`
}

// MonthlyPoint is one calendar month of a time series.
type MonthlyPoint struct {
	Month     string  `json:"month"`
	Year      int     `json:"year"`
	MonthNum  int     `json:"monthNumber"`
	Income    float64 `json:"income"`
	Expenses  float64 `json:"expenses"`
	Net       float64 `json:"net"`
	Projected bool    `json:"projected,omitempty"`
}

// PredictionSource tells whether a prediction came from the model or the
// local fallback.
type PredictionSource string

const (
	SourceAI       PredictionSource = "ai"
	SourceFallback PredictionSource = "fallback"
)

// PredictionResult is produced fresh for every request and never cached.
type PredictionResult struct {
	Prediction      float64          `json:"prediction"`
	WatchCategories []string         `json:"watchCategories"`
	Recommendation  string           `json:"recommendation"`
	Source          PredictionSource `json:"source,omitempty"`
}
