package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"smartfin/internal/core"
)

var (
	// ErrNoJSON means the text holds no {...} span at all.
	ErrNoJSON = errors.New("no JSON object in model response")
	// ErrMissingPrediction means the object has no numeric "prediction".
	ErrMissingPrediction = errors.New("model response has no prediction")
)

// ExtractJSONObject returns the span from the first '{' to the last '}'.
// Code fences and chatter around the object are dropped; whether the span
// is valid JSON is left to the caller.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

type modelReply struct {
	Prediction      *float64 `json:"prediction"`
	WatchCategories []string `json:"watchCategories"`
	Recommendation  string   `json:"recommendation"`
}

// ParsePrediction reads a PredictionResult out of free model text.
// Watch categories and recommendation may be missing and are returned
// empty; the prediction itself is required.
func ParsePrediction(text string) (core.PredictionResult, error) {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return core.PredictionResult{}, err
	}
	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return core.PredictionResult{}, fmt.Errorf("decode model JSON: %w", err)
	}
	if reply.Prediction == nil || math.IsNaN(*reply.Prediction) || math.IsInf(*reply.Prediction, 0) {
		return core.PredictionResult{}, ErrMissingPrediction
	}

	cats := make([]string, 0, len(reply.WatchCategories))
	for _, c := range reply.WatchCategories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	return core.PredictionResult{
		Prediction:      *reply.Prediction,
		WatchCategories: cats,
		Recommendation:  strings.TrimSpace(reply.Recommendation),
		Source:          core.SourceAI,
	}, nil
}
