package forecast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"smartfin/internal/core"
	"smartfin/internal/llm"
	"smartfin/internal/watch"
)

func rec(typ core.TransactionType, amount float64, cat string) core.Transaction {
	return core.Transaction{Type: typ, Amount: core.Amount(amount), Category: cat, Date: core.NewDate(2025, 3, 1)}
}

func history() []core.Transaction {
	return []core.Transaction{
		rec(core.Income, 2000, "Salary"),
		rec(core.Expense, 300, "Food"),
		rec(core.Expense, 250, "Food"),
		rec(core.Expense, 900, "Housing"),
		rec(core.Income, 500, "Freelance"),
	}
}

func profile() core.UserProfile {
	p := core.DefaultProfile()
	p.MonthlyIncomeGoal = 3000
	p.MonthlyExpenseLimit = 1500
	return p
}

func TestFallback(t *testing.T) {
	got := Fallback([]core.Transaction{rec(core.Income, 100, "Salary"), rec(core.Expense, 40, "Food")}, watch.DefaultThresholds())
	if got.Prediction != 60 {
		t.Fatalf("prediction = %v, want 60", got.Prediction)
	}
	if got.Recommendation != FallbackRecommendation || got.Source != core.SourceFallback {
		t.Fatalf("unexpected result %+v", got)
	}

	empty := Fallback(nil, watch.DefaultThresholds())
	if empty.Prediction != 0 || !reflect.DeepEqual(empty.WatchCategories, []string{watch.NoExpensesMessage}) {
		t.Fatalf("unexpected empty fallback %+v", empty)
	}
}

func TestFallbackUsesLastFiveInSliceOrder(t *testing.T) {
	var txs []core.Transaction
	for i := 1; i <= 7; i++ {
		txs = append(txs, rec(core.Income, float64(i), "Salary"))
	}
	txs = append(txs, rec(core.Expense, 1000, "Food"))
	for i := 0; i < 5; i++ {
		txs = append(txs, rec(core.Expense, 1, "Food"))
	}
	// income 3+4+5+6+7 = 25, expense: the 1000 falls out of the window.
	if got := Fallback(txs, watch.DefaultThresholds()); got.Prediction != 20 {
		t.Fatalf("prediction = %v, want 20", got.Prediction)
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		in, want string
		err      error
	}{
		{`{"a":1}`, `{"a":1}`, nil},
		{"Here you go:\n```json\n{\"a\": {\"b\": 2}}\n```\nThanks", `{"a": {"b": 2}}`, nil},
		{"no json here", "", ErrNoJSON},
		{"} backwards {", "", ErrNoJSON},
		{"{ unclosed", "", ErrNoJSON},
	}
	for _, tc := range cases {
		got, err := ExtractJSONObject(tc.in)
		if err != tc.err || got != tc.want {
			t.Fatalf("ExtractJSONObject(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestParsePrediction(t *testing.T) {
	got, err := ParsePrediction(`Sure! {"prediction": 1250.5, "watchCategories": ["Food", " "], "recommendation": " Cook at home "}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := core.PredictionResult{Prediction: 1250.5, WatchCategories: []string{"Food"}, Recommendation: "Cook at home", Source: core.SourceAI}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}

	for _, bad := range []string{
		"nothing",
		`{"prediction": "lots"}`,
		`{"watchCategories": []}`,
		`{"prediction": 1,}`,
	} {
		if _, err := ParsePrediction(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if _, err := ParsePrediction(`{"recommendation":"x"}`); !errors.Is(err, ErrMissingPrediction) {
		t.Fatalf("want ErrMissingPrediction, got %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 12; i++ {
		tx := rec(core.Expense, 10, "Food")
		tx.ID = "tx-" + string(rune('a'+i))
		txs = append(txs, tx)
	}
	prompt := BuildPrompt(txs, profile(), []string{"Food"})

	for _, want := range []string{
		"Monthly Income Goal: 3000.00",
		"Monthly Expense Limit: 1500.00",
		"Currency: USD",
		"Total Expenses: 120.00",
		"Net Balance: -120.00",
		`"watchCategories": ["Food"]`,
		`"id":"tx-l"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, `"id":"tx-b"`) {
		t.Fatalf("prompt should only embed the last 10 records")
	}
}

func TestPredictUsesModel(t *testing.T) {
	var prompt string
	c := llm.Func(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return `{"prediction": 999, "watchCategories": ["A","B","C","D"], "recommendation": ""}`, nil
	})
	got := NewService(c).Predict(context.Background(), history(), profile())

	if got.Source != core.SourceAI || got.Prediction != 999 {
		t.Fatalf("unexpected result %+v", got)
	}
	if !reflect.DeepEqual(got.WatchCategories, []string{"A", "B", "C"}) {
		t.Fatalf("watch list not truncated: %q", got.WatchCategories)
	}
	if got.Recommendation != FallbackRecommendation {
		t.Fatalf("empty recommendation not filled: %q", got.Recommendation)
	}
	if !strings.Contains(prompt, "Total Income: 2500.00") {
		t.Fatalf("unexpected prompt %s", prompt)
	}
}

func TestPredictFillsEmptyWatchList(t *testing.T) {
	c := llm.Func(func(ctx context.Context, p string) (string, error) {
		return `{"prediction": 1, "recommendation": "ok"}`, nil
	})
	got := NewService(c).Predict(context.Background(), history(), profile())
	if !reflect.DeepEqual(got.WatchCategories, watch.Categories(history())) {
		t.Fatalf("got %q", got.WatchCategories)
	}
}

func TestPredictFallsBack(t *testing.T) {
	want := Fallback(history(), watch.DefaultThresholds())
	noAI := profile()
	noAI.AISuggestions = false

	var calls atomic.Int32
	failing := llm.Func(func(ctx context.Context, p string) (string, error) {
		calls.Add(1)
		return "", errors.New("connection refused")
	})
	garbage := llm.Func(func(ctx context.Context, p string) (string, error) {
		return "I cannot help with that.", nil
	})

	cases := []struct {
		name string
		svc  *Service
		txs  []core.Transaction
		p    core.UserProfile
	}{
		{"disabled", NewService(failing), history(), noAI},
		{"no provider", NewService(nil), history(), profile()},
		{"too few", NewService(failing), history()[:3], profile()},
		{"error", NewService(failing), history(), profile()},
		{"garbage", NewService(garbage), history(), profile()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.svc.Predict(context.Background(), tc.txs, tc.p)
			exp := want
			if len(tc.txs) != len(history()) {
				exp = Fallback(tc.txs, watch.DefaultThresholds())
			}
			if !reflect.DeepEqual(got, exp) {
				t.Fatalf("got %+v want %+v", got, exp)
			}
		})
	}
	if calls.Load() != 1 {
		t.Fatalf("model should be called only when allowed, got %d calls", calls.Load())
	}
}

func TestPredictHTTPFailuresFallBack(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer broken.Close()

	for name, url := range map[string]string{"timeout": slow.URL, "500": broken.URL} {
		t.Run(name, func(t *testing.T) {
			c, err := llm.NewChatClient(llm.Config{Endpoint: url, APIKey: "k", Timeout: 5 * time.Second})
			if err != nil {
				t.Fatal(err)
			}
			svc := NewService(c, WithTimeout(50*time.Millisecond))
			got := svc.Predict(context.Background(), history(), profile())
			if got.Source != core.SourceFallback {
				t.Fatalf("expected fallback, got %+v", got)
			}
		})
	}
}

func TestInsights(t *testing.T) {
	ref := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	got := NewService(nil).Insights(context.Background(), history(), profile(), ref, 0)
	if len(got.History) != DefaultHistoryMonths || got.History[len(got.History)-1].Month != "Mar 2025" {
		t.Fatalf("unexpected history %+v", got.History)
	}
	if len(got.Projection) != ProjectionMonths || got.Projection[0].Month != "Apr 2025" {
		t.Fatalf("unexpected projection %+v", got.Projection)
	}
	if got.Current.Net != 1050 || got.Prediction.Source != core.SourceFallback {
		t.Fatalf("unexpected insights %+v", got)
	}
	if len(got.Categories) != 2 || got.Categories[0].Category != "Housing" {
		t.Fatalf("unexpected breakdown %+v", got.Categories)
	}
}
