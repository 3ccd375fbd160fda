// Package payment derives a bounded monetary estimate for completed work.
// The engine asks the generative provider for a structured estimate with
// retry and exponential backoff, clamps the result into sane bounds, and
// falls back to a closed-form rule when the provider is exhausted or the
// result is unusable. It never returns an error: payment suggestions are
// advisory and must not block the workflow that triggered them.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cobaltline/foreman/metrics"
	"github.com/cobaltline/foreman/provider"
	"github.com/cobaltline/foreman/store"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
	defaultHistoryLimit   = 10

	fallbackConfidence = 0.6

	// Bounds on any estimate, as multiples of hours x rate.
	lowerBoundFactor = 0.5
	upperBoundFactor = 2.0
)

// EmployeeSnapshot is the performance view of the employee being paid.
type EmployeeSnapshot struct {
	ID               string
	Name             string
	PerformanceScore float64 // [0,1]
	OnTimeRate       float64 // [0,1]
	QualityScore     float64 // [0,1]
	HourlyRate       float64
	TasksCompleted   int
}

// TaskSnapshot is the completion view of the task being paid for.
type TaskSnapshot struct {
	ID             string
	Title          string
	Priority       store.Priority
	EstimatedHours float64
	ActualHours    float64 // 0 means not logged
	Complexity     float64 // >= 1.0
}

// Factors is the breakdown of contributing inputs to an estimate.
type Factors struct {
	BaseHours             float64 `json:"base_hours"`
	PerformanceMultiplier float64 `json:"performance_multiplier"`
	ComplexityMultiplier  float64 `json:"complexity_multiplier"`
	EffectiveRate         float64 `json:"effective_rate"`
}

// Estimate is a suggested payment amount. The caller decides whether to
// persist it.
type Estimate struct {
	Amount        float64 `json:"amount"` // rounded to cents
	Confidence    float64 `json:"confidence"`
	Factors       Factors `json:"factors"`
	Justification string  `json:"justification"`
	Fallback      bool    `json:"fallback"` // true when the closed-form rule was used
}

// Config configures an Estimator.
type Config struct {
	Provider       provider.Provider
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	MaxAttempts    int           // generative attempts before fallback; default 3
	InitialBackoff time.Duration // first retry delay, doubled per attempt; default 1s
	HistoryLimit   int           // most recent payments supplied as context; default 10
}

// Estimator produces payment estimates.
type Estimator struct {
	provider       provider.Provider
	logger         *slog.Logger
	metrics        *metrics.Metrics
	maxAttempts    int
	initialBackoff time.Duration
	historyLimit   int
}

// New creates an Estimator, applying defaults for zero config fields.
func New(cfg Config) *Estimator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Estimator{
		provider:       cfg.Provider,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		historyLimit:   cfg.HistoryLimit,
	}
}

// Estimate suggests a payment for the given completed work. The amount always
// lies within [0.5, 2.0] x baseHours x hourlyRate regardless of which path
// produced it.
func (e *Estimator) Estimate(ctx context.Context, emp EmployeeSnapshot, task TaskSnapshot, history []*store.HistoricalPayment) Estimate {
	baseHours := task.ActualHours
	if baseHours <= 0 {
		baseHours = task.EstimatedHours
	}
	minAmount := baseHours * emp.HourlyRate * lowerBoundFactor
	maxAmount := baseHours * emp.HourlyRate * upperBoundFactor

	if len(history) > e.historyLimit {
		history = history[:e.historyLimit]
	}

	if e.provider != nil {
		gen, err := e.generateWithRetry(ctx, emp, task, history, baseHours)
		if err == nil {
			amount := clampToCents(gen.Amount, minAmount, maxAmount)
			return Estimate{
				Amount:        amount,
				Confidence:    clamp(gen.Confidence, 0, 1),
				Factors:       e.factors(emp, task, baseHours, amount),
				Justification: gen.Reasoning,
			}
		}
		e.logger.Warn("generative estimate unavailable, using fallback",
			slog.String("task", task.ID), slog.Any("err", err))
	}

	return e.fallback(emp, task, baseHours, minAmount, maxAmount)
}

// genEstimate is the structured result expected from the provider.
type genEstimate struct {
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Factors    struct {
		BaseHours             float64 `json:"base_hours"`
		PerformanceMultiplier float64 `json:"performance_multiplier"`
		ComplexityMultiplier  float64 `json:"complexity_multiplier"`
		EffectiveRate         float64 `json:"effective_rate"`
	} `json:"factors"`
}

// generateWithRetry attempts the generative call up to maxAttempts times with
// exponential backoff between attempts. A call that errors or returns an
// unparsable result counts as a failed attempt.
func (e *Estimator) generateWithRetry(ctx context.Context, emp EmployeeSnapshot, task TaskSnapshot, history []*store.HistoricalPayment, baseHours float64) (*genEstimate, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.initialBackoff
	bo.RandomizationFactor = 0
	bo.Multiplier = 2

	op := func() (*genEstimate, error) {
		return e.generate(ctx, emp, task, history, baseHours)
	}
	return backoff.RetryWithData(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.maxAttempts-1)), ctx))
}

func (e *Estimator) generate(ctx context.Context, emp EmployeeSnapshot, task TaskSnapshot, history []*store.HistoricalPayment, baseHours float64) (*genEstimate, error) {
	resp, err := e.provider.Chat(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: estimatorSystemPrompt},
		{Role: provider.RoleUser, Content: buildPrompt(emp, task, history, baseHours)},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("estimator call: %w", err)
	}

	gen, err := parseGenEstimate(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("estimator response: %w", err)
	}
	return gen, nil
}

const estimatorSystemPrompt = `You are a payment estimation engine for completed tasks.
Respond with a single JSON object and nothing else, in this exact shape:
{"amount": <number>, "confidence": <0..1>, "reasoning": "<text>", "factors": {"base_hours": <number>, "performance_multiplier": <number>, "complexity_multiplier": <number>, "effective_rate": <number>}}`

func buildPrompt(emp EmployeeSnapshot, task TaskSnapshot, history []*store.HistoricalPayment, baseHours float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Employee: %s\n", emp.Name)
	fmt.Fprintf(&b, "Performance score: %.2f, on-time rate: %.2f, quality score: %.2f\n",
		emp.PerformanceScore, emp.OnTimeRate, emp.QualityScore)
	fmt.Fprintf(&b, "Hourly rate: %.2f, tasks completed: %d\n", emp.HourlyRate, emp.TasksCompleted)
	fmt.Fprintf(&b, "\nTask: %s\n", task.Title)
	fmt.Fprintf(&b, "Priority: %s, complexity multiplier: %.2f\n", task.Priority, task.Complexity)
	fmt.Fprintf(&b, "Hours worked: %.2f (estimated %.2f)\n", baseHours, task.EstimatedHours)

	if len(history) > 0 {
		b.WriteString("\nRecent payments for this employee (newest first):\n")
		for _, p := range history {
			fmt.Fprintf(&b, "- amount %.2f, employee performance at the time %.2f, status %s\n",
				p.Amount, p.EmployeePerformance, p.Status)
		}
	}
	b.WriteString("\nSuggest a fair payment for this completed task.")
	return b.String()
}

// parseGenEstimate extracts the JSON object from the model output. Models
// sometimes wrap the object in prose; take the outermost braces.
func parseGenEstimate(content string) (*genEstimate, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in %q", truncate(content, 80))
	}
	var gen genEstimate
	if err := json.Unmarshal([]byte(content[start:end+1]), &gen); err != nil {
		return nil, fmt.Errorf("parse estimate: %w", err)
	}
	if gen.Amount <= 0 {
		return nil, fmt.Errorf("non-positive amount %v", gen.Amount)
	}
	return &gen, nil
}

// fallback computes the closed-form estimate. It is deterministic and
// never fails.
func (e *Estimator) fallback(emp EmployeeSnapshot, task TaskSnapshot, baseHours, minAmount, maxAmount float64) Estimate {
	e.metrics.IncEstimatorFallback()

	perf := performanceMultiplier(emp)
	bonus := priorityBonus(task.Priority)
	amount := clampToCents(baseHours*emp.HourlyRate*perf*task.Complexity*bonus, minAmount, maxAmount)

	return Estimate{
		Amount:     amount,
		Confidence: fallbackConfidence,
		Factors:    e.factors(emp, task, baseHours, amount),
		Justification: fmt.Sprintf(
			"Rule-based estimate: %.2f hours x %.2f/h x %.3f performance x %.2f complexity x %.2f priority bonus.",
			baseHours, emp.HourlyRate, perf, task.Complexity, bonus),
		Fallback: true,
	}
}

func (e *Estimator) factors(emp EmployeeSnapshot, task TaskSnapshot, baseHours, amount float64) Factors {
	f := Factors{
		BaseHours:             baseHours,
		PerformanceMultiplier: performanceMultiplier(emp),
		ComplexityMultiplier:  task.Complexity,
	}
	if baseHours > 0 {
		f.EffectiveRate = round2(amount / baseHours)
	}
	return f
}

func performanceMultiplier(emp EmployeeSnapshot) float64 {
	return 0.4*emp.PerformanceScore + 0.3*emp.OnTimeRate + 0.3*emp.QualityScore
}

func priorityBonus(p store.Priority) float64 {
	switch p {
	case store.PriorityHigh:
		return 1.10
	case store.PriorityMedium:
		return 1.05
	}
	return 1.00
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// clampToCents clamps v into [lo, hi] narrowed to whole-cent bounds, then
// rounds to cents. Rounding after clamping against raw bounds could land the
// amount a fraction of a cent outside them; cent-aligned bounds cannot be
// escaped by rounding.
func clampToCents(v, lo, hi float64) float64 {
	lo = math.Ceil(lo*100) / 100
	hi = math.Floor(hi*100) / 100
	return round2(clamp(v, lo, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
