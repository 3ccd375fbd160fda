package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cobaltline/foreman/metrics"
	"github.com/cobaltline/foreman/provider/mock"
	"github.com/cobaltline/foreman/store"
)

var (
	testEmployee = EmployeeSnapshot{
		ID:               "emp-1",
		Name:             "Jane Doe",
		PerformanceScore: 0.9,
		OnTimeRate:       0.8,
		QualityScore:     0.85,
		HourlyRate:       30,
		TasksCompleted:   12,
	}
	testTask = TaskSnapshot{
		ID:             "task-1",
		Title:          "Ship the feature",
		Priority:       store.PriorityHigh,
		EstimatedHours: 8,
		Complexity:     1.0,
	}
)

func fastEstimator(p *mock.Provider) *Estimator {
	cfg := Config{InitialBackoff: time.Millisecond}
	if p != nil {
		cfg.Provider = p
	}
	return New(cfg)
}

func TestFallbackIsDeterministic(t *testing.T) {
	e := fastEstimator(nil)

	est := e.Estimate(context.Background(), testEmployee, testTask, nil)
	if !est.Fallback {
		t.Fatal("expected the fallback path with no provider")
	}
	// 8h x 30/h x (0.4*0.9 + 0.3*0.8 + 0.3*0.85) x 1.0 complexity x 1.10
	// high-priority bonus = 225.72.
	if est.Amount != 225.72 {
		t.Errorf("amount = %v, want 225.72", est.Amount)
	}
	if est.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", est.Confidence)
	}

	again := e.Estimate(context.Background(), testEmployee, testTask, nil)
	if again.Amount != est.Amount {
		t.Errorf("fallback not deterministic: %v then %v", est.Amount, again.Amount)
	}
}

func TestFallbackAfterRetryExhaustion(t *testing.T) {
	upstream := errors.New("provider down")
	p := mock.New(mock.Fail(upstream), mock.Fail(upstream), mock.Fail(upstream))
	e := fastEstimator(p)

	est := e.Estimate(context.Background(), testEmployee, testTask, nil)
	if !est.Fallback {
		t.Fatal("expected fallback after exhausted retries")
	}
	if p.Calls() != 3 {
		t.Errorf("provider called %d times, want 3", p.Calls())
	}
	if est.Amount != 225.72 || est.Confidence != 0.6 {
		t.Errorf("fallback estimate = %+v", est)
	}
}

func TestGenerativeEstimateUsed(t *testing.T) {
	p := mock.New(mock.Text(`{"amount": 250, "confidence": 0.9, "reasoning": "solid work", "factors": {"base_hours": 8}}`))
	e := fastEstimator(p)

	est := e.Estimate(context.Background(), testEmployee, testTask, nil)
	if est.Fallback {
		t.Fatal("unexpected fallback")
	}
	if est.Amount != 250 || est.Confidence != 0.9 {
		t.Errorf("estimate = %+v", est)
	}
	if est.Justification != "solid work" {
		t.Errorf("justification = %q", est.Justification)
	}
}

func TestGenerativeEstimateClampedToBounds(t *testing.T) {
	// 8h x 30/h gives bounds [120, 480]; a wild 10000 must clamp to 480.
	p := mock.New(mock.Text(`{"amount": 10000, "confidence": 0.95, "reasoning": "generous"}`))
	e := fastEstimator(p)

	est := e.Estimate(context.Background(), testEmployee, testTask, nil)
	if est.Amount != 480 {
		t.Errorf("amount = %v, want clamped 480", est.Amount)
	}

	p = mock.New(mock.Text(`{"amount": 1, "confidence": 0.95, "reasoning": "stingy"}`))
	e = fastEstimator(p)
	est = e.Estimate(context.Background(), testEmployee, testTask, nil)
	if est.Amount != 120 {
		t.Errorf("amount = %v, want clamped 120", est.Amount)
	}
}

func TestUnparsableResponseRetries(t *testing.T) {
	p := mock.New(
		mock.Text("I think a fair payment would be around $250, give or take."),
		mock.Text(`{"amount": 250, "confidence": 0.8, "reasoning": "ok"}`),
	)
	e := fastEstimator(p)

	est := e.Estimate(context.Background(), testEmployee, testTask, nil)
	if est.Fallback || est.Amount != 250 {
		t.Errorf("estimate = %+v, want generative 250", est)
	}
	if p.Calls() != 2 {
		t.Errorf("provider called %d times, want 2", p.Calls())
	}
}

func TestJSONWrappedInProseIsAccepted(t *testing.T) {
	p := mock.New(mock.Text(`Here's my estimate: {"amount": 200, "confidence": 0.7, "reasoning": "fine"} Hope that helps!`))
	e := fastEstimator(p)

	est := e.Estimate(context.Background(), testEmployee, testTask, nil)
	if est.Fallback || est.Amount != 200 {
		t.Errorf("estimate = %+v, want 200", est)
	}
}

func TestFallbackIncrementsCounter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	upstream := errors.New("provider down")
	p := mock.New(mock.Fail(upstream), mock.Fail(upstream), mock.Fail(upstream))
	e := New(Config{Provider: p, Metrics: m, InitialBackoff: time.Millisecond})

	e.Estimate(context.Background(), testEmployee, testTask, nil)
	if got := testutil.ToFloat64(m.EstimatorFallbacks); got != 1 {
		t.Fatalf("fallback counter = %v, want 1", got)
	}

	// A successful generative estimate leaves the counter alone.
	p = mock.New(mock.Text(`{"amount": 250, "confidence": 0.8, "reasoning": "ok"}`))
	e = New(Config{Provider: p, Metrics: m, InitialBackoff: time.Millisecond})
	e.Estimate(context.Background(), testEmployee, testTask, nil)
	if got := testutil.ToFloat64(m.EstimatorFallbacks); got != 1 {
		t.Fatalf("fallback counter = %v after generative success, want still 1", got)
	}
}

func TestClampedAmountStaysWithinSubCentBounds(t *testing.T) {
	// 8h x 33.333/h gives raw bounds [133.332, 533.328]; the clamped and
	// rounded amount must not slip half a cent outside them.
	emp := testEmployee
	emp.HourlyRate = 33.333
	lo, hi := 8*emp.HourlyRate*0.5, 8*emp.HourlyRate*2

	p := mock.New(mock.Text(`{"amount": 1, "confidence": 0.9, "reasoning": "low"}`))
	e := fastEstimator(p)
	est := e.Estimate(context.Background(), emp, testTask, nil)
	if est.Amount < lo {
		t.Errorf("amount %v below lower bound %v", est.Amount, lo)
	}
	if est.Amount != 133.34 {
		t.Errorf("amount = %v, want 133.34 (lower bound rounded up to a cent)", est.Amount)
	}

	p = mock.New(mock.Text(`{"amount": 10000, "confidence": 0.9, "reasoning": "high"}`))
	e = fastEstimator(p)
	est = e.Estimate(context.Background(), emp, testTask, nil)
	if est.Amount > hi {
		t.Errorf("amount %v above upper bound %v", est.Amount, hi)
	}
	if est.Amount != 533.32 {
		t.Errorf("amount = %v, want 533.32 (upper bound rounded down to a cent)", est.Amount)
	}
}

func TestActualHoursPreferredOverEstimate(t *testing.T) {
	e := fastEstimator(nil)
	task := testTask
	task.ActualHours = 16

	est := e.Estimate(context.Background(), testEmployee, task, nil)
	if est.Factors.BaseHours != 16 {
		t.Errorf("base hours = %v, want 16 (actual)", est.Factors.BaseHours)
	}
}

func TestEstimateAlwaysWithinBounds(t *testing.T) {
	employees := []EmployeeSnapshot{
		{HourlyRate: 10, PerformanceScore: 0.1, OnTimeRate: 0.1, QualityScore: 0.1},
		{HourlyRate: 200, PerformanceScore: 1, OnTimeRate: 1, QualityScore: 1},
		testEmployee,
	}
	tasks := []TaskSnapshot{
		{EstimatedHours: 1, Complexity: 1, Priority: store.PriorityLow},
		{EstimatedHours: 40, Complexity: 3, Priority: store.PriorityHigh},
		testTask,
	}
	e := fastEstimator(nil)
	for _, emp := range employees {
		for _, task := range tasks {
			est := e.Estimate(context.Background(), emp, task, nil)
			base := task.ActualHours
			if base <= 0 {
				base = task.EstimatedHours
			}
			lo, hi := base*emp.HourlyRate*0.5, base*emp.HourlyRate*2
			if est.Amount < lo || est.Amount > hi {
				t.Errorf("amount %v outside [%v, %v] for emp=%+v task=%+v",
					est.Amount, lo, hi, emp, task)
			}
		}
	}
}

func TestHistoryTruncatedToLimit(t *testing.T) {
	var history []*store.HistoricalPayment
	for i := 0; i < 25; i++ {
		history = append(history, &store.HistoricalPayment{Amount: float64(100 + i), EmployeePerformance: 0.8, Status: store.PaymentPaid})
	}
	p := mock.New(mock.Text(`{"amount": 250, "confidence": 0.8, "reasoning": "ok"}`))
	e := New(Config{Provider: p, InitialBackoff: time.Millisecond, HistoryLimit: 5})

	e.Estimate(context.Background(), testEmployee, testTask, history)

	msgs := p.LastMessages()
	prompt := msgs[len(msgs)-1].Content
	count := 0
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "- ") {
			count++
		}
	}
	if count != 5 {
		t.Errorf("prompt listed %d history lines, want 5", count)
	}
}
