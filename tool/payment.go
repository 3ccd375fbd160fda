package tool

import (
	"context"
	"fmt"

	"github.com/cobaltline/foreman/fault"
	"github.com/cobaltline/foreman/payment"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/store"
)

// historyFetchLimit caps how many prior payments are fed to the estimator.
const historyFetchLimit = 10

// paidTask is the validated (task, assignee) pair payment tools operate on.
type paidTask struct {
	task     *store.TaskRecord
	employee *store.EmployeeRecord
}

// completedTask resolves a task reference and checks it is payable: completed
// and assigned. A disambiguation is returned via err for proposal callers.
func completedTask(ctx context.Context, resolver *resolve.Resolver, st store.Store, ref string) (*paidTask, error) {
	res, err := resolver.ResolveTask(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res.Ambiguous() {
		return nil, disambiguationErr(resolve.KindTask, ref, res.Candidates)
	}
	rec := res.Task
	if rec.Status != store.StatusCompleted {
		return nil, fault.New(fault.Validation, "task %q is %s, not completed; only completed tasks are payable",
			rec.Title, rec.Status)
	}
	if rec.AssigneeID == "" {
		return nil, fault.New(fault.Validation, "task %q has no assignee to pay", rec.Title)
	}
	emp, err := st.GetEmployee(ctx, rec.AssigneeID)
	if err != nil {
		return nil, err
	}
	return &paidTask{task: rec, employee: emp}, nil
}

func snapshots(p *paidTask) (payment.EmployeeSnapshot, payment.TaskSnapshot) {
	emp := payment.EmployeeSnapshot{
		ID:               p.employee.ID,
		Name:             p.employee.Name,
		PerformanceScore: p.employee.PerformanceScore,
		OnTimeRate:       p.employee.OnTimeRate,
		QualityScore:     p.employee.QualityScore,
		HourlyRate:       p.employee.HourlyRate,
		TasksCompleted:   p.employee.TasksCompleted,
	}
	task := payment.TaskSnapshot{
		ID:             p.task.ID,
		Title:          p.task.Title,
		Priority:       p.task.Priority,
		EstimatedHours: p.task.EstimatedHours,
		ActualHours:    p.task.ActualHours,
		Complexity:     p.task.Complexity,
	}
	return emp, task
}

// estimatePaymentTool suggests a payment for a completed task without
// recording anything.
type estimatePaymentTool struct {
	store     store.Store
	resolver  *resolve.Resolver
	estimator *payment.Estimator
}

func (t *estimatePaymentTool) Name() string { return "estimate_payment" }

func (t *estimatePaymentTool) Description() string {
	return "Suggest a fair payment amount for a completed task. Advisory only, nothing is recorded."
}

func (t *estimatePaymentTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Completed task title or id.", Required: true},
	}}
}

func (t *estimatePaymentTool) RequiresConfirmation() bool { return false }

func (t *estimatePaymentTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	p, err := completedTask(ctx, t.resolver, t.store, stringArg(args, "task"))
	if err != nil {
		return nil, err
	}
	history, err := t.store.PaymentsForEmployee(ctx, p.employee.ID, historyFetchLimit)
	if err != nil {
		return nil, err
	}
	emp, task := snapshots(p)
	est := t.estimator.Estimate(ctx, emp, task, history)
	return map[string]any{
		"task":     p.task.Title,
		"employee": p.employee.Name,
		"estimate": est,
	}, nil
}

// approvePaymentTool records an approved payment. Confirmation gated: the
// task and assignee are resolved and the amount fixed at proposal time.
type approvePaymentTool struct {
	store     store.Store
	resolver  *resolve.Resolver
	estimator *payment.Estimator
}

func (t *approvePaymentTool) Name() string { return "approve_payment" }

func (t *approvePaymentTool) Description() string {
	return "Approve and record a payment for a completed task. Requires explicit user confirmation. Omit amount to use the suggested estimate."
}

func (t *approvePaymentTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "task", Type: TypeString, Description: "Completed task title or id.", Required: true},
		{Name: "amount", Type: TypeNumber, Description: "Payment amount. Defaults to the estimated amount.", Min: ptr(0.01)},
		{Name: "employee", Type: TypeString, Description: "Bound internally at proposal time; do not set."},
	}}
}

func (t *approvePaymentTool) RequiresConfirmation() bool { return true }

func (t *approvePaymentTool) Propose(ctx context.Context, args map[string]any) (map[string]any, string, error) {
	p, err := completedTask(ctx, t.resolver, t.store, stringArg(args, "task"))
	if err != nil {
		return nil, "", err
	}

	amount, ok := numberArg(args, "amount")
	if !ok {
		history, err := t.store.PaymentsForEmployee(ctx, p.employee.ID, historyFetchLimit)
		if err != nil {
			return nil, "", err
		}
		emp, task := snapshots(p)
		amount = t.estimator.Estimate(ctx, emp, task, history).Amount
	}

	bound := map[string]any{
		"task":     p.task.ID,
		"employee": p.employee.ID,
		"amount":   amount,
	}
	desc := fmt.Sprintf("Approve a payment of %.2f to %s for task %q.",
		amount, p.employee.Name, p.task.Title)
	return bound, desc, nil
}

func (t *approvePaymentTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	taskID := stringArg(args, "task")
	employeeID := stringArg(args, "employee")
	amount, ok := numberArg(args, "amount")
	if !ok || employeeID == "" {
		return nil, fault.New(fault.Validation, "approve_payment must be executed from a confirmed proposal")
	}

	emp, err := t.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	rec := &store.HistoricalPayment{
		EmployeeID:          employeeID,
		TaskID:              taskID,
		Amount:              amount,
		Status:              store.PaymentApproved,
		EmployeePerformance: emp.PerformanceScore,
	}
	id, err := t.store.RecordPayment(ctx, rec)
	if err != nil {
		return nil, err
	}
	return t.store.GetPayment(ctx, id)
}

// markPaidTool settles an approved payment. Confirmation gated.
type markPaidTool struct {
	store store.Store
}

func (t *markPaidTool) Name() string { return "mark_paid" }

func (t *markPaidTool) Description() string {
	return "Mark an approved payment as paid out. Requires explicit user confirmation."
}

func (t *markPaidTool) Schema() Schema {
	return Schema{Fields: []Field{
		{Name: "payment", Type: TypeString, Description: "Payment id.", Required: true},
	}}
}

func (t *markPaidTool) RequiresConfirmation() bool { return true }

func (t *markPaidTool) Propose(ctx context.Context, args map[string]any) (map[string]any, string, error) {
	id := stringArg(args, "payment")
	rec, err := t.store.GetPayment(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if rec.Status == store.PaymentPaid {
		return nil, "", fault.New(fault.Validation, "payment %s is already paid", id)
	}
	emp, err := t.store.GetEmployee(ctx, rec.EmployeeID)
	if err != nil {
		return nil, "", err
	}
	desc := fmt.Sprintf("Mark the payment of %.2f to %s as paid.", rec.Amount, emp.Name)
	return map[string]any{"payment": rec.ID}, desc, nil
}

func (t *markPaidTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "payment")
	if err := t.store.SetPaymentStatus(ctx, id, store.PaymentPaid); err != nil {
		return nil, err
	}
	return t.store.GetPayment(ctx, id)
}
