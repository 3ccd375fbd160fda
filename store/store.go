// Package store defines the record model and persistence for the
// task-management datastore: employees, tasks, their skill tags, and
// historical payments.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by Store implementations when a record does not
// exist. Callers distinguish it from infrastructure failures via errors.Is.
var ErrNotFound = errors.New("record not found")

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusInvited   TaskStatus = "invited"
	StatusAccepted  TaskStatus = "accepted"
	StatusOngoing   TaskStatus = "ongoing"
	StatusCompleted TaskStatus = "completed"
	StatusRejected  TaskStatus = "rejected"
)

// ValidTaskStatus reports whether s is a member of the closed status set.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInvited, StatusAccepted, StatusOngoing, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Priority determines task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// EmployeeRecord is a member of the workforce directory.
// Performance fields are owned by the datastore; the assistant core only
// reads them and computes derived values.
type EmployeeRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Department  string   `json:"department"`
	Designation string   `json:"designation"`
	Skills      []string `json:"skills"` // unique, lower-cased, insertion ordered
	Available   bool     `json:"available"`

	// Workload is the count of the employee's open tasks, derived at read time.
	Workload int `json:"workload"`

	PerformanceScore float64 `json:"performance_score"` // [0,1]
	OnTimeRate       float64 `json:"on_time_rate"`      // [0,1]
	QualityScore     float64 `json:"quality_score"`     // [0,1]
	HourlyRate       float64 `json:"hourly_rate"`       // non-negative
	TasksCompleted   int     `json:"tasks_completed"`

	CreatedAt time.Time `json:"created_at"`
}

// TaskRecord is a unit of work tracked by the system.
// Status transitions are validated by the datastore layer; the assistant core
// respects them when filtering and mutating.
type TaskRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Progress    int        `json:"progress"` // percent, [0,100]
	Deadline    *time.Time `json:"deadline,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`

	RequiredSkills []string `json:"required_skills"`
	EstimatedHours float64  `json:"estimated_hours"`
	ActualHours    float64  `json:"actual_hours"` // 0 means not logged
	Complexity     float64  `json:"complexity"`   // multiplier, >= 1.0

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PaymentStatus represents the resolution state of a payment record.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentPaid     PaymentStatus = "paid"
)

// HistoricalPayment is a recorded payment for a completed task.
type HistoricalPayment struct {
	ID         string        `json:"id"`
	EmployeeID string        `json:"employee_id"`
	TaskID     string        `json:"task_id"`
	Amount     float64       `json:"amount"`
	Status     PaymentStatus `json:"status"`

	// EmployeePerformance is the employee's performance score at the time the
	// payment was recorded, not a constant.
	EmployeePerformance float64 `json:"employee_performance"`

	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// TaskFilter controls which tasks are returned by ListTasks.
type TaskFilter struct {
	Status     *TaskStatus `json:"status,omitempty"`
	AssigneeID string      `json:"assignee_id,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// Directory is the read surface over employee records.
type Directory interface {
	// GetEmployee retrieves an employee by ID, including skills and workload.
	GetEmployee(ctx context.Context, id string) (*EmployeeRecord, error)

	// SearchEmployees returns employees whose display name contains the query,
	// case-insensitively.
	SearchEmployees(ctx context.Context, query string) ([]*EmployeeRecord, error)

	// ListEmployees returns all employees.
	ListEmployees(ctx context.Context) ([]*EmployeeRecord, error)
}

// Tasks persists and retrieves task records.
type Tasks interface {
	// CreateTask persists a new task and returns its assigned ID.
	CreateTask(ctx context.Context, t *TaskRecord) (string, error)

	// GetTask retrieves a task by ID, including required skills.
	GetTask(ctx context.Context, id string) (*TaskRecord, error)

	// SearchTasks returns tasks whose title contains the query,
	// case-insensitively.
	SearchTasks(ctx context.Context, query string) ([]*TaskRecord, error)

	// ListTasks returns tasks matching the filter.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*TaskRecord, error)

	// UpdateTask saves changes to an existing task.
	UpdateTask(ctx context.Context, t *TaskRecord) error

	// DeleteTask removes a task by ID.
	DeleteTask(ctx context.Context, id string) error
}

// Payments records and retrieves historical payments.
type Payments interface {
	// RecordPayment persists a payment and returns its assigned ID.
	RecordPayment(ctx context.Context, p *HistoricalPayment) (string, error)

	// GetPayment retrieves a payment by ID.
	GetPayment(ctx context.Context, id string) (*HistoricalPayment, error)

	// PaymentsForEmployee returns the employee's most recent payments,
	// newest first, up to limit.
	PaymentsForEmployee(ctx context.Context, employeeID string, limit int) ([]*HistoricalPayment, error)

	// SetPaymentStatus updates a payment's status. Moving to PaymentPaid
	// stamps PaidAt.
	SetPaymentStatus(ctx context.Context, id string, status PaymentStatus) error
}

// Store is the full structured query/mutation capability the assistant
// core consumes. Read-after-write consistency holds within a single call;
// there is no transactional guarantee across calls.
type Store interface {
	Directory
	Tasks
	Payments
}
