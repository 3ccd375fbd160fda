package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS employees (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	email             TEXT NOT NULL DEFAULT '',
	department        TEXT NOT NULL DEFAULT '',
	designation       TEXT NOT NULL DEFAULT '',
	available         INTEGER NOT NULL DEFAULT 1,
	performance_score REAL NOT NULL DEFAULT 0,
	on_time_rate      REAL NOT NULL DEFAULT 0,
	quality_score     REAL NOT NULL DEFAULT 0,
	hourly_rate       REAL NOT NULL DEFAULT 0,
	tasks_completed   INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	priority        TEXT NOT NULL DEFAULT 'medium',
	progress        INTEGER NOT NULL DEFAULT 0,
	deadline        DATETIME,
	assignee_id     TEXT NOT NULL DEFAULT '',
	estimated_hours REAL NOT NULL DEFAULT 0,
	actual_hours    REAL NOT NULL DEFAULT 0,
	complexity      REAL NOT NULL DEFAULT 1.0,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	accepted_at     DATETIME,
	started_at      DATETIME,
	completed_at    DATETIME
);

CREATE TABLE IF NOT EXISTS employee_skills (
	employee_id TEXT NOT NULL,
	skill       TEXT NOT NULL,
	position    INTEGER NOT NULL,
	PRIMARY KEY (employee_id, skill)
);

CREATE TABLE IF NOT EXISTS task_skills (
	task_id  TEXT NOT NULL,
	skill    TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (task_id, skill)
);

CREATE TABLE IF NOT EXISTS payments (
	id                   TEXT PRIMARY KEY,
	employee_id          TEXT NOT NULL,
	task_id              TEXT NOT NULL DEFAULT '',
	amount               REAL NOT NULL,
	status               TEXT NOT NULL DEFAULT 'pending',
	employee_performance REAL NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL,
	paid_at              DATETIME
);
`

// openStatuses are the task states counted toward an employee's workload.
const openStatuses = `('invited','accepted','ongoing')`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateEmployee persists a new employee record with its skill tags.
// Skills are lower-cased and de-duplicated, preserving first occurrence order.
func (s *SQLiteStore) CreateEmployee(ctx context.Context, e *EmployeeRecord) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	e.Skills = normalizeSkills(e.Skills)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees
			(id, name, email, department, designation, available,
			 performance_score, on_time_rate, quality_score, hourly_rate, tasks_completed, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Name, e.Email, e.Department, e.Designation, boolInt(e.Available),
		e.PerformanceScore, e.OnTimeRate, e.QualityScore, e.HourlyRate, e.TasksCompleted, e.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert employee: %w", err)
	}
	if err := s.replaceSkills(ctx, "employee_skills", "employee_id", e.ID, e.Skills); err != nil {
		return "", err
	}
	return e.ID, nil
}

// GetEmployee retrieves an employee by ID, including skills and derived workload.
func (s *SQLiteStore) GetEmployee(ctx context.Context, id string) (*EmployeeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.name, e.email, e.department, e.designation, e.available,
		       e.performance_score, e.on_time_rate, e.quality_score, e.hourly_rate,
		       e.tasks_completed, e.created_at,
		       (SELECT COUNT(*) FROM tasks t WHERE t.assignee_id = e.id AND t.status IN `+openStatuses+`)
		FROM employees e WHERE e.id = ?`, id)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	e.Skills, err = s.loadSkills(ctx, "employee_skills", "employee_id", e.ID)
	return e, err
}

// SearchEmployees returns employees whose name contains query, case-insensitively.
func (s *SQLiteStore) SearchEmployees(ctx context.Context, query string) ([]*EmployeeRecord, error) {
	return s.queryEmployees(ctx,
		`WHERE instr(lower(e.name), lower(?)) > 0 ORDER BY e.name ASC`, query)
}

// ListEmployees returns all employees ordered by name.
func (s *SQLiteStore) ListEmployees(ctx context.Context) ([]*EmployeeRecord, error) {
	return s.queryEmployees(ctx, `ORDER BY e.name ASC`)
}

func (s *SQLiteStore) queryEmployees(ctx context.Context, tail string, args ...any) ([]*EmployeeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.email, e.department, e.designation, e.available,
		       e.performance_score, e.on_time_rate, e.quality_score, e.hourly_rate,
		       e.tasks_completed, e.created_at,
		       (SELECT COUNT(*) FROM tasks t WHERE t.assignee_id = e.id AND t.status IN `+openStatuses+`)
		FROM employees e `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []*EmployeeRecord
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, e := range out {
		if e.Skills, err = s.loadSkills(ctx, "employee_skills", "employee_id", e.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CreateTask persists a new task with its required skill tags.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *TaskRecord) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Complexity < 1.0 {
		t.Complexity = 1.0
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.RequiredSkills = normalizeSkills(t.RequiredSkills)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(id, title, description, status, priority, progress, deadline, assignee_id,
			 estimated_hours, actual_hours, complexity, created_at, updated_at,
			 accepted_at, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.Progress,
		nullTime(t.Deadline), t.AssigneeID,
		t.EstimatedHours, t.ActualHours, t.Complexity,
		t.CreatedAt, t.UpdatedAt,
		nullTime(t.AcceptedAt), nullTime(t.StartedAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	if err := s.replaceSkills(ctx, "task_skills", "task_id", t.ID, t.RequiredSkills); err != nil {
		return "", err
	}
	return t.ID, nil
}

// GetTask retrieves a task by ID, including required skills.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	t.RequiredSkills, err = s.loadSkills(ctx, "task_skills", "task_id", t.ID)
	return t, err
}

// SearchTasks returns tasks whose title contains query, case-insensitively.
func (s *SQLiteStore) SearchTasks(ctx context.Context, query string) ([]*TaskRecord, error) {
	return s.queryTasks(ctx,
		`WHERE instr(lower(title), lower(?)) > 0 ORDER BY created_at ASC`, query)
}

// ListTasks returns tasks matching the filter, oldest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*TaskRecord, error) {
	q := strings.Builder{}
	q.WriteString("WHERE 1=1")
	args := []any{}
	if filter.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*filter.Status))
	}
	if filter.AssigneeID != "" {
		q.WriteString(" AND assignee_id=?")
		args = append(args, filter.AssigneeID)
	}
	q.WriteString(" ORDER BY created_at ASC")
	if filter.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", filter.Limit)
	}
	return s.queryTasks(ctx, q.String(), args...)
}

func (s *SQLiteStore) queryTasks(ctx context.Context, tail string, args ...any) ([]*TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range out {
		if t.RequiredSkills, err = s.loadSkills(ctx, "task_skills", "task_id", t.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateTask saves changes to an existing task, updating UpdatedAt and
// replacing its required skills.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t *TaskRecord) error {
	t.UpdatedAt = time.Now().UTC()
	t.RequiredSkills = normalizeSkills(t.RequiredSkills)

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title=?, description=?, status=?, priority=?, progress=?, deadline=?, assignee_id=?,
			estimated_hours=?, actual_hours=?, complexity=?, updated_at=?,
			accepted_at=?, started_at=?, completed_at=?
		WHERE id=?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.Progress,
		nullTime(t.Deadline), t.AssigneeID,
		t.EstimatedHours, t.ActualHours, t.Complexity, t.UpdatedAt,
		nullTime(t.AcceptedAt), nullTime(t.StartedAt), nullTime(t.CompletedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return s.replaceSkills(ctx, "task_skills", "task_id", t.ID, t.RequiredSkills)
}

// DeleteTask removes a task and its skill tags.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM task_skills WHERE task_id=?`, id)
	if err != nil {
		return fmt.Errorf("delete task skills: %w", err)
	}
	return nil
}

// RecordPayment persists a payment record.
func (s *SQLiteStore) RecordPayment(ctx context.Context, p *HistoricalPayment) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments
			(id, employee_id, task_id, amount, status, employee_performance, created_at, paid_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.EmployeeID, p.TaskID, p.Amount, string(p.Status),
		p.EmployeePerformance, p.CreatedAt, nullTime(p.PaidAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert payment: %w", err)
	}
	return p.ID, nil
}

// GetPayment retrieves a payment by ID.
func (s *SQLiteStore) GetPayment(ctx context.Context, id string) (*HistoricalPayment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, task_id, amount, status, employee_performance, created_at, paid_at
		FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	return p, err
}

// PaymentsForEmployee returns the employee's most recent payments, newest first.
func (s *SQLiteStore) PaymentsForEmployee(ctx context.Context, employeeID string, limit int) ([]*HistoricalPayment, error) {
	q := `SELECT id, employee_id, task_id, amount, status, employee_performance, created_at, paid_at
		FROM payments WHERE employee_id = ? ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, q, employeeID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []*HistoricalPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPaymentStatus updates a payment's status, stamping PaidAt for PaymentPaid.
func (s *SQLiteStore) SetPaymentStatus(ctx context.Context, id string, status PaymentStatus) error {
	var res sql.Result
	var err error
	if status == PaymentPaid {
		res, err = s.db.ExecContext(ctx,
			`UPDATE payments SET status=?, paid_at=? WHERE id=?`, string(status), time.Now().UTC(), id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE payments SET status=? WHERE id=?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	return nil
}

// replaceSkills rewrites the skill rows for one owner in a join table.
func (s *SQLiteStore) replaceSkills(ctx context.Context, table, keyCol, id string, skills []string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+keyCol+`=?`, id); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	for i, skill := range skills {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO `+table+` (`+keyCol+`, skill, position) VALUES (?,?,?)`, id, skill, i)
		if err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

// loadSkills reads the ordered skill tags for one owner from a join table.
func (s *SQLiteStore) loadSkills(ctx context.Context, table, keyCol, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT skill FROM `+table+` WHERE `+keyCol+`=? ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	var skills []string
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}
	return skills, rows.Err()
}

const taskColumns = `id, title, description, status, priority, progress, deadline, assignee_id,
	estimated_hours, actual_hours, complexity, created_at, updated_at,
	accepted_at, started_at, completed_at`

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(sc scanner) (*EmployeeRecord, error) {
	var e EmployeeRecord
	var available int
	err := sc.Scan(
		&e.ID, &e.Name, &e.Email, &e.Department, &e.Designation, &available,
		&e.PerformanceScore, &e.OnTimeRate, &e.QualityScore, &e.HourlyRate,
		&e.TasksCompleted, &e.CreatedAt, &e.Workload,
	)
	if err != nil {
		return nil, err
	}
	e.Available = available != 0
	return &e, nil
}

func scanTask(sc scanner) (*TaskRecord, error) {
	var t TaskRecord
	var status, priority string
	var deadline, acceptedAt, startedAt, completedAt sql.NullTime
	err := sc.Scan(
		&t.ID, &t.Title, &t.Description, &status, &priority, &t.Progress,
		&deadline, &t.AssigneeID,
		&t.EstimatedHours, &t.ActualHours, &t.Complexity,
		&t.CreatedAt, &t.UpdatedAt,
		&acceptedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	t.Deadline = timePtr(deadline)
	t.AcceptedAt = timePtr(acceptedAt)
	t.StartedAt = timePtr(startedAt)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

func scanPayment(sc scanner) (*HistoricalPayment, error) {
	var p HistoricalPayment
	var status string
	var paidAt sql.NullTime
	err := sc.Scan(
		&p.ID, &p.EmployeeID, &p.TaskID, &p.Amount, &status,
		&p.EmployeePerformance, &p.CreatedAt, &paidAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = PaymentStatus(status)
	p.PaidAt = timePtr(paidAt)
	return &p, nil
}

// normalizeSkills lower-cases, trims, and de-duplicates skill tags,
// preserving first occurrence order.
func normalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
