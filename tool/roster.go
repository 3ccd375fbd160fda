package tool

import (
	"log/slog"

	"github.com/cobaltline/foreman/metrics"
	"github.com/cobaltline/foreman/payment"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/store"
)

// Deps are the shared dependencies tool bodies draw from.
type Deps struct {
	Store     store.Store
	Resolver  *resolve.Resolver
	Estimator *payment.Estimator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// DefaultRegistry builds the standard tool rosters for both roles.
func DefaultRegistry(d Deps) (*Registry, error) {
	r := NewRegistry(d.Metrics, d.Logger)

	findTask := &findTaskTool{resolver: d.Resolver}

	managerTools := []Tool{
		&listEmployeesTool{directory: d.Store},
		&findEmployeeTool{resolver: d.Resolver},
		&suggestAssigneesTool{directory: d.Store, resolver: d.Resolver},
		&listTasksTool{tasks: d.Store, resolver: d.Resolver},
		findTask,
		&createTaskTool{tasks: d.Store},
		&updateTaskTool{tasks: d.Store, resolver: d.Resolver},
		&assignTaskTool{tasks: d.Store, resolver: d.Resolver},
		&deleteTaskTool{tasks: d.Store, resolver: d.Resolver},
		&estimatePaymentTool{store: d.Store, resolver: d.Resolver, estimator: d.Estimator},
		&approvePaymentTool{store: d.Store, resolver: d.Resolver, estimator: d.Estimator},
		&markPaidTool{store: d.Store},
	}
	employeeTools := []Tool{
		&myProfileTool{directory: d.Store},
		&myTasksTool{tasks: d.Store},
		&updateProgressTool{tasks: d.Store, resolver: d.Resolver},
		&acceptTaskTool{tasks: d.Store, resolver: d.Resolver},
		&rejectTaskTool{tasks: d.Store, resolver: d.Resolver},
		&findColleagueTool{resolver: d.Resolver},
		findTask,
	}

	for _, t := range managerTools {
		if err := r.Register(RoleManager, t); err != nil {
			return nil, err
		}
	}
	for _, t := range employeeTools {
		if err := r.Register(RoleEmployee, t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
