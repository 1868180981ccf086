package selfservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amendsaccounting/erphr/pkg/erpnext"
	"github.com/amendsaccounting/erphr/pkg/leave"
)

// LeaveBalances aggregates active allocations minus approved usage, one
// row per leave type.
func (s *Service) LeaveBalances(ctx context.Context) ([]leave.Balance, error) {
	employee, err := s.EmployeeID(ctx)
	if err != nil {
		return nil, err
	}

	allocations, err := s.fetchAllocations(ctx, employee)
	if err != nil {
		return nil, err
	}

	// Usage is a sibling fetch: without it the allocations still render,
	// just without the used column.
	used, err := s.fetchApprovedUsage(ctx, employee)
	if err != nil {
		s.logger.Debug("usage fetch failed, showing allocations only", "error", err)
		used = nil
	}

	return leave.ComputeBalances(allocations, used, time.Now()), nil
}

func (s *Service) fetchAllocations(ctx context.Context, employee string) ([]leave.Allocation, error) {
	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeLeaveAllocation, erpnext.ListOptions{
		Fields:  []string{"name", "leave_type", "from_date", "to_date", "total_leaves_allocated", "new_leaves_allocated"},
		Filters: []erpnext.Filter{erpnext.Eq("employee", employee), erpnext.Eq("docstatus", 1)},
		Limit:   200,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching leave allocations: %w", err)
	}

	typed, err := erpnext.Rows[erpnext.LeaveAllocation](rows)
	if err != nil {
		return nil, err
	}

	allocations := make([]leave.Allocation, 0, len(typed))
	for _, row := range typed {
		days := row.TotalAllocated
		if days == 0 {
			days = row.NewAllocated
		}
		from, _ := time.Parse("2006-01-02", row.FromDate)
		to, _ := time.Parse("2006-01-02", row.ToDate)
		allocations = append(allocations, leave.Allocation{
			LeaveType: row.LeaveType,
			From:      from,
			To:        to,
			Days:      days,
		})
	}
	return allocations, nil
}

func (s *Service) fetchApprovedUsage(ctx context.Context, employee string) (map[string]float64, error) {
	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeLeaveApplication, erpnext.ListOptions{
		Fields: []string{"leave_type", "total_leave_days", "status"},
		Filters: []erpnext.Filter{
			erpnext.Eq("employee", employee),
			erpnext.Eq("status", "Approved"),
		},
		Limit: 500,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching leave applications: %w", err)
	}

	typed, err := erpnext.Rows[erpnext.LeaveApplication](rows)
	if err != nil {
		return nil, err
	}

	used := make(map[string]float64, len(typed))
	for _, row := range typed {
		used[row.LeaveType] += row.TotalDays
	}
	return used, nil
}

// LeaveRequest is one leave application to submit.
type LeaveRequest struct {
	LeaveType   string
	From        time.Time
	To          time.Time
	HalfDay     bool
	HalfDayDate time.Time
	Reason      string
}

func (r LeaveRequest) validate() error {
	if r.LeaveType == "" {
		return errors.New("leave type is required")
	}
	if r.From.IsZero() || r.To.IsZero() {
		return errors.New("both from and to dates are required")
	}
	if r.To.Before(r.From) {
		return errors.New("to date precedes from date")
	}
	return nil
}

// ApplyLeave submits a leave application. Domain conflicts (overlapping
// application, exhausted balance) come back as friendly messages via
// erpnext.Friendly; the raw error is still returned for callers that
// need the status code.
func (s *Service) ApplyLeave(ctx context.Context, req LeaveRequest) (*erpnext.LeaveApplication, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	employee, err := s.EmployeeID(ctx)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{
		"employee":    employee,
		"leave_type":  req.LeaveType,
		"from_date":   erpDate(req.From),
		"to_date":     erpDate(req.To),
		"description": req.Reason,
		"status":      "Open",
	}
	if req.HalfDay {
		doc["half_day"] = 1
		halfDayDate := req.HalfDayDate
		if halfDayDate.IsZero() {
			halfDayDate = req.From
		}
		doc["half_day_date"] = erpDate(halfDayDate)
	}

	var created erpnext.LeaveApplication
	if err := s.erp.Insert(ctx, erpnext.DoctypeLeaveApplication, doc, &created); err != nil {
		doc["doctype"] = erpnext.DoctypeLeaveApplication
		if methodErr := s.erp.MethodInsert(ctx, doc, &created); methodErr != nil {
			return nil, err
		}
	}

	s.logger.Debug("submitted leave application", "employee", employee, "name", created.Name)
	return &created, nil
}

// LeaveApplications lists the employee's applications, newest first.
func (s *Service) LeaveApplications(ctx context.Context, limit int) ([]erpnext.LeaveApplication, error) {
	employee, err := s.EmployeeID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeLeaveApplication, erpnext.ListOptions{
		Fields:  []string{"name", "leave_type", "from_date", "to_date", "total_leave_days", "half_day", "status", "description"},
		Filters: []erpnext.Filter{erpnext.Eq("employee", employee)},
		OrderBy: "from_date desc",
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching leave applications: %w", err)
	}
	return erpnext.Rows[erpnext.LeaveApplication](rows)
}
