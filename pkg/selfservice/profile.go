package selfservice

import (
	"context"
	"fmt"

	"github.com/amendsaccounting/erphr/pkg/erpnext"
)

// Profile joins the ERP account and the HR employee record. Either half
// may be missing on a misconfigured site; the other still renders.
type Profile struct {
	User     *erpnext.User
	Employee *erpnext.Employee
}

// Profile fetches the signed-in account and its employee record as
// isolated fetches.
func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	account, err := s.erp.LoggedInUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving signed-in user: %w", err)
	}

	profile := &Profile{}

	var user erpnext.User
	if err := s.erp.Get(ctx, erpnext.DoctypeUser, account, &user); err != nil {
		s.logger.Debug("user fetch failed", "account", account, "error", err)
	} else {
		profile.User = &user
	}

	employeeID, err := s.EmployeeID(ctx)
	if err != nil {
		s.logger.Debug("employee lookup failed", "account", account, "error", err)
		return profile, nil
	}
	var employee erpnext.Employee
	if err := s.erp.Get(ctx, erpnext.DoctypeEmployee, employeeID, &employee); err != nil {
		s.logger.Debug("employee fetch failed", "employee", employeeID, "error", err)
	} else {
		profile.Employee = &employee
	}

	return profile, nil
}

// Payslips lists the employee's salary slips, newest first. Display only:
// amounts and statuses are the server's.
func (s *Service) Payslips(ctx context.Context, limit int) ([]erpnext.SalarySlip, error) {
	employee, err := s.EmployeeID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeSalarySlip, erpnext.ListOptions{
		Fields:  []string{"name", "posting_date", "start_date", "end_date", "gross_pay", "net_pay", "currency", "status"},
		Filters: []erpnext.Filter{erpnext.Eq("employee", employee)},
		OrderBy: "posting_date desc",
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching salary slips: %w", err)
	}
	return erpnext.Rows[erpnext.SalarySlip](rows)
}

// Expenses lists the employee's timesheets, newest first.
func (s *Service) Expenses(ctx context.Context, limit int) ([]erpnext.Timesheet, error) {
	employee, err := s.EmployeeID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeTimesheet, erpnext.ListOptions{
		Fields:  []string{"name", "start_date", "end_date", "total_hours", "status"},
		Filters: []erpnext.Filter{erpnext.Eq("employee", employee)},
		OrderBy: "start_date desc",
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching timesheets: %w", err)
	}
	return erpnext.Rows[erpnext.Timesheet](rows)
}
