package erpnext

// Doctype names touched by the self-service workflows.
const (
	DoctypeCheckin          = "Employee Checkin"
	DoctypeLeaveAllocation  = "Leave Allocation"
	DoctypeLeaveApplication = "Leave Application"
	DoctypeLead             = "Lead"
	DoctypeTimesheet        = "Timesheet"
	DoctypeUser             = "User"
	DoctypeEmployee         = "Employee"
	DoctypeSalarySlip       = "Salary Slip"
	DoctypeDocField         = "DocField"
)

// Doc is a raw ERP document. Response shapes vary by site customization,
// so rows are decoded loosely and read through the pick helpers.
type Doc map[string]any

// PickString returns the first non-empty string among the named fields.
// Site customizations move data between standard and custom fields, so
// lookups are expressed as an explicit priority chain.
func (d Doc) PickString(fields ...string) string {
	for _, f := range fields {
		if v, ok := d[f].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// PickFloat returns the first numeric value among the named fields. JSON
// numbers decode as float64; integer-typed custom fields come through the
// same way.
func (d Doc) PickFloat(fields ...string) float64 {
	for _, f := range fields {
		if v, ok := d[f].(float64); ok {
			return v
		}
	}
	return 0
}

// CheckinEvent is one Employee Checkin row.
type CheckinEvent struct {
	Name      string  `json:"name"`
	Employee  string  `json:"employee"`
	LogType   string  `json:"log_type"`
	Time      string  `json:"time"`
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Location  string  `json:"custom_location"`
}

// LeaveAllocation is one Leave Allocation row.
type LeaveAllocation struct {
	Name           string  `json:"name"`
	LeaveType      string  `json:"leave_type"`
	FromDate       string  `json:"from_date"`
	ToDate         string  `json:"to_date"`
	TotalAllocated float64 `json:"total_leaves_allocated"`
	NewAllocated   float64 `json:"new_leaves_allocated"`
}

// LeaveApplication is one Leave Application row.
type LeaveApplication struct {
	Name        string  `json:"name"`
	Employee    string  `json:"employee"`
	LeaveType   string  `json:"leave_type"`
	FromDate    string  `json:"from_date"`
	ToDate      string  `json:"to_date"`
	TotalDays   float64 `json:"total_leave_days"`
	HalfDay     int     `json:"half_day"`
	HalfDayDate string  `json:"half_day_date"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
}

// Lead is one sales Lead row. Notes is HTML on the server.
type Lead struct {
	Name        string `json:"name"`
	LeadName    string `json:"lead_name"`
	CompanyName string `json:"company_name"`
	Status      string `json:"status"`
	Email       string `json:"email_id"`
	Mobile      string `json:"mobile_no"`
	Source      string `json:"source"`
	Territory   string `json:"territory"`
	Notes       string `json:"notes"`
	Modified    string `json:"modified"`
}

// Timesheet is one Timesheet row, displayed as an expense/effort record.
type Timesheet struct {
	Name       string  `json:"name"`
	Employee   string  `json:"employee"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	TotalHours float64 `json:"total_hours"`
	Status     string  `json:"status"`
}

// Employee is the HR record behind a signed-in user.
type Employee struct {
	Name          string `json:"name"`
	EmployeeName  string `json:"employee_name"`
	UserID        string `json:"user_id"`
	Designation   string `json:"designation"`
	Department    string `json:"department"`
	Company       string `json:"company"`
	DateOfJoining string `json:"date_of_joining"`
	CellNumber    string `json:"cell_number"`
	CompanyEmail  string `json:"company_email"`
}

// User is the ERP account record.
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Mobile   string `json:"mobile_no"`
}

// SalarySlip is one payslip row, display-only.
type SalarySlip struct {
	Name        string  `json:"name"`
	Employee    string  `json:"employee"`
	PostingDate string  `json:"posting_date"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	GrossPay    float64 `json:"gross_pay"`
	NetPay      float64 `json:"net_pay"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
}
