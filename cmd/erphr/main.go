// Package main implements the erphr CLI for ERPNext employee self-service.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/amendsaccounting/erphr/pkg/attendance"
	"github.com/amendsaccounting/erphr/pkg/config"
	"github.com/amendsaccounting/erphr/pkg/erpnext"
	"github.com/amendsaccounting/erphr/pkg/histogram"
	"github.com/amendsaccounting/erphr/pkg/selfservice"
)

var (
	baseURL   = flag.String("url", "", "ERPNext site URL (or set ERP_URL)")
	apiKey    = flag.String("api-key", "", "API key for token auth (or set ERP_API_KEY)")
	apiSecret = flag.String("api-secret", "", "API secret for token auth (or set ERP_API_SECRET)")
	deviceID  = flag.String("device", "", "Device ID stamped on check-ins (or set ERP_DEVICE_ID)")
	cacheDir  = flag.String("cache-dir", "", "Cache directory (or set CACHE_DIR)")
	noCache   = flag.Bool("no-cache", false, "Disable caching")
	mock      = flag.Bool("mock", false, "Serve canned attendance history instead of fetching")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	version   = flag.Bool("version", false, "Show version")

	latitude  = flag.Float64("lat", 0, "Latitude for check-in/out")
	longitude = flag.Float64("lon", 0, "Longitude for check-in/out")
	location  = flag.String("location", "", "Location label for check-in/out")

	days   = flag.Int("days", 14, "History window in days for log/week")
	limit  = flag.Int("limit", 20, "Row limit for list commands")
	status = flag.String("status", "", "Status filter for leads")

	leaveType = flag.String("type", "", "Leave type for leave apply")
	fromDate  = flag.String("from", "", "Start date (YYYY-MM-DD) for leave apply")
	toDate    = flag.String("to", "", "End date (YYYY-MM-DD) for leave apply")
	halfDay   = flag.Bool("half-day", false, "Apply for a half day")
	reason    = flag.String("reason", "", "Reason for leave apply")

	leadName  = flag.String("lead", "", "Person name for lead new")
	company   = flag.String("company", "", "Company name for lead new")
	email     = flag.String("email", "", "Email for lead new")
	mobile    = flag.String("mobile", "", "Mobile number for lead new")
	source    = flag.String("source", "", "Source for lead new")
	territory = flag.String("territory", "", "Territory for lead new")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  login <user>            Verify a password login (session lasts this run only;")
	fmt.Fprintln(os.Stderr, "                          set ERP_API_KEY/ERP_API_SECRET for other commands)")
	fmt.Fprintln(os.Stderr, "  in | out                Record an attendance check-in or check-out")
	fmt.Fprintln(os.Stderr, "  log                     Show recent work sessions")
	fmt.Fprintln(os.Stderr, "  week                    Show this week's hours as a bar chart")
	fmt.Fprintln(os.Stderr, "  leave                   Show leave balances")
	fmt.Fprintln(os.Stderr, "  leave list              Show recent leave applications")
	fmt.Fprintln(os.Stderr, "  leave apply             Submit a leave application (-type -from -to)")
	fmt.Fprintln(os.Stderr, "  leads                   List sales leads (-status, -limit)")
	fmt.Fprintln(os.Stderr, "  lead <name>             Show one lead with its notes")
	fmt.Fprintln(os.Stderr, "  lead new                Create a lead (-lead, -company, ...)")
	fmt.Fprintln(os.Stderr, "  lead status <name> <s>  Move a lead to a new status")
	fmt.Fprintln(os.Stderr, "  expenses                List recent timesheets")
	fmt.Fprintln(os.Stderr, "  payslips                List recent salary slips")
	fmt.Fprintln(os.Stderr, "  profile                 Show the signed-in employee profile")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println("erphr CLI v1.2.0")
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	cfg := config.Load()
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *apiSecret != "" {
		cfg.APISecret = *apiSecret
	}
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}
	if *mock {
		cfg.MockHistory = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	opts := []selfservice.Option{
		selfservice.WithCredentials(cfg.APIKey, cfg.APISecret),
		selfservice.WithDeviceID(cfg.DeviceID),
	}
	if *noCache {
		opts = append(opts, selfservice.WithNoCache())
	} else if *cacheDir != "" {
		opts = append(opts, selfservice.WithCacheDir(*cacheDir))
	}
	if cfg.MockHistory {
		opts = append(opts, selfservice.WithMockHistory())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	svc := selfservice.NewWithLogger(ctx, logger, cfg.BaseURL, opts...)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service", "error", err)
		}
	}()

	if err := run(ctx, svc, args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), erpnext.Friendly(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *selfservice.Service, args []string) error {
	switch args[0] {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <user>")
		}
		return runLogin(ctx, svc, args[1])
	case "in":
		return runCheckin(ctx, svc, true)
	case "out":
		return runCheckin(ctx, svc, false)
	case "log":
		return runLog(ctx, svc)
	case "week":
		return runWeek(ctx, svc)
	case "leave":
		switch {
		case len(args) == 1:
			return runLeaveBalances(ctx, svc)
		case args[1] == "list":
			return runLeaveList(ctx, svc)
		case args[1] == "apply":
			return runLeaveApply(ctx, svc)
		}
		return fmt.Errorf("unknown leave subcommand %q", args[1])
	case "leads":
		return runLeads(ctx, svc)
	case "lead":
		switch {
		case len(args) == 2 && args[1] == "new":
			return runLeadNew(ctx, svc)
		case len(args) == 4 && args[1] == "status":
			return svc.UpdateLeadStatus(ctx, args[2], args[3])
		case len(args) == 2:
			return runLeadShow(ctx, svc, args[1])
		}
		return fmt.Errorf("usage: lead <name> | lead new | lead status <name> <status>")
	case "expenses":
		return runExpenses(ctx, svc)
	case "payslips":
		return runPayslips(ctx, svc)
	case "profile":
		return runProfile(ctx, svc)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runLogin(ctx context.Context, svc *selfservice.Service, user string) error {
	password := os.Getenv("ERP_PASSWORD")
	if password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s: ", user)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	fullName, err := svc.Login(ctx, user, password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", color.GreenString(fullName))
	fmt.Println("The session ends with this run; set ERP_API_KEY and ERP_API_SECRET to use the other commands.")
	return nil
}

func runCheckin(ctx context.Context, svc *selfservice.Service, in bool) error {
	opts := selfservice.CheckinOptions{
		Latitude:  *latitude,
		Longitude: *longitude,
		Location:  *location,
	}

	// Warn when the requested direction repeats the last recorded one.
	last := svc.LastLogType(ctx)
	if in && last == attendance.LogIn {
		fmt.Println(color.YellowString("note: the last recorded event is already an IN"))
	} else if !in && last == attendance.LogOut {
		fmt.Println(color.YellowString("note: the last recorded event is already an OUT"))
	}

	var (
		event *erpnext.CheckinEvent
		err   error
	)
	if in {
		event, err = svc.CheckIn(ctx, opts)
	} else {
		event, err = svc.CheckOut(ctx, opts)
	}
	if err != nil {
		return err
	}

	verb := color.GreenString("Checked in")
	if !in {
		verb = color.CyanString("Checked out")
	}
	fmt.Printf("%s at %s (%s)\n", verb, time.Now().Format("15:04"), event.Name)
	return nil
}

func runLog(ctx context.Context, svc *selfservice.Service) error {
	sessions, err := svc.RecentSessions(ctx, *days)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded in this window.")
		return nil
	}

	for i := len(sessions) - 1; i >= 0; i-- {
		fmt.Println(formatSession(sessions[i]))
	}
	return nil
}

func formatSession(s attendance.Session) string {
	day := s.Date.Format("Mon 2006-01-02")
	switch {
	case s.Complete():
		line := fmt.Sprintf("%s  %s → %s  %s", day,
			s.In.Format("15:04"), s.Out.Format("15:04"),
			histogram.FormatHours(s.Duration().Hours()))
		if s.LocationIn != "" {
			line += "  @ " + s.LocationIn
		}
		return line
	case s.In != nil:
		return fmt.Sprintf("%s  %s → %s", day, s.In.Format("15:04"), color.YellowString("open"))
	default:
		return fmt.Sprintf("%s  %s → %s", day, color.YellowString("?"), s.Out.Format("15:04"))
	}
}

func runWeek(ctx context.Context, svc *selfservice.Service) error {
	summary := svc.WeekSummary(ctx, *days)

	fmt.Printf("Week of %s\n", summary.Stats.Start.Format("2006-01-02"))
	fmt.Print(histogram.WeekBars(summary.Stats.Hours))
	fmt.Printf("Total: %s\n", color.New(color.Bold).Sprint(histogram.FormatHours(summary.Stats.TotalHours())))

	// The last open session alone is not enough: an overnight OUT closes
	// the shift without closing that session. The raw-event direction has
	// the final say.
	if svc.LastLogType(ctx) == attendance.LogIn && len(summary.Sessions) > 0 {
		last := summary.Sessions[len(summary.Sessions)-1]
		if !last.Complete() && last.In != nil {
			fmt.Printf("Currently in since %s\n", last.In.Format("15:04"))
		}
	}
	return nil
}

func runLeaveBalances(ctx context.Context, svc *selfservice.Service) error {
	balances, err := svc.LeaveBalances(ctx)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		fmt.Println("No leave allocations found.")
		return nil
	}

	fmt.Printf("%-28s %10s %8s %10s\n", "Leave Type", "Allocated", "Used", "Available")
	for _, b := range balances {
		avail := fmt.Sprintf("%.1f", b.Available)
		if b.Available == 0 {
			avail = color.RedString(avail)
		} else {
			avail = color.GreenString(avail)
		}
		fmt.Printf("%-28s %10.1f %8.1f %10s\n", b.LeaveType, b.Allocated, b.Used, avail)
	}
	return nil
}

func runLeaveList(ctx context.Context, svc *selfservice.Service) error {
	apps, err := svc.LeaveApplications(ctx, *limit)
	if err != nil {
		return err
	}
	for _, a := range apps {
		span := fmt.Sprintf("%.1fd", a.TotalDays)
		if a.HalfDay == 1 {
			span = "half day"
		}
		fmt.Printf("%-12s %s → %s  %-20s %s (%s)\n",
			a.Name, a.FromDate, a.ToDate, a.LeaveType, span, statusColor(a.Status))
	}
	return nil
}

func runLeaveApply(ctx context.Context, svc *selfservice.Service) error {
	from, err := time.Parse("2006-01-02", *fromDate)
	if err != nil {
		return fmt.Errorf("invalid -from date: %w", err)
	}
	to, err := time.Parse("2006-01-02", *toDate)
	if err != nil {
		return fmt.Errorf("invalid -to date: %w", err)
	}

	app, err := svc.ApplyLeave(ctx, selfservice.LeaveRequest{
		LeaveType: *leaveType,
		From:      from,
		To:        to,
		HalfDay:   *halfDay,
		Reason:    *reason,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Submitted %s (%s, %s → %s)\n", color.GreenString(app.Name), app.LeaveType, app.FromDate, app.ToDate)
	return nil
}

func runLeads(ctx context.Context, svc *selfservice.Service) error {
	leads, err := svc.Leads(ctx, *status, *limit)
	if err != nil {
		return err
	}
	for _, l := range leads {
		line := fmt.Sprintf("%-16s %-24s %s", l.Name, l.LeadName, statusColor(l.Status))
		if l.CompanyName != "" {
			line += "  " + l.CompanyName
		}
		fmt.Println(line)
	}
	return nil
}

func runLeadShow(ctx context.Context, svc *selfservice.Service, name string) error {
	lead, err := svc.Lead(ctx, name)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n", color.New(color.Bold).Sprint(lead.LeadName), statusColor(lead.Status))
	if lead.CompanyName != "" {
		fmt.Printf("Company:   %s\n", lead.CompanyName)
	}
	if lead.Email != "" {
		fmt.Printf("Email:     %s\n", lead.Email)
	}
	if lead.Mobile != "" {
		fmt.Printf("Mobile:    %s\n", lead.Mobile)
	}
	if lead.Territory != "" {
		fmt.Printf("Territory: %s\n", lead.Territory)
	}
	if notes := selfservice.RenderLeadNotes(lead.Notes); notes != "" {
		fmt.Printf("\n%s\n", notes)
	}
	return nil
}

func runLeadNew(ctx context.Context, svc *selfservice.Service) error {
	lead, err := svc.CreateLead(ctx, selfservice.NewLead{
		LeadName:    *leadName,
		CompanyName: *company,
		Email:       *email,
		Mobile:      *mobile,
		Source:      *source,
		Territory:   *territory,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created %s (%s)\n", color.GreenString(lead.Name), lead.LeadName)
	return nil
}

func runExpenses(ctx context.Context, svc *selfservice.Service) error {
	sheets, err := svc.Expenses(ctx, *limit)
	if err != nil {
		return err
	}
	for _, ts := range sheets {
		fmt.Printf("%-16s %s → %s  %6.1fh  %s\n",
			ts.Name, ts.StartDate, ts.EndDate, ts.TotalHours, statusColor(ts.Status))
	}
	return nil
}

func runPayslips(ctx context.Context, svc *selfservice.Service) error {
	slips, err := svc.Payslips(ctx, *limit)
	if err != nil {
		return err
	}
	for _, s := range slips {
		fmt.Printf("%-20s %s  gross %10.2f  net %10.2f %s  %s\n",
			s.Name, s.PostingDate, s.GrossPay, s.NetPay, s.Currency, statusColor(s.Status))
	}
	return nil
}

func runProfile(ctx context.Context, svc *selfservice.Service) error {
	p, err := svc.Profile(ctx)
	if err != nil {
		return err
	}

	if p.Employee != nil {
		e := p.Employee
		fmt.Printf("%s (%s)\n", color.New(color.Bold).Sprint(e.EmployeeName), e.Name)
		if e.Designation != "" {
			fmt.Printf("Role:       %s\n", e.Designation)
		}
		if e.Department != "" {
			fmt.Printf("Department: %s\n", e.Department)
		}
		if e.Company != "" {
			fmt.Printf("Company:    %s\n", e.Company)
		}
		if e.DateOfJoining != "" {
			fmt.Printf("Joined:     %s\n", e.DateOfJoining)
		}
	}
	if p.User != nil {
		fmt.Printf("Account:    %s", p.User.Email)
		if p.User.Mobile != "" {
			fmt.Printf(" / %s", p.User.Mobile)
		}
		fmt.Println()
	}
	return nil
}

func statusColor(s string) string {
	switch strings.ToLower(s) {
	case "approved", "converted", "submitted", "open":
		return color.GreenString(s)
	case "rejected", "cancelled", "do not contact", "lost quotation":
		return color.RedString(s)
	case "", "draft", "replied", "interested", "opportunity", "quotation", "lead":
		if s == "" {
			return ""
		}
		return color.YellowString(s)
	default:
		return s
	}
}
