package selfservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/amendsaccounting/erphr/pkg/erpnext"
)

// defaultLeadStatuses is the fallback when DocField introspection is not
// permitted for the signed-in role.
var defaultLeadStatuses = []string{
	"Lead", "Open", "Replied", "Opportunity", "Quotation", "Lost Quotation",
	"Interested", "Converted", "Do Not Contact",
}

// Leads lists leads, optionally narrowed to one status, newest first.
func (s *Service) Leads(ctx context.Context, status string, limit int) ([]erpnext.Lead, error) {
	filters := []erpnext.Filter{}
	if status != "" {
		filters = append(filters, erpnext.Eq("status", status))
	}

	rows, err := s.erp.ListWithFallback(ctx, erpnext.DoctypeLead, erpnext.ListOptions{
		Fields:  []string{"name", "lead_name", "company_name", "status", "email_id", "mobile_no", "source", "territory", "modified"},
		Filters: filters,
		OrderBy: "modified desc",
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching leads: %w", err)
	}
	return erpnext.Rows[erpnext.Lead](rows)
}

// Lead fetches one lead in full, including its HTML notes.
func (s *Service) Lead(ctx context.Context, name string) (*erpnext.Lead, error) {
	var lead erpnext.Lead
	if err := s.erp.Get(ctx, erpnext.DoctypeLead, name, &lead); err != nil {
		return nil, fmt.Errorf("fetching lead %s: %w", name, err)
	}
	return &lead, nil
}

// NewLead is the caller-supplied subset of a lead document.
type NewLead struct {
	LeadName    string
	CompanyName string
	Email       string
	Mobile      string
	Source      string
	Territory   string
}

// CreateLead inserts a lead.
func (s *Service) CreateLead(ctx context.Context, req NewLead) (*erpnext.Lead, error) {
	if req.LeadName == "" {
		return nil, errors.New("lead name is required")
	}

	doc := map[string]any{"lead_name": req.LeadName}
	if req.CompanyName != "" {
		doc["company_name"] = req.CompanyName
	}
	if req.Email != "" {
		doc["email_id"] = req.Email
	}
	if req.Mobile != "" {
		doc["mobile_no"] = req.Mobile
	}
	if req.Source != "" {
		doc["source"] = req.Source
	}
	if req.Territory != "" {
		doc["territory"] = req.Territory
	}

	var created erpnext.Lead
	if err := s.erp.Insert(ctx, erpnext.DoctypeLead, doc, &created); err != nil {
		doc["doctype"] = erpnext.DoctypeLead
		if methodErr := s.erp.MethodInsert(ctx, doc, &created); methodErr != nil {
			return nil, err
		}
	}

	s.logger.Debug("created lead", "name", created.Name, "lead_name", req.LeadName)
	return &created, nil
}

// UpdateLeadStatus moves a lead through its lifecycle. The status value is
// checked against the site's own options first so typos fail before the
// network write.
func (s *Service) UpdateLeadStatus(ctx context.Context, name, status string) error {
	statuses := s.LeadStatuses(ctx)
	if !containsFold(statuses, status) {
		return fmt.Errorf("unknown lead status %q (site offers: %s)", status, strings.Join(statuses, ", "))
	}

	if err := s.erp.Update(ctx, erpnext.DoctypeLead, name, map[string]any{"status": status}, nil); err != nil {
		// set_value is whitelisted on sites where the resource PUT is not.
		if methodErr := s.erp.MethodSetValue(ctx, erpnext.DoctypeLead, name, "status", status); methodErr != nil {
			return fmt.Errorf("updating lead %s: %w", name, err)
		}
	}
	s.logger.Debug("updated lead status", "name", name, "status", status)
	return nil
}

// LeadStatuses returns the site's configured lead status options, falling
// back to the stock ERPNext list when introspection is refused.
func (s *Service) LeadStatuses(ctx context.Context) []string {
	options, err := s.erp.DocFieldOptions(ctx, erpnext.DoctypeLead, "status")
	if err != nil || len(options) == 0 {
		s.logger.Debug("lead status introspection failed, using defaults", "error", err)
		return defaultLeadStatuses
	}
	return options
}

// RenderLeadNotes converts a lead's HTML notes into terminal-friendly
// markdown. Conversion failure degrades to the raw text.
func RenderLeadNotes(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return ""
	}
	markdown, err := md.ConvertString(notes)
	if err != nil {
		return notes
	}
	return strings.TrimSpace(markdown)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
