package handler

import (
	"strings"

	"trustex/internal/verification/models"
	"trustex/internal/verification/service"
	id "trustex/pkg/domain"
	dErrors "trustex/pkg/domain-errors"
)

// StartRequest is the body of POST /verification/jobs.
type StartRequest struct {
	CompanyID    string `json:"company_id"`
	CompanyName  string `json:"company_name,omitempty"`
	Priority     string `json:"priority,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`

	parsed service.StartRequest
}

func (r *StartRequest) Normalize() {
	if r == nil {
		return
	}
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))
}

func (r *StartRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	companyID, err := id.ParseCompanyID(r.CompanyID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid company_id")
	}
	priority, err := models.ParsePriority(r.Priority)
	if err != nil {
		return err
	}
	r.parsed = service.StartRequest{
		CompanyID:    companyID,
		CompanyName:  r.CompanyName,
		Priority:     priority,
		ForceRefresh: r.ForceRefresh,
	}
	return nil
}

// Parsed returns the service request. Valid after Validate.
func (r *StartRequest) Parsed() service.StartRequest {
	return r.parsed
}

// OverrideRequest is the body of POST /admin/companies/{id}/verification/override.
type OverrideRequest struct {
	Status string `json:"status"`
	Score  *int   `json:"score,omitempty"`
	Reason string `json:"reason"`
}

func (r *OverrideRequest) Normalize() {
	if r == nil {
		return
	}
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *OverrideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

func (r *OverrideRequest) toService() service.OverrideRequest {
	return service.OverrideRequest{
		Status: models.ProfileStatus(r.Status),
		Score:  r.Score,
		Reason: r.Reason,
	}
}
