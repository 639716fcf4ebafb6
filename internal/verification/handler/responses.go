package handler

import (
	"trustex/internal/verification/models"
	id "trustex/pkg/domain"
)

type StartResponse struct {
	JobID     id.JobID     `json:"job_id"`
	CompanyID id.CompanyID `json:"company_id"`
}

type JobsResponse struct {
	Jobs []*models.Job `json:"jobs"`
}

type PurgeResponse struct {
	Removed int `json:"removed"`
}
