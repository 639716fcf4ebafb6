package handler

import (
	"trustex/internal/exchange/models"
	id "trustex/pkg/domain"
)

type PriceResponse struct {
	CompanyID  id.CompanyID `json:"company_id"`
	TokenPrice int64        `json:"token_price"`
}

type BalanceResponse struct {
	CompanyID  id.CompanyID  `json:"company_id"`
	Owner      id.Principal  `json:"owner"`
	Subaccount id.Subaccount `json:"subaccount,omitempty"`
	Balance    int64         `json:"balance"`
}

type CompaniesResponse struct {
	Companies []*models.Company `json:"companies"`
}

type HoldingsResponse struct {
	Holdings []models.HoldingView `json:"holdings"`
}

type TransfersResponse struct {
	Transfers []models.TransferRecord `json:"transfers"`
}
