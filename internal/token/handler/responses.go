package handler

import (
	"time"

	"sto-gateway/internal/domain"
	"sto-gateway/pkg/fixedpoint"
)

type StatusResponse struct {
	Status string `json:"status"`
}

var okResponse = StatusResponse{Status: "ok"}

type StageResponse struct {
	Stage string `json:"stage"`
}

type BalanceResponse struct {
	Address domain.Address    `json:"address"`
	Balance fixedpoint.Amount `json:"balance"`
}

type BoundariesResponse struct {
	Boundaries []time.Time `json:"boundaries"`
}

type PeriodResponse struct {
	CurrentPeriod int `json:"current_period"`
}

type NowResponse struct {
	Now time.Time `json:"now"`
}
