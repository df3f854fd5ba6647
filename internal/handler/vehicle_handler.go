package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/fleet"
	"github.com/hitoshi/mjeti360/internal/model"
)

// FleetServiceInterface は車両ハンドラーが必要とするサービスインターフェース。
type FleetServiceInterface interface {
	ListVehicles(ctx context.Context, principal *model.User) ([]model.Vehicle, error)
	AddVehicle(ctx context.Context, in fleet.VehicleInput, req *action.Request, principal *model.User) (action.Result, error)
	UpdateVehicle(ctx context.Context, in fleet.VehicleInput, req *action.Request, principal *model.User) (action.Result, error)
	DeleteVehicle(ctx context.Context, in fleet.DeleteVehicleInput, req *action.Request, principal *model.User) (action.Result, error)
}

var _ FleetServiceInterface = (*fleet.Service)(nil) // compile-time interface check

// VehicleHandler は車両管理のHTTPハンドラー。
type VehicleHandler struct {
	runner  *ActionRunner
	service FleetServiceInterface

	add    http.HandlerFunc
	update http.HandlerFunc
	remove http.HandlerFunc
}

// NewVehicleHandler はVehicleHandlerを生成する。
// 更新・削除の対象IDはURLパスの{id}から読み取る。
func NewVehicleHandler(service FleetServiceInterface, runner *ActionRunner) *VehicleHandler {
	g := runner.gate
	return &VehicleHandler{
		runner:  runner,
		service: service,
		add:     runner.Serve("add_vehicle", action.ValidatedWithUser(g, service.AddVehicle)),
		update:  requireNumericParam("id", "vehicle", runner.Serve("update_vehicle", action.ValidatedWithUser(g, service.UpdateVehicle))),
		remove:  requireNumericParam("id", "vehicle", runner.Serve("delete_vehicle", action.ValidatedWithUser(g, service.DeleteVehicle))),
	}
}

// vehicleResponse は車両情報のAPIレスポンス。
type vehicleResponse struct {
	ID              int64      `json:"id"`
	Brand           string     `json:"brand"`
	Model           string     `json:"model"`
	Year            int        `json:"year"`
	Kilometers      int        `json:"kilometers"`
	Plate           string     `json:"plate"`
	RegistrationExp *time.Time `json:"registrationExp"`
	Engine          *int       `json:"engine"`
	FuelType        *string    `json:"fuelType"`
	Gearbox         *string    `json:"gearbox"`
	Seats           *int       `json:"seats"`
	Notes           *string    `json:"notes"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toVehicleResponse(v model.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:              v.ID,
		Brand:           v.Brand,
		Model:           v.Model,
		Year:            v.Year,
		Kilometers:      v.Kilometers,
		Plate:           v.Plate,
		RegistrationExp: v.RegistrationExp,
		Engine:          v.Engine,
		FuelType:        v.FuelType,
		Gearbox:         v.Gearbox,
		Seats:           v.Seats,
		Notes:           v.Notes,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// ListVehicles は認証ユーザーのチームの車両一覧を返す。
// GET /dashboard/api/vehicles
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	h.runner.withPrincipal(func(w http.ResponseWriter, r *http.Request, principal *model.User) {
		vehicles, err := h.service.ListVehicles(r.Context(), principal)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		resp := make([]vehicleResponse, 0, len(vehicles))
		for _, v := range vehicles {
			resp = append(resp, toVehicleResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	})(w, r)
}

// AddVehicle は車両を登録する。
// POST /dashboard/api/vehicles
func (h *VehicleHandler) AddVehicle(w http.ResponseWriter, r *http.Request) { h.add(w, r) }

// UpdateVehicle は車両を更新する。
// PUT /dashboard/api/vehicles/{id}
func (h *VehicleHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) { h.update(w, r) }

// DeleteVehicle は車両を削除する。
// DELETE /dashboard/api/vehicles/{id}
func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) { h.remove(w, r) }
