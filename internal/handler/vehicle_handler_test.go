package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/fleet"
	"github.com/hitoshi/mjeti360/internal/model"
)

// --- モック ---

// mockFleetService はFleetServiceInterfaceのモック実装。
type mockFleetService struct {
	listFn   func(ctx context.Context, principal *model.User) ([]model.Vehicle, error)
	addFn    func(ctx context.Context, in fleet.VehicleInput, req *action.Request, principal *model.User) (action.Result, error)
	updateFn func(ctx context.Context, in fleet.VehicleInput, req *action.Request, principal *model.User) (action.Result, error)
	deleteFn func(ctx context.Context, in fleet.DeleteVehicleInput, req *action.Request, principal *model.User) (action.Result, error)
}

func (m *mockFleetService) ListVehicles(ctx context.Context, principal *model.User) ([]model.Vehicle, error) {
	if m.listFn != nil {
		return m.listFn(ctx, principal)
	}
	return []model.Vehicle{}, nil
}

func (m *mockFleetService) AddVehicle(ctx context.Context, in fleet.VehicleInput, req *action.Request, principal *model.User) (action.Result, error) {
	if m.addFn != nil {
		return m.addFn(ctx, in, req, principal)
	}
	return action.Succeed("Vehicle added successfully.", map[string]string{"id": "1"}), nil
}

func (m *mockFleetService) UpdateVehicle(ctx context.Context, in fleet.VehicleInput, req *action.Request, principal *model.User) (action.Result, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, in, req, principal)
	}
	return action.Succeed("Vehicle updated successfully.", nil), nil
}

func (m *mockFleetService) DeleteVehicle(ctx context.Context, in fleet.DeleteVehicleInput, req *action.Request, principal *model.User) (action.Result, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, in, req, principal)
	}
	return action.Succeed("Vehicle deleted successfully.", nil), nil
}

func vehicleForm() url.Values {
	return url.Values{
		"brand": {"Toyota"}, "model": {"Corolla"}, "year": {"2020"},
		"kilometers": {"42000"}, "plate": {"TR-123-AB"},
	}
}

// --- GET /dashboard/api/vehicles テスト ---

func TestVehicleHandler_ListVehicles(t *testing.T) {
	fuel := "diesel"
	svc := &mockFleetService{
		listFn: func(_ context.Context, principal *model.User) ([]model.Vehicle, error) {
			if principal.ID != 7 {
				t.Errorf("principal = %d", principal.ID)
			}
			return []model.Vehicle{{ID: 1, TeamID: 3, Brand: "Toyota", Model: "Corolla", Year: 2020, Plate: "TR-123-AB", FuelType: &fuel}}, nil
		},
	}
	runner, _, _ := newTestRunner(testUser())
	h := NewVehicleHandler(svc, runner)

	w := httptest.NewRecorder()
	h.ListVehicles(w, httptest.NewRequest(http.MethodGet, "/dashboard/api/vehicles", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 || body[0]["plate"] != "TR-123-AB" || body[0]["fuelType"] != "diesel" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body[0]["teamId"]; ok {
		t.Error("team id should not be exposed")
	}
}

func TestVehicleHandler_ListVehicles_EmptyIsArray(t *testing.T) {
	runner, _, _ := newTestRunner(testUser())
	h := NewVehicleHandler(&mockFleetService{}, runner)

	w := httptest.NewRecorder()
	h.ListVehicles(w, httptest.NewRequest(http.MethodGet, "/dashboard/api/vehicles", nil))

	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want []", got)
	}
}

// --- POST /dashboard/api/vehicles テスト ---

func TestVehicleHandler_AddVehicle(t *testing.T) {
	svc := &mockFleetService{
		addFn: func(_ context.Context, in fleet.VehicleInput, _ *action.Request, _ *model.User) (action.Result, error) {
			if in.Brand != "Toyota" || in.Year != 2020 || in.Kilometers != 42000 {
				t.Errorf("input = %+v", in)
			}
			return action.Succeed("Vehicle added successfully.", map[string]string{"id": "12"}), nil
		},
	}
	runner, _, _ := newTestRunner(testUser())
	h := NewVehicleHandler(svc, runner)

	w := httptest.NewRecorder()
	h.AddVehicle(w, newFormRequest(http.MethodPost, "/dashboard/api/vehicles", vehicleForm()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := parseResultResponse(t, w); body["id"] != "12" {
		t.Errorf("body = %v", body)
	}
}

// --- PUT/DELETE /dashboard/api/vehicles/{id} テスト ---

func TestVehicleHandler_UpdateVehicle_UsesPathID(t *testing.T) {
	svc := &mockFleetService{
		updateFn: func(_ context.Context, in fleet.VehicleInput, _ *action.Request, _ *model.User) (action.Result, error) {
			if in.ID != 12 {
				t.Errorf("ID = %d, want 12", in.ID)
			}
			return action.Succeed("Vehicle updated successfully.", nil), nil
		},
	}
	runner, _, _ := newTestRunner(testUser())
	h := NewVehicleHandler(svc, runner)

	w := httptest.NewRecorder()
	req := withChiURLParam(newFormRequest(http.MethodPut, "/dashboard/api/vehicles/12", vehicleForm()), "id", "12")
	h.UpdateVehicle(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestVehicleHandler_UpdateVehicle_InvalidID(t *testing.T) {
	svc := &mockFleetService{
		updateFn: func(context.Context, fleet.VehicleInput, *action.Request, *model.User) (action.Result, error) {
			t.Error("UpdateVehicle should not be called")
			return action.Result{}, nil
		},
	}
	runner, _, _ := newTestRunner(testUser())
	h := NewVehicleHandler(svc, runner)

	w := httptest.NewRecorder()
	h.UpdateVehicle(w, withChiURLParam(newFormRequest(http.MethodPut, "/dashboard/api/vehicles/abc", vehicleForm()), "id", "abc"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeInvalidID {
		t.Errorf("code = %q", body["code"])
	}
}

func TestVehicleHandler_DeleteVehicle_NotFound(t *testing.T) {
	svc := &mockFleetService{
		deleteFn: func(_ context.Context, in fleet.DeleteVehicleInput, _ *action.Request, _ *model.User) (action.Result, error) {
			if in.ID != 44 {
				t.Errorf("ID = %d", in.ID)
			}
			return action.Fail(action.KindNotFound, "Vehicle not found.", nil), nil
		},
	}
	runner, _, _ := newTestRunner(testUser())
	h := NewVehicleHandler(svc, runner)

	w := httptest.NewRecorder()
	h.DeleteVehicle(w, withChiURLParam(httptest.NewRequest(http.MethodDelete, "/dashboard/api/vehicles/44", nil), "id", "44"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
