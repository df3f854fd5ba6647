// Package fleet はチームが管理する車両の一覧・登録・更新・削除を提供する。
// すべての操作は認証ユーザーの現在のチームにスコープされる。
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
)

const (
	notInTeamMessage       = "User is not part of a team"
	vehicleNotFoundMessage = "Vehicle not found."
	invalidDateMessage     = "Invalid registrationExp date format"
)

// VehicleStore は車両の永続化操作。repository.VehicleRepositoryが実装する。
type VehicleStore interface {
	ListByTeam(ctx context.Context, teamID int64) ([]model.Vehicle, error)
	Create(ctx context.Context, v *model.Vehicle) error
	Update(ctx context.Context, v *model.Vehicle) (bool, error)
	Delete(ctx context.Context, id, teamID int64) (bool, error)
}

// MembershipFinder はユーザーの現在のチーム所属を返す。
type MembershipFinder interface {
	FindMembershipByUserID(ctx context.Context, userID int64) (*model.Membership, error)
}

// AuditRecorder は監査ログを記録する。
type AuditRecorder interface {
	Record(ctx context.Context, teamID *int64, userID int64, kind model.ActivityType, ip string) error
}

// Sanitizer は自由入力テキストを無害化する。
type Sanitizer interface {
	Sanitize(raw string) string
	SanitizePtr(raw *string) *string
}

// Service は車両管理のサービス層。
type Service struct {
	vehicles  VehicleStore
	members   MembershipFinder
	audit     AuditRecorder
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(vehicles VehicleStore, members MembershipFinder, audit AuditRecorder, sanitizer Sanitizer) *Service {
	return &Service{
		vehicles:  vehicles,
		members:   members,
		audit:     audit,
		sanitizer: sanitizer,
	}
}

// ListVehicles はユーザーのチームの車両一覧を返す。所属がない場合は空の一覧。
func (s *Service) ListVehicles(ctx context.Context, user *model.User) ([]model.Vehicle, error) {
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return []model.Vehicle{}, nil
	}

	vehicles, err := s.vehicles.ListByTeam(ctx, m.Team.ID)
	if err != nil {
		return nil, fmt.Errorf("車両一覧の取得に失敗しました: %w", err)
	}
	if vehicles == nil {
		vehicles = []model.Vehicle{}
	}
	return vehicles, nil
}

// VehicleInput は車両の登録・更新フォーム。更新時はIDにURLパスの車両IDが入る。
type VehicleInput struct {
	ID              int64  `form:"id"`
	Brand           string `form:"brand" validate:"required,max=100"`
	Model           string `form:"model" validate:"required,max=100"`
	Year            int    `form:"year" validate:"required,gte=1900,lte=2100"`
	Kilometers      int    `form:"kilometers" validate:"gte=0"`
	Plate           string `form:"plate" validate:"required,max=20"`
	RegistrationExp string `form:"registrationExp" validate:"omitempty,max=40"`
	Engine          *int   `form:"engine" validate:"omitempty,gte=0"`
	FuelType        string `form:"fuelType" validate:"omitempty,max=30"`
	Gearbox         string `form:"gearbox" validate:"omitempty,max=30"`
	Seats           *int   `form:"seats" validate:"omitempty,gte=1,lte=100"`
	Notes           string `form:"notes" validate:"omitempty,max=2000"`
}

// Messages は入力エラーのメッセージを返す。
func (VehicleInput) Messages() map[string]string {
	return map[string]string{
		"Year.gte":    "year must be between 1900 and 2100",
		"Year.lte":    "year must be between 1900 and 2100",
		"Year.decode": "year must be between 1900 and 2100",
	}
}

// AddVehicle はユーザーのチームに車両を登録する。
func (s *Service) AddVehicle(ctx context.Context, in VehicleInput, req *action.Request, user *model.User) (action.Result, error) {
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return action.Fail(action.KindForbidden, notInTeamMessage, nil), nil
	}

	v, failure, ok := s.toVehicle(in, m.Team.ID)
	if !ok {
		return failure, nil
	}
	if err := s.vehicles.Create(ctx, v); err != nil {
		return action.Result{}, fmt.Errorf("車両の登録に失敗しました: %w", err)
	}

	teamID := m.Team.ID
	if err := s.audit.Record(ctx, &teamID, user.ID, model.ActivityAddVehicle, req.IPAddress); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}

	slog.Info("vehicle added",
		slog.Int64("team_id", teamID),
		slog.Int64("vehicle_id", v.ID),
	)
	return action.Succeed("Vehicle added successfully.", map[string]string{
		"id": strconv.FormatInt(v.ID, 10),
	}), nil
}

// UpdateVehicle はユーザーのチームの車両を更新する。他チームの車両は見つからない扱い。
func (s *Service) UpdateVehicle(ctx context.Context, in VehicleInput, req *action.Request, user *model.User) (action.Result, error) {
	if in.ID <= 0 {
		return action.Fail(action.KindValidation, "Invalid vehicle ID", nil), nil
	}
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return action.Fail(action.KindForbidden, notInTeamMessage, nil), nil
	}

	v, failure, ok := s.toVehicle(in, m.Team.ID)
	if !ok {
		return failure, nil
	}
	v.ID = in.ID
	updated, err := s.vehicles.Update(ctx, v)
	if err != nil {
		return action.Result{}, fmt.Errorf("車両の更新に失敗しました: %w", err)
	}
	if !updated {
		return action.Fail(action.KindNotFound, vehicleNotFoundMessage, nil), nil
	}

	teamID := m.Team.ID
	if err := s.audit.Record(ctx, &teamID, user.ID, model.ActivityUpdateVehicle, req.IPAddress); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}
	return action.Succeed("Vehicle updated successfully.", map[string]string{
		"id": strconv.FormatInt(v.ID, 10),
	}), nil
}

// DeleteVehicleInput は車両削除の入力。IDにはURLパスの車両IDが入る。
type DeleteVehicleInput struct {
	ID int64 `form:"id" validate:"required,gt=0"`
}

// Messages は入力エラーのメッセージを返す。
func (DeleteVehicleInput) Messages() map[string]string {
	return map[string]string{
		"ID.required": "Invalid vehicle ID",
		"ID.gt":       "Invalid vehicle ID",
		"ID.decode":   "Invalid vehicle ID",
	}
}

// DeleteVehicle はユーザーのチームの車両を削除する。
func (s *Service) DeleteVehicle(ctx context.Context, in DeleteVehicleInput, req *action.Request, user *model.User) (action.Result, error) {
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return action.Fail(action.KindForbidden, notInTeamMessage, nil), nil
	}

	teamID := m.Team.ID
	deleted, err := s.vehicles.Delete(ctx, in.ID, teamID)
	if err != nil {
		return action.Result{}, fmt.Errorf("車両の削除に失敗しました: %w", err)
	}
	if !deleted {
		return action.Fail(action.KindNotFound, vehicleNotFoundMessage, nil), nil
	}

	if err := s.audit.Record(ctx, &teamID, user.ID, model.ActivityDeleteVehicle, req.IPAddress); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}
	return action.Succeed("Vehicle deleted successfully.", nil), nil
}

// toVehicle は入力をチームの車両に変換する。日付が不正な場合は失敗結果を返す。
func (s *Service) toVehicle(in VehicleInput, teamID int64) (*model.Vehicle, action.Result, bool) {
	regExp, err := parseRegistrationExp(in.RegistrationExp)
	if err != nil {
		return nil, action.Fail(action.KindValidation, invalidDateMessage, map[string]string{
			"registrationExp": in.RegistrationExp,
		}), false
	}

	v := &model.Vehicle{
		TeamID:          teamID,
		Brand:           s.clean(in.Brand),
		Model:           s.clean(in.Model),
		Year:            in.Year,
		Kilometers:      in.Kilometers,
		Plate:           strings.ToUpper(s.clean(in.Plate)),
		RegistrationExp: regExp,
		Engine:          in.Engine,
		FuelType:        s.cleanOptional(in.FuelType),
		Gearbox:         s.cleanOptional(in.Gearbox),
		Seats:           in.Seats,
		Notes:           s.cleanOptional(in.Notes),
	}
	if v.Brand == "" || v.Model == "" || v.Plate == "" {
		return nil, action.Fail(action.KindValidation, "brand, model and plate are required", nil), false
	}
	return v, action.Result{}, true
}

func (s *Service) clean(raw string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(raw)
	}
	return s.sanitizer.Sanitize(raw)
}

func (s *Service) cleanOptional(raw string) *string {
	if s.sanitizer == nil {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	}
	return s.sanitizer.SanitizePtr(&raw)
}

// parseRegistrationExp は日付（YYYY-MM-DD）またはRFC3339の日時を受け付ける。空文字はnil。
func parseRegistrationExp(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", raw)
}
