package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ActivityType は監査ログに記録する操作種別。
// 値はこのパッケージで定義したものに限られ、他パッケージから新しい種別は作れない。
// ゼロ値は無効な種別として扱う。
type ActivityType struct {
	name string
}

var (
	ActivitySignUp           = ActivityType{"SIGN_UP"}
	ActivitySignIn           = ActivityType{"SIGN_IN"}
	ActivitySignOut          = ActivityType{"SIGN_OUT"}
	ActivityUpdatePassword   = ActivityType{"UPDATE_PASSWORD"}
	ActivityDeleteAccount    = ActivityType{"DELETE_ACCOUNT"}
	ActivityUpdateAccount    = ActivityType{"UPDATE_ACCOUNT"}
	ActivityCreateTeam       = ActivityType{"CREATE_TEAM"}
	ActivityUpdateTeam       = ActivityType{"UPDATE_TEAM"}
	ActivityRemoveTeamMember = ActivityType{"REMOVE_TEAM_MEMBER"}
	ActivityInviteTeamMember = ActivityType{"INVITE_TEAM_MEMBER"}
	ActivityAcceptInvitation = ActivityType{"ACCEPT_INVITATION"}
	ActivityAddVehicle       = ActivityType{"ADD_VEHICLE"}
	ActivityUpdateVehicle    = ActivityType{"UPDATE_VEHICLE"}
	ActivityDeleteVehicle    = ActivityType{"DELETE_VEHICLE"}
)

// AllActivityTypes は定義済みの全操作種別を返す。
func AllActivityTypes() []ActivityType {
	return []ActivityType{
		ActivitySignUp, ActivitySignIn, ActivitySignOut,
		ActivityUpdatePassword, ActivityDeleteAccount, ActivityUpdateAccount,
		ActivityCreateTeam, ActivityUpdateTeam,
		ActivityRemoveTeamMember, ActivityInviteTeamMember, ActivityAcceptInvitation,
		ActivityAddVehicle, ActivityUpdateVehicle, ActivityDeleteVehicle,
	}
}

// ParseActivityType は文字列から操作種別を取得する。未知の文字列はエラー。
func ParseActivityType(s string) (ActivityType, error) {
	for _, a := range AllActivityTypes() {
		if a.name == s {
			return a, nil
		}
	}
	return ActivityType{}, fmt.Errorf("unknown activity type: %q", s)
}

// String は操作種別の文字列表現を返す。
func (a ActivityType) String() string {
	return a.name
}

// IsZero はゼロ値（無効な種別）かどうかを返す。
func (a ActivityType) IsZero() bool {
	return a.name == ""
}

// Value はdriver.Valuerを実装する。ゼロ値の書き込みは拒否する。
func (a ActivityType) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("activity type is not set")
	}
	return a.name, nil
}

// Scan はsql.Scannerを実装する。
func (a *ActivityType) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ActivityType", src)
	}
	parsed, err := ParseActivityType(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON は文字列としてJSONに出力する。
func (a ActivityType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.name)
}

// ActivityLog は監査ログの1レコード。書き込み後は更新・削除しない。
type ActivityLog struct {
	ID        int64        `db:"id"`
	TeamID    int64        `db:"team_id"`
	UserID    *int64       `db:"user_id"`
	Action    ActivityType `db:"action"`
	Timestamp time.Time    `db:"timestamp"`
	IPAddress *string      `db:"ip_address"`
}

// ActivityLogView は一覧表示用に操作ユーザーの情報を結合した監査ログ。
type ActivityLogView struct {
	ActivityLog
	UserName  *string `db:"user_name"`
	UserEmail *string `db:"user_email"`
}

// ActivityPage は監査ログのページング結果。
type ActivityPage struct {
	Logs       []ActivityLogView
	Total      int
	Page       int
	Limit      int
	TotalPages int
}
