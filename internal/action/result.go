// Package action はフォーム入力を伴う業務アクションの共通ラッパーと結果型を提供する。
package action

import (
	"encoding/json"
	"maps"
)

// Kind は失敗の分類。HTTP層がステータスコードへの変換に使用する。
type Kind int

const (
	// KindNone は成功、または分類不要な結果。
	KindNone Kind = iota
	// KindValidation は入力値の不備。
	KindValidation
	// KindUnauthenticated は認証ユーザーが存在しない。
	KindUnauthenticated
	// KindForbidden はチーム所属・ロールの不足。
	KindForbidden
	// KindConflict は重複・対象なし・期限切れなどの状態不整合。
	KindConflict
	// KindUnavailable はメール送信など外部プロバイダーの一時的な失敗。
	KindUnavailable
	// KindNotFound はチーム内に対象が存在しない。
	KindNotFound
)

// String はKindの名前を返す。
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindNotFound:
		return "not_found"
	default:
		return "none"
	}
}

// NotAuthenticatedMessage は認証ユーザーがいない場合の共通メッセージ。
const NotAuthenticatedMessage = "not authenticated"

// Result はアクションの結果。ErrorとSuccessはどちらか一方のみ設定する。
// Valuesはフォーム再表示用のエコー値。
type Result struct {
	Error      string
	Success    string
	Values     map[string]string
	RedirectTo string
	Kind       Kind
}

// Fail は失敗結果を返す。
func Fail(kind Kind, message string, values map[string]string) Result {
	return Result{Error: message, Values: values, Kind: kind}
}

// Succeed は成功結果を返す。
func Succeed(message string, values map[string]string) Result {
	return Result{Success: message, Values: values}
}

// Redirect はリダイレクト結果を返す。
func Redirect(to string) Result {
	return Result{RedirectTo: to}
}

// NotAuthenticated は認証ユーザーがいない場合の結果を返す。
func NotAuthenticated() Result {
	return Fail(KindUnauthenticated, NotAuthenticatedMessage, nil)
}

// Failed はErrorが設定されているかを返す。
func (r Result) Failed() bool {
	return r.Error != ""
}

// MarshalJSON はValuesを展開したフラットなJSONを出力する。
// error/success/redirectToはValuesの同名キーより優先する。
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r.Values)+2)
	maps.Copy(out, r.Values)
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.Success != "" {
		out["success"] = r.Success
	}
	if r.RedirectTo != "" {
		out["redirectTo"] = r.RedirectTo
	}
	return json.Marshal(out)
}
