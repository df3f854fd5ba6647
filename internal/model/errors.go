package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// フォーム単位の結果（action.Result）で表現できない失敗に使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, team, fleet, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidID       = "INVALID_ID"
	ErrCodeTeamNotFound    = "TEAM_NOT_FOUND"
	ErrCodeBillingDisabled = "BILLING_DISABLED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeCSRF            = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
)

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Something went wrong. Please try again later.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "not authenticated",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid or missing data.",
		Category: "validation",
		Action:   "Send a form-encoded or JSON body.",
	}
}

// NewInvalidIDError は数値IDの解析失敗エラーを生成する。
func NewInvalidIDError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("Invalid %s ID", kind),
		Category: "validation",
		Action:   "Check the ID in the request path.",
	}
}

// NewTeamNotFoundError はユーザーがチームに所属していない場合のエラーを生成する。
func NewTeamNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTeamNotFound,
		Message:  "User is not part of a team",
		Category: "team",
		Action:   "Ask a team owner for an invitation.",
	}
}

// NewBillingDisabledError は課金プロバイダー未設定エラーを生成する。
func NewBillingDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeBillingDisabled,
		Message:  "Billing is not configured.",
		Category: "billing",
		Action:   "Contact the administrator.",
	}
}

// NewForbiddenError は共有シークレット不一致などの拒否エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Forbidden.",
		Category: "auth",
		Action:   "Check the request credentials.",
	}
}

// NewCSRFError はCSRFトークン検証の失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed.",
		Category: "auth",
		Action:   "Fetch /api/csrf-token and resend the request with the X-CSRF-Token header.",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}
