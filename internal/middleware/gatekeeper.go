package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/mjeti360/internal/auth"
)

// ゲートキーパーの判定結果。メトリクスのラベルに使用する。
const (
	GateOutcomeNoSession     = "no_session"
	GateOutcomeValid         = "valid"
	GateOutcomeRefreshed     = "refreshed"
	GateOutcomeInvalid       = "invalid"
	GateOutcomeRedirected    = "redirected"
	GateOutcomeRefreshFailed = "refresh_failed"
)

// SessionVerifier はゲートキーパーが使うセッション操作。
// データストアには触れない。
type SessionVerifier interface {
	ReadToken(r *http.Request) (string, bool)
	Verify(token string) (auth.SessionPayload, error)
	Reissue(w http.ResponseWriter, p auth.SessionPayload) (auth.SessionPayload, error)
	Clear(w http.ResponseWriter)
}

var _ SessionVerifier = (*auth.SessionStore)(nil) // compile-time interface check

// GatekeeperMetrics はゲートキーパーの判定結果を記録する。
type GatekeeperMetrics interface {
	RecordGatekeeperOutcome(outcome string)
}

// GatekeeperConfig はゲートキーパーの設定。
type GatekeeperConfig struct {
	ProtectedPrefix  string        // 認証必須のパスプレフィックス（デフォルト "/dashboard"）
	SignInPath       string        // 未認証時のリダイレクト先（デフォルト "/sign-in"）
	RefreshThreshold time.Duration // 残り時間がこれを下回ったら再発行する（デフォルト 10分）
	Now              func() time.Time
	Metrics          GatekeeperMetrics
}

// NewGatekeeperMiddleware はすべてのリクエストの手前でセッションCookieを検証するミドルウェアを返す。
//
//   - Cookieなしで保護パスにアクセス: サインインへ307リダイレクト
//   - 検証失敗: Cookieを削除し、保護パスならリダイレクト、それ以外は通過
//   - 検証成功: GET/HEADかつ残り時間が閾値未満なら同じセッションIDで再発行
func NewGatekeeperMiddleware(sessions SessionVerifier, cfg GatekeeperConfig) func(next http.Handler) http.Handler {
	if cfg.ProtectedPrefix == "" {
		cfg.ProtectedPrefix = "/dashboard"
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	record := func(outcome string) {
		if cfg.Metrics != nil {
			cfg.Metrics.RecordGatekeeperOutcome(outcome)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected := isProtectedPath(r.URL.Path, cfg.ProtectedPrefix)

			token, ok := sessions.ReadToken(r)
			if !ok {
				if protected {
					record(GateOutcomeRedirected)
					http.Redirect(w, r, cfg.SignInPath, http.StatusTemporaryRedirect)
					return
				}
				record(GateOutcomeNoSession)
				next.ServeHTTP(w, r)
				return
			}

			payload, err := sessions.Verify(token)
			if err != nil {
				record(GateOutcomeInvalid)
				sessions.Clear(w)
				slog.Debug("session cookie rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				if protected {
					http.Redirect(w, r, cfg.SignInPath, http.StatusTemporaryRedirect)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if isRefreshMethod(r.Method) && payload.ExpiresAt.Sub(cfg.Now()) < cfg.RefreshThreshold {
				if _, err := sessions.Reissue(w, payload); err != nil {
					record(GateOutcomeRefreshFailed)
					slog.Error("failed to refresh session",
						slog.Int64("user_id", payload.UserID),
						slog.String("error", err.Error()),
					)
				} else {
					record(GateOutcomeRefreshed)
				}
			} else {
				record(GateOutcomeValid)
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSessionUserID(r.Context(), payload.UserID)))
		})
	}
}

// isProtectedPath はパスが保護プレフィックス配下かどうかを判定する。
// "/dashboard" は "/dashboard" と "/dashboard/..." に一致し、"/dashboards" には一致しない。
func isProtectedPath(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

func isRefreshMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
