package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/auth"
	"github.com/hitoshi/mjeti360/internal/middleware"
	"github.com/hitoshi/mjeti360/internal/model"
)

// maxBodyBytes はアクションのリクエストボディの上限。
const maxBodyBytes = 1 << 20

// SessionBinder はリクエストに結び付いたセッション操作を返す。
type SessionBinder func(w http.ResponseWriter, r *http.Request) action.SessionHandle

// CookieSessions はSessionStoreのCookieセッションを使うSessionBinderを返す。
func CookieSessions(store *auth.SessionStore) SessionBinder {
	return func(w http.ResponseWriter, r *http.Request) action.SessionHandle {
		return store.Bind(w, r)
	}
}

// ActionMetrics はアクションの結果を記録する。
type ActionMetrics interface {
	RecordActionResult(action, kind string)
}

// ActionRunner はHTTPリクエストをaction.Requestに変換してアクションを実行し、
// 結果をJSONレスポンスに変換する。
type ActionRunner struct {
	gate     *action.Gate
	sessions SessionBinder
	metrics  ActionMetrics
}

// NewActionRunner はActionRunnerを生成する。metricsはnilでもよい。
func NewActionRunner(gate *action.Gate, sessions SessionBinder, metrics ActionMetrics) *ActionRunner {
	return &ActionRunner{gate: gate, sessions: sessions, metrics: metrics}
}

// Serve はアクションを実行するHTTPハンドラーを返す。nameはメトリクスのラベルに使用する。
func (a *ActionRunner) Serve(name string, h action.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := a.buildRequest(w, r)
		if err != nil {
			a.record(name, "bad_request")
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}

		res, err := h(r.Context(), req)
		if err != nil {
			a.record(name, "error")
			handleServiceError(w, r, err)
			return
		}

		a.record(name, res.Kind.String())
		writeActionResult(w, res)
	}
}

// Principal はリクエストのセッションから認証ユーザーを解決する。いない場合はnil。
func (a *ActionRunner) Principal(w http.ResponseWriter, r *http.Request) (*model.User, error) {
	return a.gate.Principal(r.Context(), &action.Request{Session: a.session(w, r)})
}

func (a *ActionRunner) session(w http.ResponseWriter, r *http.Request) action.SessionHandle {
	if a.sessions == nil {
		return nil
	}
	return a.sessions(w, r)
}

func (a *ActionRunner) record(name, kind string) {
	if a.metrics != nil {
		a.metrics.RecordActionResult(name, kind)
	}
}

// buildRequest はボディとURLパラメータからaction.Requestを構築する。
func (a *ActionRunner) buildRequest(w http.ResponseWriter, r *http.Request) (*action.Request, error) {
	form, err := readForm(w, r)
	if err != nil {
		return nil, err
	}

	// URLパラメータはボディの同名フィールドより優先する
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "" || key == "*" || i >= len(rctx.URLParams.Values) {
				continue
			}
			form.Set(key, rctx.URLParams.Values[i])
		}
	}

	return &action.Request{
		Form:      form,
		IPAddress: middleware.ClientIP(r),
		Session:   a.session(w, r),
	}, nil
}

// readForm はフォーム形式またはJSONのボディをurl.Valuesとして読み取る。
// JSONはトップレベルのオブジェクトのみ受け付け、スカラー値と配列を文字列に変換する。
func readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	form := url.Values{}
	if r.Body == nil || r.Body == http.NoBody {
		return form, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return form, nil
			}
			return nil, fmt.Errorf("failed to decode json body: %w", err)
		}
		for key, v := range body {
			addJSONValue(form, key, v)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}
		maps.Copy(form, r.PostForm)
	default:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}
		maps.Copy(form, r.PostForm)
	}
	return form, nil
}

func addJSONValue(form url.Values, key string, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		form.Add(key, val)
	case json.Number:
		form.Add(key, val.String())
	case bool:
		form.Add(key, strconv.FormatBool(val))
	case []any:
		for _, item := range val {
			addJSONValue(form, key, item)
		}
	}
}

// writeActionResult はアクションの結果をHTTPレスポンスに変換する。
// リダイレクトは303とLocationヘッダー、それ以外はKindに応じたステータスでJSONを返す。
func writeActionResult(w http.ResponseWriter, res action.Result) {
	if res.RedirectTo != "" && !res.Failed() {
		w.Header().Set("Location", res.RedirectTo)
		writeJSON(w, http.StatusSeeOther, res)
		return
	}
	writeJSON(w, statusForKind(res.Kind), res)
}

// statusForKind はKindをHTTPステータスコードに変換する。
func statusForKind(kind action.Kind) int {
	switch kind {
	case action.KindValidation:
		return http.StatusUnprocessableEntity
	case action.KindUnauthenticated:
		return http.StatusUnauthorized
	case action.KindForbidden:
		return http.StatusForbidden
	case action.KindConflict:
		return http.StatusConflict
	case action.KindUnavailable:
		return http.StatusServiceUnavailable
	case action.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

// withPrincipal は認証ユーザーを解決してからfnを呼ぶハンドラーを返す。
// 認証ユーザーがいない場合は401を返す。
func (a *ActionRunner) withPrincipal(fn func(w http.ResponseWriter, r *http.Request, user *model.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Principal(w, r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if user == nil {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		fn(w, r, user)
	}
}

// principalAction はユーザー解決のみを行いフォーム検証を伴わないアクションを返す。
func principalAction(g *action.Gate, fn func(ctx context.Context, req *action.Request, user *model.User) (action.Result, error)) action.Handler {
	return func(ctx context.Context, req *action.Request) (action.Result, error) {
		user, err := g.Principal(ctx, req)
		if err != nil {
			return action.Result{}, err
		}
		return fn(ctx, req, user)
	}
}

// requireNumericParam はURLパラメータが正の整数でない場合に400を返す。
func requireNumericParam(param, kind string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
		if err != nil || id <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(kind))
			return
		}
		next(w, r)
	}
}

// pagingParams はクエリのpage・limitを読み取る。不正な値は0として扱い、既定値の適用は呼び出し先に任せる。
func pagingParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return page, limit
}
