package action

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/mjeti360/internal/model"
)

// SessionHandle は1リクエスト分のセッション操作。auth.CookieSessionが実装する。
type SessionHandle interface {
	Token() (string, bool)
	Set(ctx context.Context, user *model.User) error
	Clear()
}

// Request はアクションへの入力。
type Request struct {
	Form      url.Values
	IPAddress string
	Session   SessionHandle
}

// PrincipalResolver はセッショントークンから認証ユーザーを解決する。
type PrincipalResolver interface {
	CurrentPrincipal(ctx context.Context, token string) (*model.User, error)
}

// Handler はラップ済みのアクション。
// 入力不備・認証なし・権限不足はResultで返し、errorはデータストア障害などの致命的失敗に限る。
type Handler func(ctx context.Context, req *Request) (Result, error)

// Gate はフォームのデコード・検証と認証ユーザーの解決を行う。
type Gate struct {
	resolver PrincipalResolver
	decoder  *form.Decoder
	validate *validator.Validate
}

// NewGate はGateを生成する。
func NewGate(resolver PrincipalResolver) *Gate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Gate{
		resolver: resolver,
		decoder:  form.NewDecoder(),
		validate: v,
	}
}

// Validated は入力検証のみを行うアクションを返す。
// 認証が必要な場合はアクション自身が確認する。
func Validated[T any](g *Gate, fn func(ctx context.Context, input T, req *Request) (Result, error)) Handler {
	return func(ctx context.Context, req *Request) (Result, error) {
		input, failure, ok := bind[T](g, req.Form)
		if !ok {
			return failure, nil
		}
		return fn(ctx, input, req)
	}
}

// ValidatedWithUser は認証ユーザーを解決してから入力検証を行うアクションを返す。
// 認証ユーザーがいない場合はfnを呼ばずに"not authenticated"を返す。
func ValidatedWithUser[T any](g *Gate, fn func(ctx context.Context, input T, req *Request, user *model.User) (Result, error)) Handler {
	return func(ctx context.Context, req *Request) (Result, error) {
		user, err := g.Principal(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if user == nil {
			return NotAuthenticated(), nil
		}

		input, failure, ok := bind[T](g, req.Form)
		if !ok {
			return failure, nil
		}
		return fn(ctx, input, req, user)
	}
}

// Principal はリクエストのセッションから認証ユーザーを返す。いない場合はnil。
func (g *Gate) Principal(ctx context.Context, req *Request) (*model.User, error) {
	if req.Session == nil {
		return nil, nil
	}
	token, ok := req.Session.Token()
	if !ok {
		return nil, nil
	}
	user, err := g.resolver.CurrentPrincipal(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}
	return user, nil
}

// bind はフォーム値をTにデコードし検証する。失敗時はエコー値付きの結果を返す。
func bind[T any](g *Gate, values url.Values) (T, Result, bool) {
	var input T
	echo := echoValues(reflect.TypeOf(input), values)

	if err := g.decoder.Decode(&input, values); err != nil {
		return input, Fail(KindValidation, decodeMessage(input, err), echo), false
	}
	if err := g.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return input, Fail(KindValidation, violationMessage(input, verrs[0]), echo), false
		}
		return input, Fail(KindValidation, "Invalid input.", echo), false
	}
	return input, Result{}, true
}

// echoValues は入力構造体のformタグに対応する送信値を返す。
// `action:"secret"` が付いたフィールドは返さない。
func echoValues(t reflect.Type, values url.Values) map[string]string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	echo := map[string]string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("action") == "secret" {
			continue
		}
		name := formFieldName(f)
		if name == "" {
			continue
		}
		if v, ok := values[name]; ok && len(v) > 0 {
			echo[name] = v[0]
		}
	}
	if len(echo) == 0 {
		return nil
	}
	return echo
}
