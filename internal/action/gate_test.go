package action

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/hitoshi/mjeti360/internal/model"
)

// --- モック ---

type mockResolver struct {
	currentPrincipalFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockResolver) CurrentPrincipal(ctx context.Context, token string) (*model.User, error) {
	if m.currentPrincipalFn != nil {
		return m.currentPrincipalFn(ctx, token)
	}
	return nil, nil
}

type mockSession struct {
	token   string
	cleared bool
	setUser *model.User
}

func (m *mockSession) Token() (string, bool) { return m.token, m.token != "" }
func (m *mockSession) Set(_ context.Context, user *model.User) error {
	m.setUser = user
	return nil
}
func (m *mockSession) Clear() { m.cleared = true }

// --- 入力 ---

type signInInput struct {
	Email    string `form:"email" validate:"required,email,min=3,max=255"`
	Password string `form:"password" validate:"required,min=8,max=100" action:"secret"`
}

type renameInput struct {
	Name string `form:"name" validate:"required,min=1,max=100"`
}

func (renameInput) Messages() map[string]string {
	return map[string]string{"Name.required": "Name is required"}
}

type roleInput struct {
	Role string `form:"role" validate:"required,oneof=member owner"`
}

type removeInput struct {
	MemberID int64 `form:"memberId" validate:"required,gt=0"`
	Count    int   `form:"count"`
	Weight   int   `form:"weight"`
}

func (removeInput) Messages() map[string]string {
	return map[string]string{
		"MemberID.gt":     "Invalid member ID",
		"MemberID.decode": "Invalid member ID",
	}
}

// --- テスト ---

func TestValidated_CallsActionWithDecodedInput(t *testing.T) {
	g := NewGate(&mockResolver{})
	var got signInInput
	h := Validated(g, func(_ context.Context, in signInInput, _ *Request) (Result, error) {
		got = in
		return Redirect("/dashboard"), nil
	})

	res, err := h(context.Background(), &Request{Form: url.Values{
		"email":    {"alice@example.com"},
		"password": {"supersecret"},
	}})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if res.RedirectTo != "/dashboard" {
		t.Errorf("RedirectTo = %q, want /dashboard", res.RedirectTo)
	}
	if got.Email != "alice@example.com" || got.Password != "supersecret" {
		t.Errorf("input = %+v", got)
	}
}

func TestValidated_FirstViolationAndEchoWithoutSecrets(t *testing.T) {
	g := NewGate(&mockResolver{})
	called := false
	h := Validated(g, func(context.Context, signInInput, *Request) (Result, error) {
		called = true
		return Result{}, nil
	})

	res, err := h(context.Background(), &Request{Form: url.Values{
		"email":    {"not-an-email"},
		"password": {"short"},
	}})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if called {
		t.Error("action called despite validation failure")
	}
	if res.Kind != KindValidation {
		t.Errorf("Kind = %v, want validation", res.Kind)
	}
	if res.Error != "Invalid email address" {
		t.Errorf("Error = %q, want %q", res.Error, "Invalid email address")
	}
	if res.Values["email"] != "not-an-email" {
		t.Errorf("Values[email] = %q, want echo", res.Values["email"])
	}
	if _, ok := res.Values["password"]; ok {
		t.Error("password echoed back")
	}
}

func TestValidated_MessageOverride(t *testing.T) {
	g := NewGate(&mockResolver{})
	h := Validated(g, func(context.Context, renameInput, *Request) (Result, error) {
		return Result{}, nil
	})

	res, _ := h(context.Background(), &Request{Form: url.Values{}})
	if res.Error != "Name is required" {
		t.Errorf("Error = %q, want %q", res.Error, "Name is required")
	}
}

func TestValidated_DefaultMessages(t *testing.T) {
	g := NewGate(&mockResolver{})
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "min length", form: url.Values{"email": {"a@b.co"}, "password": {"short"}}, want: "password must be at least 8 characters"},
		{name: "required", form: url.Values{"password": {"longenough"}}, want: "email is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Validated(g, func(context.Context, signInInput, *Request) (Result, error) {
				return Result{}, nil
			})
			res, _ := h(context.Background(), &Request{Form: tt.form})
			if res.Error != tt.want {
				t.Errorf("Error = %q, want %q", res.Error, tt.want)
			}
		})
	}

	h := Validated(g, func(context.Context, roleInput, *Request) (Result, error) { return Result{}, nil })
	res, _ := h(context.Background(), &Request{Form: url.Values{"role": {"admin"}}})
	if res.Error != "role must be one of: member, owner" {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestValidated_DecodeFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "override for decode failure", form: url.Values{"memberId": {"abc"}}, want: "Invalid member ID"},
		{name: "first field in declaration order", form: url.Values{"memberId": {"1"}, "weight": {"x"}, "count": {"y"}}, want: "count is invalid"},
		{name: "override wins over later fields", form: url.Values{"memberId": {"abc"}, "count": {"y"}}, want: "Invalid member ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(&mockResolver{})
			h := Validated(g, func(context.Context, removeInput, *Request) (Result, error) {
				t.Error("action called with undecodable input")
				return Result{}, nil
			})

			for i := 0; i < 5; i++ {
				res, err := h(context.Background(), &Request{Form: tt.form})
				if err != nil {
					t.Fatalf("handler error = %v", err)
				}
				if res.Kind != KindValidation || res.Error != tt.want {
					t.Fatalf("result = %+v, want %q", res, tt.want)
				}
			}
		})
	}
}

func TestValidatedWithUser_NotAuthenticated(t *testing.T) {
	g := NewGate(&mockResolver{})
	called := false
	h := ValidatedWithUser(g, func(context.Context, renameInput, *Request, *model.User) (Result, error) {
		called = true
		return Result{}, nil
	})

	for _, sess := range []SessionHandle{nil, &mockSession{}, &mockSession{token: "invalid"}} {
		res, err := h(context.Background(), &Request{Form: url.Values{"name": {"x"}}, Session: sess})
		if err != nil {
			t.Fatalf("handler error = %v", err)
		}
		if res.Error != NotAuthenticatedMessage || res.Kind != KindUnauthenticated {
			t.Errorf("result = %+v, want not authenticated", res)
		}
	}
	if called {
		t.Error("action called without principal")
	}
}

func TestValidatedWithUser_AuthBeforeValidation(t *testing.T) {
	g := NewGate(&mockResolver{})
	h := ValidatedWithUser(g, func(context.Context, renameInput, *Request, *model.User) (Result, error) {
		return Result{}, nil
	})

	res, _ := h(context.Background(), &Request{Form: url.Values{}, Session: &mockSession{}})
	if res.Error != NotAuthenticatedMessage {
		t.Errorf("Error = %q, want %q", res.Error, NotAuthenticatedMessage)
	}
}

func TestValidatedWithUser_PassesPrincipal(t *testing.T) {
	resolver := &mockResolver{currentPrincipalFn: func(_ context.Context, token string) (*model.User, error) {
		if token != "tok" {
			t.Errorf("token = %q, want tok", token)
		}
		return &model.User{ID: 9}, nil
	}}
	g := NewGate(resolver)
	var gotUser *model.User
	h := ValidatedWithUser(g, func(_ context.Context, in renameInput, _ *Request, user *model.User) (Result, error) {
		gotUser = user
		return Succeed("ok", map[string]string{"name": in.Name}), nil
	})

	res, err := h(context.Background(), &Request{Form: url.Values{"name": {"Fleet"}}, Session: &mockSession{token: "tok"}})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if gotUser == nil || gotUser.ID != 9 {
		t.Errorf("user = %+v, want 9", gotUser)
	}
	if res.Success != "ok" || res.Values["name"] != "Fleet" {
		t.Errorf("result = %+v", res)
	}
}

func TestValidatedWithUser_ResolverFailureIsFatal(t *testing.T) {
	g := NewGate(&mockResolver{currentPrincipalFn: func(context.Context, string) (*model.User, error) {
		return nil, errors.New("db down")
	}})
	h := ValidatedWithUser(g, func(context.Context, renameInput, *Request, *model.User) (Result, error) {
		return Result{}, nil
	})

	if _, err := h(context.Background(), &Request{Session: &mockSession{token: "tok"}}); err == nil {
		t.Error("handler error = nil, want resolver failure")
	}
}

func TestResult_MarshalJSON_Flattens(t *testing.T) {
	res := Fail(KindValidation, "Invalid email or password. Please try again.", map[string]string{
		"email":    "alice@example.com",
		"password": "pw",
		"error":    "shadowed",
	})

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["error"] != "Invalid email or password. Please try again." {
		t.Errorf("error = %q", got["error"])
	}
	if got["email"] != "alice@example.com" {
		t.Errorf("email = %q", got["email"])
	}
	if _, ok := got["Kind"]; ok {
		t.Error("Kind serialized")
	}
}
