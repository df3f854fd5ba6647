package billing

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
)

// --- モック ---

type mockTeamStore struct {
	findByStripeCustomerIDFn func(ctx context.Context, customerID string) (*model.Team, error)
	updateSubscriptionFn     func(ctx context.Context, teamID int64, snapshot model.SubscriptionSnapshot) error
}

func (m *mockTeamStore) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Team, error) {
	return m.findByStripeCustomerIDFn(ctx, customerID)
}

func (m *mockTeamStore) UpdateSubscription(ctx context.Context, teamID int64, snapshot model.SubscriptionSnapshot) error {
	return m.updateSubscriptionFn(ctx, teamID, snapshot)
}

type mockMembershipFinder struct {
	findFn func(ctx context.Context, userID int64) (*model.Membership, error)
}

func (m *mockMembershipFinder) FindMembershipByUserID(ctx context.Context, userID int64) (*model.Membership, error) {
	return m.findFn(ctx, userID)
}

type mockCheckout struct {
	createFn func(ctx context.Context, req CheckoutRequest) (string, error)
}

func (m *mockCheckout) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	return m.createFn(ctx, req)
}

func membershipOf(teamID int64) *mockMembershipFinder {
	return &mockMembershipFinder{
		findFn: func(ctx context.Context, userID int64) (*model.Membership, error) {
			return &model.Membership{Team: model.Team{ID: teamID, Name: "Acme"}, Role: model.TeamRoleOwner}, nil
		},
	}
}

// --- ApplySubscriptionSnapshot ---

func TestApplySubscriptionSnapshot_UpdatesTeam(t *testing.T) {
	var gotTeamID int64
	var gotSnapshot model.SubscriptionSnapshot
	teams := &mockTeamStore{
		findByStripeCustomerIDFn: func(ctx context.Context, customerID string) (*model.Team, error) {
			if customerID != "cus_1" {
				t.Errorf("customerID = %q, want cus_1", customerID)
			}
			return &model.Team{ID: 9}, nil
		},
		updateSubscriptionFn: func(ctx context.Context, teamID int64, snapshot model.SubscriptionSnapshot) error {
			gotTeamID = teamID
			gotSnapshot = snapshot
			return nil
		},
	}
	svc := NewService(DisabledCheckout{}, teams, nil)

	snapshot := model.SubscriptionSnapshot{
		CustomerID:     "cus_1",
		SubscriptionID: strPtr("sub_1"),
		ProductID:      strPtr("prod_1"),
		PlanName:       strPtr("Base"),
		Status:         "active",
	}
	if err := svc.ApplySubscriptionSnapshot(context.Background(), snapshot); err != nil {
		t.Fatalf("ApplySubscriptionSnapshot() error = %v", err)
	}
	if gotTeamID != 9 {
		t.Errorf("teamID = %d, want 9", gotTeamID)
	}
	if gotSnapshot.Status != "active" || *gotSnapshot.PlanName != "Base" {
		t.Errorf("snapshot = %+v", gotSnapshot)
	}
}

func TestApplySubscriptionSnapshot_UnknownCustomerIsNoop(t *testing.T) {
	teams := &mockTeamStore{
		findByStripeCustomerIDFn: func(ctx context.Context, customerID string) (*model.Team, error) {
			return nil, nil
		},
		updateSubscriptionFn: func(ctx context.Context, teamID int64, snapshot model.SubscriptionSnapshot) error {
			t.Fatal("UpdateSubscription should not be called")
			return nil
		},
	}
	svc := NewService(DisabledCheckout{}, teams, nil)

	if err := svc.ApplySubscriptionSnapshot(context.Background(), model.SubscriptionSnapshot{CustomerID: "cus_x", Status: "canceled"}); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
}

func TestApplySubscriptionSnapshot_RequiresCustomerID(t *testing.T) {
	svc := NewService(DisabledCheckout{}, &mockTeamStore{}, nil)
	if err := svc.ApplySubscriptionSnapshot(context.Background(), model.SubscriptionSnapshot{Status: "active"}); err == nil {
		t.Error("expected error")
	}
}

func TestApplySubscriptionSnapshot_DatastoreError(t *testing.T) {
	teams := &mockTeamStore{
		findByStripeCustomerIDFn: func(ctx context.Context, customerID string) (*model.Team, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(DisabledCheckout{}, teams, nil)
	if err := svc.ApplySubscriptionSnapshot(context.Background(), model.SubscriptionSnapshot{CustomerID: "cus_1"}); err == nil {
		t.Error("expected error")
	}
}

// --- Checkout ---

func TestCheckout_RedirectsToProvider(t *testing.T) {
	checkout := &mockCheckout{
		createFn: func(ctx context.Context, req CheckoutRequest) (string, error) {
			if req.Team.ID != 5 || req.UserID != 11 || req.PriceID != "price_plus" {
				t.Errorf("req = %+v", req)
			}
			return "https://checkout.example/cs", nil
		},
	}
	svc := NewService(checkout, nil, membershipOf(5))

	res, err := svc.Checkout(context.Background(), CheckoutInput{PriceID: "price_plus"}, &action.Request{}, &model.User{ID: 11})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if res.RedirectTo != "https://checkout.example/cs" {
		t.Errorf("RedirectTo = %q", res.RedirectTo)
	}
}

func TestCheckout_NoTeam(t *testing.T) {
	members := &mockMembershipFinder{
		findFn: func(ctx context.Context, userID int64) (*model.Membership, error) { return nil, nil },
	}
	svc := NewService(DisabledCheckout{}, nil, members)

	res, err := svc.Checkout(context.Background(), CheckoutInput{PriceID: "p"}, &action.Request{}, &model.User{ID: 1})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if res.Kind != action.KindForbidden || res.Error != "User is not part of a team" {
		t.Errorf("result = %+v", res)
	}
}

func TestCheckout_Disabled(t *testing.T) {
	svc := NewService(DisabledCheckout{}, nil, membershipOf(1))

	res, err := svc.Checkout(context.Background(), CheckoutInput{PriceID: "p"}, &action.Request{}, &model.User{ID: 1})
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if res.Kind != action.KindConflict || res.Error != "Billing is not configured." {
		t.Errorf("result = %+v", res)
	}
}

// --- CheckoutRedirect ---

func TestCheckoutRedirect(t *testing.T) {
	okCheckout := &mockCheckout{
		createFn: func(ctx context.Context, req CheckoutRequest) (string, error) {
			return "https://checkout.example/cs", nil
		},
	}
	failingCheckout := &mockCheckout{
		createFn: func(ctx context.Context, req CheckoutRequest) (string, error) {
			return "", errors.New("stripe down")
		},
	}
	team := &model.Team{ID: 1}

	tests := []struct {
		name     string
		checkout CheckoutCreator
		form     url.Values
		team     *model.Team
		want     string
	}{
		{"指定なしはダッシュボード", okCheckout, url.Values{}, team, "/dashboard"},
		{"priceIdなしはダッシュボード", okCheckout, url.Values{"redirect": {"checkout"}}, team, "/dashboard"},
		{"チェックアウトURLへ", okCheckout, url.Values{"redirect": {"checkout"}, "priceId": {"p"}}, team, "https://checkout.example/cs"},
		{"チームなしはダッシュボード", okCheckout, url.Values{"redirect": {"checkout"}, "priceId": {"p"}}, nil, "/dashboard"},
		{"発行失敗は料金ページ", failingCheckout, url.Values{"redirect": {"checkout"}, "priceId": {"p"}}, team, "/pricing"},
		{"無効化時は料金ページ", DisabledCheckout{}, url.Values{"redirect": {"checkout"}, "priceId": {"p"}}, team, "/pricing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.checkout, nil, nil)
			if got := svc.CheckoutRedirect(context.Background(), tt.form, tt.team, 1); got != tt.want {
				t.Errorf("CheckoutRedirect() = %q, want %q", got, tt.want)
			}
		})
	}
}
