package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/billing"
	"github.com/hitoshi/mjeti360/internal/middleware"
	"github.com/hitoshi/mjeti360/internal/model"
)

// billingSecretHeader はサブスクリプション更新の共有シークレットを運ぶヘッダー。
const billingSecretHeader = "X-Billing-Secret"

// BillingServiceInterface は課金ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	Checkout(ctx context.Context, in billing.CheckoutInput, req *action.Request, principal *model.User) (action.Result, error)
	ApplySubscriptionSnapshot(ctx context.Context, snapshot model.SubscriptionSnapshot) error
}

var _ BillingServiceInterface = (*billing.Service)(nil) // compile-time interface check

// BillingHandler はチェックアウト開始とサブスクリプション状態の受信を扱う。
type BillingHandler struct {
	service       BillingServiceInterface
	webhookSecret string

	checkout http.HandlerFunc
}

// NewBillingHandler はBillingHandlerを生成する。
// webhookSecretが空の場合、サブスクリプション更新は常に拒否される。
func NewBillingHandler(service BillingServiceInterface, webhookSecret string, runner *ActionRunner) *BillingHandler {
	return &BillingHandler{
		service:       service,
		webhookSecret: webhookSecret,
		checkout:      runner.Serve("checkout", action.ValidatedWithUser(runner.gate, service.Checkout)),
	}
}

// Checkout はチームのチェックアウトを開始し、プロバイダーのURLへリダイレクトする。
// POST /dashboard/api/billing/checkout
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) { h.checkout(w, r) }

// subscriptionSnapshotRequest はサブスクリプション更新リクエストのボディ。
type subscriptionSnapshotRequest struct {
	CustomerID     string  `json:"customerId"`
	SubscriptionID *string `json:"subscriptionId"`
	ProductID      *string `json:"productId"`
	PlanName       *string `json:"planName"`
	Status         string  `json:"status"`
}

// UpdateSubscription は課金プロバイダー側から送られたサブスクリプション状態をチームへ反映する。
// POST /api/billing/subscription
func (h *BillingHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	// 1. 共有シークレットの検証
	if h.webhookSecret == "" {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewBillingDisabledError())
		return
	}
	given := r.Header.Get(billingSecretHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.webhookSecret)) != 1 {
		slog.Warn("billing subscription update rejected",
			slog.String("ip_address", middleware.ClientIP(r)),
		)
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	// 2. ボディの解析
	var req subscriptionSnapshotRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.CustomerID == "" || req.Status == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	// 3. 反映
	err := h.service.ApplySubscriptionSnapshot(r.Context(), model.SubscriptionSnapshot{
		CustomerID:     req.CustomerID,
		SubscriptionID: req.SubscriptionID,
		ProductID:      req.ProductID,
		PlanName:       req.PlanName,
		Status:         req.Status,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
