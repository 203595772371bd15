package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pixmart/pixmart/internal/catalog"
	"github.com/pixmart/pixmart/internal/middleware"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/pixmart/pixmart/internal/payment"
	"github.com/pixmart/pixmart/internal/repository"
	"github.com/pixmart/pixmart/internal/service"
	"github.com/sirupsen/logrus"
)

// PaymentHandlers drive the credit-purchase flow over REST. Flows are
// per-user and per-conversation; a flow id from another user's purchase is
// rejected.
type PaymentHandlers struct {
	flows        *service.FlowManager[*payment.Flow]
	orchestrator *payment.Orchestrator
	catalog      *catalog.Catalog
	credits      *repository.CreditRepository
	logger       *logrus.Logger
}

func NewPaymentHandlers(
	flows *service.FlowManager[*payment.Flow],
	orchestrator *payment.Orchestrator,
	cat *catalog.Catalog,
	credits *repository.CreditRepository,
	logger *logrus.Logger,
) *PaymentHandlers {
	return &PaymentHandlers{
		flows:        flows,
		orchestrator: orchestrator,
		catalog:      cat,
		credits:      credits,
		logger:       logger,
	}
}

type plansResponse struct {
	Plans []models.Plan `json:"plans"`
}

// ListPlans serves the active catalog, falling back to the built-in plans
// when the catalog is unavailable.
func (h *PaymentHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, plansResponse{
		Plans: h.catalog.ActivePlans(r.Context()),
	})
}

type startPurchaseResponse struct {
	FlowID string `json:"flow_id"`
	Step   string `json:"step"`
}

// StartPurchase opens a purchase flow for the authenticated user.
func (h *PaymentHandlers) StartPurchase(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}

	f := h.orchestrator.NewPurchase(r.Context(), userID, payment.Callbacks{})
	flowID := h.flows.Put(f)

	respondWithJSON(w, http.StatusOK, startPurchaseResponse{
		FlowID: flowID,
		Step:   string(f.State().Step),
	})
}

type selectPlanRequest struct {
	FlowID string `json:"flow_id"`
	PlanID int    `json:"plan_id"`
}

type selectPlanResponse struct {
	FlowID       string `json:"flow_id"`
	Step         string `json:"step"`
	ClientSecret string `json:"client_secret"`
	ChargeAmount int64  `json:"charge_amount"`
	CreditAmount int64  `json:"credit_amount"`
}

// SelectPlan creates the provider intent for the chosen plan and hands the
// client secret back for card collection.
func (h *PaymentHandlers) SelectPlan(w http.ResponseWriter, r *http.Request) {
	var req selectPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	f, ok := h.ownedFlow(w, r, req.FlowID)
	if !ok {
		return
	}

	f.SelectPlan(r.Context(), req.PlanID)
	f.Wait()

	st := f.State()
	if st.LastErr != nil {
		respondFlowError(w, st.LastErr)
		return
	}

	respondWithJSON(w, http.StatusOK, selectPlanResponse{
		FlowID:       req.FlowID,
		Step:         string(st.Step),
		ClientSecret: st.Data.Intent.ClientSecret,
		ChargeAmount: st.Data.Intent.ChargeAmountMinor,
		CreditAmount: st.Data.Intent.CreditAmount,
	})
}

type authorizeRequest struct {
	FlowID string             `json:"flow_id"`
	Card   models.CardDetails `json:"card"`
}

type authorizeResponse struct {
	FlowID        string `json:"flow_id"`
	Step          string `json:"step"`
	CreditBalance int64  `json:"credit_balance"`
	Degraded      bool   `json:"degraded"`
}

// Authorize runs the card authorization and the two-phase commit. A
// degraded response means the charge succeeded but the balance is a
// placeholder; the client should re-read /credits/balance.
func (h *PaymentHandlers) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	f, ok := h.ownedFlow(w, r, req.FlowID)
	if !ok {
		return
	}

	f.Authorize(r.Context(), req.Card)
	f.Wait()

	st := f.State()
	if st.LastErr != nil {
		respondFlowError(w, st.LastErr)
		return
	}

	if st.Step == payment.StepCredited {
		// Terminal: the purchase is done, the flow is discarded.
		h.flows.Remove(req.FlowID)
	}

	respondWithJSON(w, http.StatusOK, authorizeResponse{
		FlowID:        req.FlowID,
		Step:          string(st.Step),
		CreditBalance: st.Data.NewBalance,
		Degraded:      st.Data.Degraded,
	})
}

// CancelPurchase abandons the outstanding call; a late gateway result is
// discarded at the engine boundary.
func (h *PaymentHandlers) CancelPurchase(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	f, ok := h.ownedFlow(w, r, req.FlowID)
	if !ok {
		return
	}

	st := f.Cancel()
	respondWithJSON(w, http.StatusOK, startPurchaseResponse{FlowID: req.FlowID, Step: string(st.Step)})
}

// ClosePurchase discards the flow; any created intent is abandoned.
func (h *PaymentHandlers) ClosePurchase(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if _, ok := h.ownedFlow(w, r, req.FlowID); !ok {
		return
	}

	h.flows.Remove(req.FlowID)
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Flow closed"})
}

type balanceResponse struct {
	CreditBalance int64 `json:"credit_balance"`
}

// Balance serves the authoritative credit balance; this is the
// reconciliation read after a degraded purchase.
func (h *PaymentHandlers) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}

	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read credit balance")
		respondWithError(w, http.StatusInternalServerError, "BALANCE_READ_FAILED", "Failed to read balance")
		return
	}

	respondWithJSON(w, http.StatusOK, balanceResponse{CreditBalance: balance})
}

func (h *PaymentHandlers) ownedFlow(w http.ResponseWriter, r *http.Request, flowID string) (*payment.Flow, bool) {
	f, ok := h.flows.Get(flowID)
	if !ok {
		respondWithError(w, http.StatusNotFound, "FLOW_NOT_FOUND", "Unknown or expired flow")
		return nil, false
	}

	if f.UserID() != middleware.UserID(r.Context()) {
		respondWithError(w, http.StatusForbidden, "FORBIDDEN", "Flow belongs to another user")
		return nil, false
	}

	return f, true
}
