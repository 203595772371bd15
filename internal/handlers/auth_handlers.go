package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pixmart/pixmart/internal/middleware"
	"github.com/pixmart/pixmart/internal/otpauth"
	"github.com/pixmart/pixmart/internal/service"
	"github.com/pixmart/pixmart/internal/sms"
	"github.com/sirupsen/logrus"
)

// AuthHandlers drive the OTP authentication flow over REST. Each client
// conversation owns one flow instance addressed by flow_id; the flow is
// discarded on close and on terminal login.
type AuthHandlers struct {
	flows               *service.FlowManager[*otpauth.Flow]
	provider            sms.Provider
	jwtService          *service.JWTService
	refreshTokenService *service.RefreshTokenService
	logger              *logrus.Logger
}

func NewAuthHandlers(
	flows *service.FlowManager[*otpauth.Flow],
	provider sms.Provider,
	jwtService *service.JWTService,
	refreshTokenService *service.RefreshTokenService,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		flows:               flows,
		provider:            provider,
		jwtService:          jwtService,
		refreshTokenService: refreshTokenService,
		logger:              logger,
	}
}

type startOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type flowStateResponse struct {
	FlowID    string `json:"flow_id"`
	Step      string `json:"step"`
	ExpiresAt string `json:"expires_at,omitempty"`
	IsNewUser bool   `json:"is_new_user,omitempty"`
}

type verifyOTPRequest struct {
	FlowID string `json:"flow_id"`
	Code   string `json:"code"`
}

type registerRequest struct {
	FlowID   string `json:"flow_id"`
	Nickname string `json:"nickname"`
}

type cancelRequest struct {
	FlowID string `json:"flow_id"`
}

type authenticatedResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	Nickname    string `json:"nickname,omitempty"`
}

// StartOTP opens a fresh flow and dispatches the phone number. A new flow
// always means a new provider session; closed flows cannot be resumed.
func (h *AuthHandlers) StartOTP(w http.ResponseWriter, r *http.Request) {
	var req startOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	f := otpauth.NewFlow(h.provider, otpauth.Callbacks{}, h.logger)
	f.Dispatch(r.Context(), req.PhoneNumber)
	f.Wait()

	st := f.State()
	if st.LastErr != nil {
		f.Close()
		respondFlowError(w, st.LastErr)
		return
	}

	flowID := h.flows.Put(f)
	respondWithJSON(w, http.StatusOK, flowStateResponse{
		FlowID:    flowID,
		Step:      string(st.Step),
		ExpiresAt: st.Data.Session.ExpiresAt.Format(time.RFC3339),
	})
}

// VerifyOTP dispatches the sanitized verification code. An existing user is
// authenticated directly; a new one is asked to register a nickname.
func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	f, ok := h.flows.Get(req.FlowID)
	if !ok {
		respondWithError(w, http.StatusNotFound, "FLOW_NOT_FOUND", "Unknown or expired flow")
		return
	}

	f.Dispatch(r.Context(), otpauth.SanitizeCode(req.Code))
	f.Wait()

	st := f.State()
	if st.LastErr != nil {
		respondFlowError(w, st.LastErr)
		return
	}

	switch st.Step {
	case otpauth.StepAuthenticated:
		h.respondAuthenticated(w, r, req.FlowID, f)
	case otpauth.StepRegistration:
		respondWithJSON(w, http.StatusOK, flowStateResponse{
			FlowID:    req.FlowID,
			Step:      string(st.Step),
			IsNewUser: true,
		})
	default:
		respondWithJSON(w, http.StatusOK, flowStateResponse{FlowID: req.FlowID, Step: string(st.Step)})
	}
}

// Register dispatches the chosen nickname for a first-time user.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	f, ok := h.flows.Get(req.FlowID)
	if !ok {
		respondWithError(w, http.StatusNotFound, "FLOW_NOT_FOUND", "Unknown or expired flow")
		return
	}

	f.Dispatch(r.Context(), req.Nickname)
	f.Wait()

	st := f.State()
	if st.LastErr != nil {
		respondFlowError(w, st.LastErr)
		return
	}

	if st.Step != otpauth.StepAuthenticated {
		respondWithJSON(w, http.StatusOK, flowStateResponse{FlowID: req.FlowID, Step: string(st.Step)})
		return
	}

	h.respondAuthenticated(w, r, req.FlowID, f)
}

// CancelOTP abandons the flow's outstanding call, returning it to the prior
// input step.
func (h *AuthHandlers) CancelOTP(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	f, ok := h.flows.Get(req.FlowID)
	if !ok {
		respondWithError(w, http.StatusNotFound, "FLOW_NOT_FOUND", "Unknown or expired flow")
		return
	}

	st := f.Cancel()
	respondWithJSON(w, http.StatusOK, flowStateResponse{FlowID: req.FlowID, Step: string(st.Step)})
}

// CloseOTP discards the flow and its session entirely.
func (h *AuthHandlers) CloseOTP(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	h.flows.Remove(req.FlowID)
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Flow closed"})
}

func (h *AuthHandlers) respondAuthenticated(w http.ResponseWriter, r *http.Request, flowID string, f *otpauth.Flow) {
	session := f.State().Data.Session

	tokenPair, familyID, err := h.jwtService.GenerateTokenPair(session.UserID, session.PhoneNumber, "")
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate tokens")
		respondWithError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate tokens")
		return
	}

	claims, err := h.jwtService.VerifyToken(tokenPair.RefreshToken)
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify refresh token")
		respondWithError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate tokens")
		return
	}

	if err := h.refreshTokenService.Store(
		r.Context(),
		claims.JTI,
		session.UserID,
		session.PhoneNumber,
		familyID,
		claims.RegisteredClaims.ExpiresAt.Time,
	); err != nil {
		h.logger.WithError(err).Error("Failed to store refresh token")
		// Continue anyway, token is still valid
	}

	// Terminal login: the flow and its session are done.
	h.flows.Remove(flowID)

	respondWithJSON(w, http.StatusOK, authenticatedResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		User: UserResponse{
			UserID:      session.UserID,
			PhoneNumber: session.PhoneNumber,
			Nickname:    session.Nickname,
		},
	})
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (h *AuthHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "MISSING_TOKEN", "Refresh token is required")
		return
	}

	claims, err := h.jwtService.VerifyToken(req.RefreshToken)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token")
		return
	}

	if claims.Type != "refresh" {
		respondWithError(w, http.StatusUnauthorized, "INVALID_TOKEN_TYPE", "Token is not a refresh token")
		return
	}

	revoked, err := h.refreshTokenService.IsRevoked(r.Context(), claims.JTI)
	if err == nil && revoked {
		respondWithError(w, http.StatusUnauthorized, "TOKEN_REVOKED", "Refresh token has been revoked")
		return
	}

	tokenData, err := h.refreshTokenService.Get(r.Context(), claims.JTI)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to get refresh token data, will generate new family ID")
	}

	familyID := ""
	if tokenData != nil {
		familyID = tokenData.FamilyID
		h.refreshTokenService.Revoke(r.Context(), claims.JTI)
	}

	newTokenPair, newFamilyID, err := h.jwtService.RefreshTokens(req.RefreshToken, familyID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate new tokens")
		respondWithError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate tokens")
		return
	}

	newClaims, err := h.jwtService.VerifyToken(newTokenPair.RefreshToken)
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify new refresh token")
		respondWithError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate tokens")
		return
	}

	if err := h.refreshTokenService.Store(
		r.Context(),
		newClaims.JTI,
		claims.Subject,
		claims.Phone,
		newFamilyID,
		newClaims.RegisteredClaims.ExpiresAt.Time,
	); err != nil {
		h.logger.WithError(err).Error("Failed to store new refresh token")
		// Continue anyway
	}

	respondWithJSON(w, http.StatusOK, refreshTokenResponse{
		AccessToken:  newTokenPair.AccessToken,
		RefreshToken: newTokenPair.RefreshToken,
		TokenType:    newTokenPair.TokenType,
		ExpiresIn:    newTokenPair.ExpiresIn,
	})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.Context().Value(middleware.ContextKeyClaims).(*service.Claims); !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	var req refreshTokenRequest
	json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		refreshClaims, err := h.jwtService.VerifyToken(req.RefreshToken)
		if err == nil && refreshClaims.Type == "refresh" {
			h.refreshTokenService.Revoke(r.Context(), refreshClaims.JTI)
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}
