package inbound

import (
	"github.com/shandysiswandi/phoneauth/internal/pkg/router"
	"github.com/shandysiswandi/phoneauth/internal/verification/usecase"
)

type HTTPEndpoint struct {
	uc uc
}

// ListProviders returns the delivery provider catalog.
// @Summary List delivery providers
// @Description Returns every delivery provider with its code length, channels and cost tier, and marks the active one.
// @Tags Verification
// @Produce json
// @Success 200 {object} router.successResponse{data=ProvidersResponse} "Provider catalog"
// @Router /api/v1/verification/providers [get]
func (h *HTTPEndpoint) ListProviders(r *router.Request) (any, error) {
	items, active := h.uc.ListProviders(r.Context())

	return toProvidersResponse(items, active), nil
}

// StartSession opens a verification session.
// @Summary Start verification session
// @Description Opens a session bound to the configured delivery provider.
// @Tags Verification
// @Produce json
// @Success 201 {object} router.successResponse{data=SessionResponse} "Session"
// @Failure 503 {object} router.errorResponse "Provider not configured"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/verification/sessions [post]
func (h *HTTPEndpoint) StartSession(r *router.Request) (any, error) {
	snap, err := h.uc.StartSession(r.Context())
	if err != nil {
		return nil, err
	}

	resp := toSessionResponse(snap)
	resp.created = true
	resp.message = "Verification session started"

	return resp, nil
}

// GetSession returns the current state of a session.
// @Summary Get verification session
// @Tags Verification
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Session"
// @Failure 404 {object} router.errorResponse "Session not found"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/verification/sessions/{id} [get]
func (h *HTTPEndpoint) GetSession(r *router.Request) (any, error) {
	snap, err := h.uc.GetSession(r.Context(), usecase.SessionInput{SessionID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toSessionResponse(snap), nil
}

// SubmitSubject sends a one-time code to a phone number.
// @Summary Submit phone number
// @Description Normalizes the phone number and asks the provider to deliver a code over the chosen channel.
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SubmitSubjectRequest true "Phone number and channel"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Code sent"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 409 {object} router.errorResponse "Busy or wrong step"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 502 {object} router.errorResponse "Delivery failed"
// @Failure 503 {object} router.errorResponse "Provider not configured"
// @Router /api/v1/verification/sessions/{id}/subject [post]
func (h *HTTPEndpoint) SubmitSubject(r *router.Request) (any, error) {
	var req SubmitSubjectRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	snap, err := h.uc.SubmitSubject(r.Context(), usecase.SubmitSubjectInput{
		SessionID:   r.GetParam("id"),
		PhoneNumber: req.PhoneNumber,
		Channel:     req.Channel,
	})
	if err != nil {
		return nil, err
	}

	resp := toSessionResponse(snap)
	resp.message = "Verification code sent"

	return resp, nil
}

// SubmitCode checks a complete code.
// @Summary Submit code
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SubmitCodeRequest true "Code"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Verified"
// @Failure 401 {object} router.errorResponse "Code does not match"
// @Failure 404 {object} router.errorResponse "No pending code"
// @Failure 409 {object} router.errorResponse "Busy or wrong step"
// @Failure 410 {object} router.errorResponse "Code expired"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/verification/sessions/{id}/code [post]
func (h *HTTPEndpoint) SubmitCode(r *router.Request) (any, error) {
	var req SubmitCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	snap, err := h.uc.SubmitCode(r.Context(), usecase.SubmitCodeInput{
		SessionID: r.GetParam("id"),
		Code:      req.Code,
	})
	if err != nil {
		return nil, err
	}

	resp := toSessionResponse(snap)
	resp.message = "Phone number verified"

	return resp, nil
}

// EnterCode types or pastes digits into the code slots; a complete code is submitted.
// @Summary Enter code digits
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body EnterCodeRequest true "Slot input"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Session"
// @Router /api/v1/verification/sessions/{id}/code/entry [post]
func (h *HTTPEndpoint) EnterCode(r *router.Request) (any, error) {
	var req EnterCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	snap, err := h.uc.EnterCode(r.Context(), usecase.EnterCodeInput{
		SessionID: r.GetParam("id"),
		Slot:      req.Slot,
		Value:     req.Value,
		Paste:     req.Paste,
	})
	if err != nil {
		return nil, err
	}

	return toSessionResponse(snap), nil
}

// Backspace clears a code slot.
// @Summary Clear code slot
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body BackspaceRequest true "Slot"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Session"
// @Router /api/v1/verification/sessions/{id}/code/backspace [post]
func (h *HTTPEndpoint) Backspace(r *router.Request) (any, error) {
	var req BackspaceRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	snap, err := h.uc.Backspace(r.Context(), usecase.BackspaceInput{
		SessionID: r.GetParam("id"),
		Slot:      req.Slot,
	})
	if err != nil {
		return nil, err
	}

	return toSessionResponse(snap), nil
}

// Resend replaces the pending code once the cooldown has elapsed.
// @Summary Resend code
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body ResendRequest false "Optional channel switch"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Code resent"
// @Failure 429 {object} router.errorResponse "Cooldown still running"
// @Router /api/v1/verification/sessions/{id}/resend [post]
func (h *HTTPEndpoint) Resend(r *router.Request) (any, error) {
	var req ResendRequest
	if err := r.DecodeOptionalBody(&req); err != nil {
		return nil, err
	}

	snap, err := h.uc.Resend(r.Context(), usecase.ResendInput{
		SessionID: r.GetParam("id"),
		Channel:   req.Channel,
	})
	if err != nil {
		return nil, err
	}

	resp := toSessionResponse(snap)
	resp.message = "Verification code resent"

	return resp, nil
}

// Back abandons the pending code and returns to phone entry.
// @Summary Back to phone entry
// @Tags Verification
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Session"
// @Failure 409 {object} router.errorResponse "Already verified"
// @Router /api/v1/verification/sessions/{id}/back [post]
func (h *HTTPEndpoint) Back(r *router.Request) (any, error) {
	snap, err := h.uc.Back(r.Context(), usecase.SessionInput{SessionID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toSessionResponse(snap), nil
}

// Reset clears the session so a new attempt can start.
// @Summary Reset session
// @Tags Verification
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} router.successResponse{data=SessionResponse} "Session"
// @Router /api/v1/verification/sessions/{id}/reset [post]
func (h *HTTPEndpoint) Reset(r *router.Request) (any, error) {
	snap, err := h.uc.Reset(r.Context(), usecase.SessionInput{SessionID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toSessionResponse(snap), nil
}

// Identity returns the verified identity carried by the bearer token.
// @Summary Verified identity
// @Tags Verification
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=IdentityResponse} "Identity"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Router /api/v1/verification/identity [get]
func (h *HTTPEndpoint) Identity(r *router.Request) (any, error) {
	out, err := h.uc.Identity(r.Context())
	if err != nil {
		return nil, err
	}

	return IdentityResponse{
		IdentityID:  out.IdentityID,
		PhoneNumber: out.PhoneNumber,
		Issuer:      out.Issuer,
		ExpiresAt:   out.ExpiresAt,
	}, nil
}
