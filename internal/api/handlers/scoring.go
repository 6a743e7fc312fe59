package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/scoring"
)

// ScoringHandler handles challenge, submission and hint endpoints
type ScoringHandler struct {
	service  *scoring.Service
	validate *requestValidator
}

// NewScoringHandler creates a new scoring handler
func NewScoringHandler(service *scoring.Service) *ScoringHandler {
	return &ScoringHandler{service: service, validate: newRequestValidator()}
}

// SubmitRequest is the request body for a flag submission
type SubmitRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	ChallengeID int64  `json:"challenge_id" validate:"gt=0"`
	Flag        string `json:"flag" validate:"required,max=256"`
}

// SubmitResponse is a submission result with a readable message
type SubmitResponse struct {
	*domain.SubmitResult
	Correct     bool   `json:"correct"`
	RankChanged bool   `json:"rank_changed"`
	Message     string `json:"message"`
}

// UnlockHintRequest is the request body for a hint unlock
type UnlockHintRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	ChallengeID int64  `json:"challenge_id" validate:"gt=0"`
}

// UnlockHintResponse is an unlock result with a readable message
type UnlockHintResponse struct {
	*domain.UnlockResult
	Message string `json:"message"`
}

// Challenges lists the catalog. With ?user_id= the list carries that
// user's progress and unlocked hints.
func (h *ScoringHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	userID := uuid.Nil
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			BadRequest(w, r, "invalid user_id")
			return
		}
		userID = id
	}

	challenges, err := h.service.Challenges(r.Context(), userID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"challenges": challenges,
		"total":      len(challenges),
	})
}

// Submit checks a flag. Every outcome, including a wrong flag, is a 200.
func (h *ScoringHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.validate.decode(w, r, &req) {
		return
	}

	result, err := h.service.Submit(r.Context(), uuid.MustParse(req.UserID), req.ChallengeID, req.Flag)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SubmitResponse{
		SubmitResult: result,
		Correct:      result.Correct(),
		RankChanged:  result.RankChanged(),
		Message:      result.Message(),
	})
}

// UnlockHint spends score on a challenge hint
func (h *ScoringHandler) UnlockHint(w http.ResponseWriter, r *http.Request) {
	var req UnlockHintRequest
	if !h.validate.decode(w, r, &req) {
		return
	}

	result, err := h.service.UnlockHint(r.Context(), uuid.MustParse(req.UserID), req.ChallengeID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, UnlockHintResponse{
		UnlockResult: result,
		Message:      result.Message(),
	})
}
