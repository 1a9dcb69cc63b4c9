package handlers

import (
	"context"
	"net/http"

	"github.com/vortexplay/arena-server/middleware"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/services"
)

type ParticipantHandler struct {
	participants services.ParticipantService
}

func NewParticipantHandler(participants services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participants: participants}
}

// Register godoc
// @Summary Register the current user for a tournament
// @Tags participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tournament ID"
// @Success 201 {object} models.Participant
// @Router /tournaments/{id}/participants [post]
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Seed *int `json:"seed,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	p, err := h.participants.Register(r.Context(), tournamentID, userID, input.Seed)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"participant": p}, nil)
}

// List godoc
// @Summary List tournament participants
// @Tags participants
// @Produce json
// @Param id path int true "Tournament ID"
// @Param status query string false "Participant status"
// @Success 200 {array} models.Participant
// @Router /tournaments/{id}/participants [get]
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.ParticipantStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.ParticipantStatus(s)
		status = &st
	}

	participants, err := h.participants.List(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil)
}

// Confirm godoc
// @Summary Confirm a registration (organizer only)
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param participantID path int true "Participant ID"
// @Router /participants/{participantID}/confirm [post]
func (h *ParticipantHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.participants.Confirm)
}

// Withdraw godoc
// @Summary Withdraw a registration
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param participantID path int true "Participant ID"
// @Router /participants/{participantID}/withdraw [post]
func (h *ParticipantHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.participants.Withdraw)
}

// Disqualify godoc
// @Summary Disqualify a participant (organizer only)
// @Tags participants
// @Produce json
// @Security BearerAuth
// @Param participantID path int true "Participant ID"
// @Router /participants/{participantID}/disqualify [post]
func (h *ParticipantHandler) Disqualify(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.participants.Disqualify)
}

func (h *ParticipantHandler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, participantID, actorUserID int) (*models.Participant, error),
) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	participantID, err := idParam(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	p, err := fn(r.Context(), participantID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"participant": p}, nil)
}
