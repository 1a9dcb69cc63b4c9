package handlers

import (
	"net/http"

	"github.com/vortexplay/arena-server/middleware"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/services"
)

type TournamentHandler struct {
	tournaments services.TournamentService
	brackets    services.BracketService
	progression services.ProgressionService
}

func NewTournamentHandler(
	tournaments services.TournamentService,
	brackets services.BracketService,
	progression services.ProgressionService,
) *TournamentHandler {
	return &TournamentHandler{tournaments: tournaments, brackets: brackets, progression: progression}
}

// Create godoc
// @Summary Create a tournament
// @Tags tournaments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.Tournament
// @Router /tournaments [post]
func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournaments.Create(r.Context(), input, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"tournament": t}, nil)
}

// Get godoc
// @Summary Get a tournament with participants and matches
// @Tags tournaments
// @Produce json
// @Param id path int true "Tournament ID"
// @Success 200 {object} models.Tournament
// @Router /tournaments/{id} [get]
func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournaments.GetFull(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil)
}

// List godoc
// @Summary List tournaments, optionally filtered by status
// @Tags tournaments
// @Produce json
// @Param status query string false "Tournament status"
// @Success 200 {array} models.Tournament
// @Router /tournaments [get]
func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *models.TournamentStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.TournamentStatus(s)
		status = &st
	}

	tournaments, err := h.tournaments.List(r.Context(), status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil)
}

// ChangeStatus godoc
// @Summary Move a tournament to another phase
// @Tags tournaments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tournament ID"
// @Router /tournaments/{id}/status [patch]
func (h *TournamentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Status models.TournamentStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournaments.ChangeStatus(r.Context(), id, userID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil)
}

// GenerateBracket godoc
// @Summary Generate the bracket for an active tournament
// @Tags tournaments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tournament ID"
// @Success 201 {array} models.Match
// @Router /tournaments/{id}/bracket [post]
func (h *TournamentHandler) GenerateBracket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.brackets.Generate(r.Context(), id, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"matches": matches}, nil)
}

// Progress godoc
// @Summary Advance the current round if it is finished
// @Tags tournaments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Tournament ID"
// @Router /tournaments/{id}/progress [post]
func (h *TournamentHandler) Progress(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournaments.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	advanced, err := h.progression.TryAdvance(r.Context(), id, t.CurrentRound)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"advanced": advanced}, nil)
}
