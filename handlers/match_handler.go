package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/vortexplay/arena-server/middleware"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/services"
)

const maxEvidenceSize = 10 << 20 // 10MB

type MatchHandler struct {
	matches  services.MatchService
	evidence services.EvidenceService
}

func NewMatchHandler(matches services.MatchService, evidence services.EvidenceService) *MatchHandler {
	return &MatchHandler{matches: matches, evidence: evidence}
}

// Get godoc
// @Summary Get a match with participants, chat and disputes
// @Tags matches
// @Produce json
// @Param id path int true "Match ID"
// @Success 200 {object} models.Match
// @Router /matches/{id} [get]
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matches.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil)
}

// ListByTournament godoc
// @Summary List the matches of a tournament
// @Tags matches
// @Produce json
// @Param id path int true "Tournament ID"
// @Param round query int false "Round filter"
// @Success 200 {array} models.Match
// @Router /tournaments/{id}/matches [get]
func (h *MatchHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var round *int
	if s := r.URL.Query().Get("round"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badRequestResponse(w, r, errors.New("invalid round parameter"))
			return
		}
		round = &n
	}

	matches, err := h.matches.ListByTournament(r.Context(), tournamentID, round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil)
}

// Join godoc
// @Summary Join a scheduled match
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Router /matches/{id}/join [post]
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.matches.Join)
}

// SetReady godoc
// @Summary Flag the caller ready or not ready
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Router /matches/{id}/ready [post]
func (h *MatchHandler) SetReady(w http.ResponseWriter, r *http.Request) {
	userID, matchID, ok := h.authAndID(w, r)
	if !ok {
		return
	}

	var input struct {
		Ready bool `json:"ready"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matches.SetReady(r.Context(), matchID, userID, input.Ready)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil)
}

// Start godoc
// @Summary Start a ready match
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Router /matches/{id}/start [post]
func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.matches.Start)
}

// End godoc
// @Summary End an ongoing match with a result
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Router /matches/{id}/end [post]
func (h *MatchHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, matchID, ok := h.authAndID(w, r)
	if !ok {
		return
	}

	var input services.EndMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	m, err := h.matches.End(r.Context(), matchID, userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil)
}

// ReportDispute godoc
// @Summary Report a dispute on a match
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Success 201 {object} models.Dispute
// @Router /matches/{id}/disputes [post]
func (h *MatchHandler) ReportDispute(w http.ResponseWriter, r *http.Request) {
	userID, matchID, ok := h.authAndID(w, r)
	if !ok {
		return
	}

	var input services.DisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Category == "" || input.Description == "" {
		errorResponse(w, r, http.StatusUnprocessableEntity, "category and description are required")
		return
	}

	dispute, err := h.matches.ReportDispute(r.Context(), matchID, userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"dispute": dispute}, nil)
}

// SendMessage godoc
// @Summary Post a chat message to a match
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Success 201 {object} models.MatchMessage
// @Router /matches/{id}/messages [post]
func (h *MatchHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, matchID, ok := h.authAndID(w, r)
	if !ok {
		return
	}

	var input struct {
		Text string `json:"text"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Text == "" {
		errorResponse(w, r, http.StatusUnprocessableEntity, "text is required")
		return
	}

	msg, err := h.matches.SendMessage(r.Context(), matchID, userID, input.Text)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"message": msg}, nil)
}

// UploadEvidence godoc
// @Summary Attach an evidence file to a dispute
// @Tags matches
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param disputeID path int true "Dispute ID"
// @Router /disputes/{disputeID}/evidence [post]
func (h *MatchHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	disputeID, err := idParam(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxEvidenceSize); err != nil {
		badRequestResponse(w, r, errors.New("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errors.New("file field is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.evidence.Upload(r.Context(), disputeID, userID, header.Filename, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{
		"key": key,
		"url": h.evidence.PublicURL(key),
	}, nil)
}

func (h *MatchHandler) act(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, matchID, userID int) (*models.Match, error),
) {
	userID, matchID, ok := h.authAndID(w, r)
	if !ok {
		return
	}

	m, err := fn(r.Context(), matchID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil)
}

func (h *MatchHandler) authAndID(w http.ResponseWriter, r *http.Request) (userID, matchID int, ok bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return 0, 0, false
	}
	matchID, err = idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	return userID, matchID, true
}
