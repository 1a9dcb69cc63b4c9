package handlers

import (
	"net/http"

	"github.com/vortexplay/arena-server/services"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param input body object true "nickname, email, password"
// @Success 201 {object} models.User
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Nickname string `json:"nickname"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Nickname == "" || input.Email == "" || len(input.Password) < 8 {
		errorResponse(w, r, http.StatusUnprocessableEntity, "nickname, email and a password of at least 8 characters are required")
		return
	}

	user, err := h.auth.Register(r.Context(), input.Nickname, input.Email, input.Password)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, jsonResponse{"user": user}, nil)
}

// Login godoc
// @Summary Exchange credentials for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body object true "email, password"
// @Success 200 {object} map[string]interface{}
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, jsonResponse{"token": token, "user": user}, nil)
}
