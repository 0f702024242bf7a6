package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/maksimzayats/fastdjango/internal/auth"
	"github.com/maksimzayats/fastdjango/internal/middleware"
	"github.com/maksimzayats/fastdjango/internal/model"
	"github.com/maksimzayats/fastdjango/internal/repo"
	"github.com/maksimzayats/fastdjango/internal/request"

	"github.com/go-chi/chi/v5"
)

// UserHandler handles user and token endpoints
type UserHandler struct {
	userService    *auth.UserService
	sessionService *auth.RefreshSessionService
	jwtService     *auth.JWTService
	requestInfo    *request.Info
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	userService *auth.UserService,
	sessionService *auth.RefreshSessionService,
	jwtService *auth.JWTService,
	requestInfo *request.Info,
) *UserHandler {
	return &UserHandler{
		userService:    userService,
		sessionService: sessionService,
		jwtService:     jwtService,
		requestInfo:    requestInfo,
	}
}

// createUserRequest is the request body for POST /v1/users/
type createUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// userResponse is the user object in API responses
type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsStaff   bool   `json:"is_staff"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsStaff:   u.IsStaff,
	}
}

// issueTokenRequest is the request body for POST /v1/users/me/token
type issueTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshTokenRequest is the request body for refresh and revoke endpoints
type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse is the JSON response carrying a token pair
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// HandleCreateUser handles POST /v1/users/
func (h *UserHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.userService.RegisterUser(r.Context(), auth.RegisterParams{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Password:  req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			respondWithError(w, http.StatusBadRequest, "password does not meet the strength requirements")
		case errors.Is(err, auth.ErrUserExists):
			respondWithError(w, http.StatusConflict, "a user with the given username or email already exists")
		default:
			log.Printf("failed to register user: %v", err)
			respondWithError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleIssueToken handles POST /v1/users/me/token
func (h *UserHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, ok, err := h.userService.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Printf("failed to authenticate user: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	h.respondWithTokenPair(w, r, user)
}

// HandleRefreshToken handles POST /v1/users/me/token/refresh
func (h *UserHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	rotated, err := h.sessionService.RotateRefreshToken(
		r.Context(),
		req.RefreshToken,
		h.requestInfo.UserAgent(r),
		h.requestInfo.ClientIP(r),
	)
	if err != nil {
		h.respondWithRefreshError(w, err)
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), rotated.Session.UserID)
	if err != nil {
		log.Printf("failed to load user for rotated session: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	accessToken, err := h.jwtService.IssueAccessToken(user.ID, user.IsStaff)
	if err != nil {
		log.Printf("failed to issue access token: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	respondWithJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: rotated.RefreshToken,
		TokenType:    "bearer",
	})
}

// HandleRevokeToken handles POST /v1/users/me/token/revoke (protected)
func (h *UserHandler) HandleRevokeToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req refreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.sessionService.RevokeRefreshToken(r.Context(), req.RefreshToken, userID); err != nil {
		h.respondWithRefreshError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HandleMe handles GET /v1/users/me (protected). Returns the authenticated user.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondWithJSON(w, http.StatusOK, toUserResponse(*user))
}

// HandleGetUser handles GET /v1/users/{id} (staff only).
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "user not found")
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("failed to load user %s: %v", id, err)
		respondWithError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	respondWithJSON(w, http.StatusOK, toUserResponse(user))
}

// respondWithTokenPair issues a fresh access token and a new refresh session
// for the user and writes the pair.
func (h *UserHandler) respondWithTokenPair(w http.ResponseWriter, r *http.Request, user model.User) {
	accessToken, err := h.jwtService.IssueAccessToken(user.ID, user.IsStaff)
	if err != nil {
		log.Printf("failed to issue access token: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	issued, err := h.sessionService.CreateRefreshSession(
		r.Context(),
		user.ID,
		h.requestInfo.UserAgent(r),
		h.requestInfo.ClientIP(r),
	)
	if err != nil {
		log.Printf("failed to create refresh session: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: issued.RefreshToken,
		TokenType:    "bearer",
	})
}

// respondWithRefreshError maps the refresh-token error taxonomy to 401
// responses. Messages stay at the category level so the endpoint leaks
// nothing useful to credential stuffing.
func (h *UserHandler) respondWithRefreshError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		respondWithError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, auth.ErrExpiredRefreshToken):
		respondWithError(w, http.StatusUnauthorized, "refresh token expired or revoked")
	case errors.Is(err, auth.ErrRefreshToken):
		respondWithError(w, http.StatusUnauthorized, "refresh token error")
	default:
		log.Printf("refresh token operation failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// respondWithJSON writes a JSON response with the given status code
func respondWithJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
