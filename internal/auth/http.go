// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package auth also contains the HTTP delivery layer for its use cases.
//
// # Architecture
//
// Handlers act as the "gatekeepers" to the system. They are responsible for:
//   - JSON Request parsing and strict input validation.
//   - Mapping HTTP contexts to service layer method calls.
//   - Standardizing JSON response formats via the [respond] package.
//
// They contain NO business logic or database queries.
package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/torii/internal/platform/middleware"
	"github.com/taibuivan/torii/internal/platform/respond"
	"github.com/taibuivan/torii/internal/platform/sec"
	"github.com/taibuivan/torii/internal/platform/validate"
)

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages the account lifecycle entry points (registration,
// login, token refresh) plus grant administration.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register : Creates a new account.
//   - POST /login    : Authenticates and returns a JWT.
//   - POST /refresh  : Rotates a refresh token into a new token pair.
//   - POST /logout   : Revokes the presented refresh token.
//   - PUT  /grants/{userID} : Replaces an account's granted-action set (admin).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	router.Group(func(admin chi.Router) {
		// RequireRole implies RequireAuth.
		admin.Use(middleware.RequireRole(sec.RoleAdmin))
		admin.Put("/grants/{userID}", handler.grant)
	})

	return router
}

// registerRequest represents the JSON payload expected for account creation.
type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// register handles POST /api/v1/auth/register requests.
//
// # Parameters
//   - writer: The HTTP response constructor.
//   - request: The incoming HTTP request payload.
//
// # Returns
//   - Writes HTTP 201 Created on success with the account profile.
//   - Writes HTTP 400 Bad Request if validation rules fail.
//   - Writes HTTP 409 Conflict if email/username is taken.
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input registerRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation (Explicit & Mandatory) ────────────────────

	// Prevent malformed data from reaching the service layer.
	// We use the validate helper to ensure consistent ErrorEnvelope shapes.
	if input.Username == "" || len(input.Username) < 3 {
		respond.Error(writer, request, validate.RequiredError("username", "must be at least 3 characters"))
		return
	}
	if input.Email == "" {
		respond.Error(writer, request, validate.RequiredError("email", "is required"))
		return
	}
	if input.Password == "" || len(input.Password) < 8 {
		respond.Error(writer, request, validate.RequiredError("password", "must be at least 8 characters"))
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Username:    input.Username,
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})

	// Service handles uniqueness checks and bcrypt hashing. Domain errors
	// are mapped to HTTP statuses by the respond helper.
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Presentation Output ────────────────────────────────────────────

	respond.Created(writer, user)
}

// loginRequest represents the JSON payload expected for authentication.
type loginRequest struct {
	Login    string `json:"login"` // Can be Username or Email
	Password string `json:"password"`
}

// login handles POST /api/v1/auth/login requests.
//
// # Parameters
//   - writer: The HTTP response constructor.
//   - request: The incoming HTTP request payload.
//
// # Returns
//   - Writes HTTP 200 OK on success with the token pair and account profile.
//   - Writes HTTP 401 Unauthorized for bad credentials.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input loginRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	if input.Login == "" || input.Password == "" {
		respond.Error(writer, request, validate.RequiredError("login/password", "are required"))
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Login:     input.Login,
		Password:  input.Password,
		UserAgent: request.UserAgent(),
		IPAddress: request.RemoteAddr,
	})

	if err != nil {
		// Returns HTTP 401 Unauthorized without leaking which part failed.
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Presentation Output ────────────────────────────────────────────

	respond.OK(writer, map[string]any{
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"expires_at":    session.RefreshTokenExpiresAt,
		"user":          session.User,
	})
}

// refreshRequest carries the opaque refresh token being rotated or revoked.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refresh handles POST /api/v1/auth/refresh requests.
//
// Rotates the presented refresh token: the old session is revoked and a new
// token pair is issued carrying the account's current granted-action set.
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError("refresh_token", "is required"))
		return
	}

	session, err := handler.authService.RefreshSession(
		request.Context(), input.RefreshToken, request.UserAgent(), request.RemoteAddr)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"expires_at":    session.RefreshTokenExpiresAt,
		"user":          session.User,
	})
}

// logout handles POST /api/v1/auth/logout requests.
//
// Revoking an unknown token still responds 200; logout is idempotent.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.authService.Logout(request.Context(), input.RefreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"status": "logged_out"})
}

// grantRequest carries the replacement granted-action set.
type grantRequest struct {
	Actions []string `json:"actions"`
}

// grant handles PUT /api/v1/auth/grants/{userID} requests (admin only).
//
// Replaces the target account's granted-action set and revokes its
// sessions; the new set takes effect on the account's next token.
func (handler *Handler) grant(writer http.ResponseWriter, request *http.Request) {
	userID := chi.URLParam(request, "userID")
	if userID == "" {
		respond.Error(writer, request, validate.RequiredError("userID", "is required"))
		return
	}

	var input grantRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Actions == nil {
		respond.Error(writer, request, validate.RequiredError("actions", "is required"))
		return
	}

	user, err := handler.authService.Grant(request.Context(), userID, input.Actions)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}
