package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/internal/members"
	"github.com/Grara/deepblue-backend/middleware"
)

// Engine is the subset of *deepblue.Engine the handlers call.
type Engine interface {
	middleware.Authenticator
	Login(ctx context.Context, identifier, secret string) (deepblue.TokenPair, error)
	Renew(ctx context.Context, refreshToken string) deepblue.RenewalResult
	Logout(ctx context.Context, refreshToken string) error
}

// Directory is the subset of *members.Repository the handlers call.
type Directory interface {
	Create(ctx context.Context, c members.Credentials) (*members.Member, error)
	Exists(ctx context.Context, username string) (bool, error)
}

// Options configures NewHandler. Metrics may be nil.
type Options struct {
	Engine  Engine
	Members Directory
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewHandler returns the API mux wrapped in the authentication filter.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", loginHandler(opts.Engine, logger))
	mux.HandleFunc("POST /token/refresh", refreshHandler(opts.Engine, logger))
	mux.HandleFunc("POST /logout", logoutHandler(opts.Engine, logger))
	mux.HandleFunc("POST /members", signUpHandler(opts.Members, logger))
	mux.HandleFunc("POST /members/duplicate-check", duplicateCheckHandler(opts.Members, logger))
	mux.HandleFunc("GET /members/me", meHandler)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return middleware.Authenticate(opts.Engine)(mux)
}

func loginHandler(engine Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if err := body.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		pair, err := engine.Login(r.Context(), body.ID, body.Password)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, "login succeeded", pair)
		case errors.Is(err, deepblue.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, deepblue.ErrInvalidCredentials.Error(), nil)
		default:
			logger.Error("httpapi: login failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, "login unavailable", nil)
		}
	}
}

func refreshHandler(engine Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshRequest
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if err := body.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		res := engine.Renew(r.Context(), body.RefreshToken)
		switch res.Reason {
		case deepblue.ReasonNone:
			writeJSON(w, http.StatusOK, "token reissued", res.Pair)
		case deepblue.ReasonStoreUnavailable, deepblue.ReasonIssueFailed:
			logger.Error("httpapi: refresh failed", "reason", res.Reason.String(), "error", res.Err)
			writeJSON(w, http.StatusServiceUnavailable, res.Reason.Err().Error(), nil)
		default:
			writeJSON(w, http.StatusUnauthorized, res.Reason.Err().Error(), nil)
		}
	}
}

func logoutHandler(engine Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshRequest
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if err := body.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		if err := engine.Logout(r.Context(), body.RefreshToken); err != nil {
			logger.Error("httpapi: logout failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, "logout failed", nil)
			return
		}
		writeJSON(w, http.StatusOK, "logged out", nil)
	}
}

func signUpHandler(dir Directory, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body signUpRequest
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), false)
			return
		}

		creds := members.Credentials{Username: body.Username, Password: body.Password}
		if err := creds.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), false)
			return
		}

		_, err := dir.Create(r.Context(), creds)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, "sign-up succeeded", true)
		case errors.Is(err, members.ErrDuplicateUsername):
			writeJSON(w, http.StatusBadRequest, "sign-up failed: username already exists", false)
		default:
			logger.Error("httpapi: sign-up failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, "sign-up unavailable", false)
		}
	}
}

func duplicateCheckHandler(dir Directory, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body duplicateCheckRequest
		if err := decodeBody(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), false)
			return
		}
		if err := body.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, err.Error(), false)
			return
		}

		taken, err := dir.Exists(r.Context(), body.Username)
		if err != nil {
			logger.Error("httpapi: duplicate check failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, "duplicate check unavailable", false)
			return
		}
		if taken {
			writeJSON(w, http.StatusBadRequest, "username already exists", false)
			return
		}
		writeJSON(w, http.StatusOK, "username is available", true)
	}
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := deepblue.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, "anonymous", nil)
		return
	}
	writeJSON(w, http.StatusOK, "authenticated", p)
}
