package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	goSecure "github.com/MrEthical07/goSecure"
	"github.com/MrEthical07/goSecure/middleware"
	"github.com/gorilla/mux"
)

// Service is the engine surface the handlers call. *goSecure.Engine
// satisfies it.
type Service interface {
	middleware.Authenticator

	Login(ctx context.Context, accountID, password string) (*goSecure.LoginResult, error)

	TwoFactorStatus(ctx context.Context, accountID string) (*goSecure.TwoFactorStatus, error)
	SetupTwoFactor(ctx context.Context, accountID string) (*goSecure.TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, accountID, code string) (time.Time, error)
	DisableTwoFactor(ctx context.Context, accountID, password, code string) error
	VerifyTwoFactor(ctx context.Context, accountID, code string, useBackupCode bool) (bool, error)
	RegenerateBackupCodes(ctx context.Context, accountID, password string) ([]string, error)

	ListSessions(ctx context.Context, accountID, callerToken string) ([]goSecure.SessionSummary, error)
	RevokeSession(ctx context.Context, accountID, sessionID string) error
	RevokeAllOtherSessions(ctx context.Context, accountID, currentToken string) (int, error)
	TouchSession(ctx context.Context, accountID, token string) (time.Time, error)

	ChangePassword(ctx context.Context, req goSecure.ChangePasswordRequest) (*goSecure.ChangePasswordResult, error)
	PasswordInfo(ctx context.Context, accountID string) (*goSecure.PasswordInfo, error)
}

// Config controls the Server.
type Config struct {
	Client middleware.ClientContextConfig
	// MaxBodyBytes caps request bodies; 0 means 64 KiB.
	MaxBodyBytes int64
}

// Server holds the handlers.
type Server struct {
	svc     Service
	logger  *slog.Logger
	maxBody int64
	client  middleware.ClientContextConfig
}

// New returns a Server. A nil logger discards output.
func New(svc Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	return &Server{svc: svc, logger: logger, maxBody: cfg.MaxBodyBytes, client: cfg.Client}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, middleware.ClientContext(s.client))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/auth/login", s.login).Methods(http.MethodPost)

	sec := r.PathPrefix("/v1/security").Subrouter()
	sec.Use(middleware.Guard(s.svc))

	sec.HandleFunc("/2fa", s.twoFactorStatus).Methods(http.MethodGet)
	sec.HandleFunc("/2fa/setup", s.setupTwoFactor).Methods(http.MethodPost)
	sec.HandleFunc("/2fa/enable", s.enableTwoFactor).Methods(http.MethodPost)
	sec.HandleFunc("/2fa/disable", s.disableTwoFactor).Methods(http.MethodPost)
	sec.HandleFunc("/2fa/verify", s.verifyTwoFactor).Methods(http.MethodPost)
	sec.HandleFunc("/2fa/backup-codes", s.regenerateBackupCodes).Methods(http.MethodPost)

	sec.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet)
	sec.HandleFunc("/sessions/revoke-others", s.revokeOtherSessions).Methods(http.MethodPost)
	sec.HandleFunc("/sessions/touch", s.touchSession).Methods(http.MethodPost)
	sec.HandleFunc("/sessions/{id}", s.revokeSession).Methods(http.MethodDelete)

	sec.HandleFunc("/password", s.passwordInfo).Methods(http.MethodGet)
	sec.HandleFunc("/password", s.changePassword).Methods(http.MethodPost)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
