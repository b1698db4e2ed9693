package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/paygate/pkg/entitlement"
	"github.com/dmitrymomot/paygate/pkg/gate"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/response"
)

// Entitlements is the engine surface used by operators.
type Entitlements interface {
	Get(ctx context.Context, userID string) (*entitlement.Record, error)
	Ensure(ctx context.Context, userID string) (*entitlement.Record, error)
	Override(ctx context.Context, userID string, tier entitlement.Tier, actor string) (*entitlement.Record, error)
}

// QuotaResetter clears today's counter. *gate.Gate satisfies it.
type QuotaResetter interface {
	Reset(ctx context.Context, userID, feature string) error
}

// Service is the operator API. Every route requires "Authorization: Bearer <token>";
// with an empty token the API rejects all requests.
type Service struct {
	entitlements Entitlements
	quotas       QuotaResetter
	token        string
	log          *slog.Logger
}

func New(entitlements Entitlements, quotas QuotaResetter, token string, log *slog.Logger) *Service {
	if entitlements == nil || quotas == nil {
		panic("admin: entitlements and quota resetter are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{entitlements: entitlements, quotas: quotas, token: token, log: log}
}

// Routes mounts:
//
//	GET    /users/{userID}/entitlement
//	POST   /users/{userID}/entitlement        provision the default free record, idempotent
//	PUT    /users/{userID}/entitlement        {"tier":"premium|free","actor":"..."}
//	DELETE /users/{userID}/quota/{feature}
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Get("/users/{userID}/entitlement", s.getEntitlement)
	r.Post("/users/{userID}/entitlement", s.provisionEntitlement)
	r.Put("/users/{userID}/entitlement", s.putEntitlement)
	r.Delete("/users/{userID}/quota/{feature}", s.resetQuota)
	return r
}

func (s *Service) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			response.Error(w, response.ErrUnauthorized, "admin token required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EntitlementView is the JSON shape of an entitlement record.
type EntitlementView struct {
	UserID                 string     `json:"user_id"`
	Tier                   string     `json:"tier"`
	Entitled               bool       `json:"entitled"`
	ActiveProvider         string     `json:"active_provider"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	ExpiresAt              *time.Time `json:"expires_at,omitempty"`
	LastEventID            string     `json:"last_event_id,omitempty"`
	LastEventTimestamp     time.Time  `json:"last_event_timestamp,omitzero"`
	Version                int64      `json:"version"`
	UpdatedAt              time.Time  `json:"updated_at,omitzero"`
}

func newView(rec *entitlement.Record, now time.Time) EntitlementView {
	return EntitlementView{
		UserID:                 rec.UserID,
		Tier:                   string(rec.Tier()),
		Entitled:               rec.EntitledAt(now),
		ActiveProvider:         string(rec.ActiveProvider),
		ProviderSubscriptionID: rec.ProviderSubscriptionID,
		ExpiresAt:              rec.ExpiresAt,
		LastEventID:            rec.LastEventID,
		LastEventTimestamp:     rec.LastEventTimestamp,
		Version:                rec.Version,
		UpdatedAt:              rec.UpdatedAt,
	}
}

func (s *Service) getEntitlement(w http.ResponseWriter, r *http.Request) {
	rec, err := s.entitlements.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, "read entitlement", err)
		return
	}
	response.JSON(w, http.StatusOK, newView(rec, time.Now()), nil)
}

func (s *Service) provisionEntitlement(w http.ResponseWriter, r *http.Request) {
	rec, err := s.entitlements.Ensure(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, "provision entitlement", err)
		return
	}
	response.JSON(w, http.StatusOK, newView(rec, time.Now()), nil)
}

type overrideRequest struct {
	Tier  entitlement.Tier `json:"tier"`
	Actor string           `json:"actor"`
}

func (s *Service) putEntitlement(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, response.ErrBadRequest, "invalid JSON body", nil)
		return
	}
	if req.Actor == "" {
		req.Actor = "admin"
	}

	rec, err := s.entitlements.Override(r.Context(), chi.URLParam(r, "userID"), req.Tier, req.Actor)
	if err != nil {
		s.fail(w, r, "override entitlement", err)
		return
	}
	response.JSON(w, http.StatusOK, newView(rec, time.Now()), nil)
}

func (s *Service) resetQuota(w http.ResponseWriter, r *http.Request) {
	if err := s.quotas.Reset(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "feature")); err != nil {
		s.fail(w, r, "reset quota", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, entitlement.ErrInvalidTier):
		response.Error(w, response.ErrUnprocessableEntity, "tier must be free or premium", nil)
	case errors.Is(err, entitlement.ErrMissingUserID), errors.Is(err, gate.ErrMissingUserID):
		response.Error(w, response.ErrBadRequest, "user id is required", nil)
	case errors.Is(err, gate.ErrUnknownFeature):
		response.Error(w, response.ErrNotFound, "unknown feature", nil)
	default:
		s.log.ErrorContext(r.Context(), "admin operation failed",
			logger.Component("admin"),
			slog.String("op", op),
			logger.Error(err),
		)
		response.Error(w, response.ErrServiceUnavailable, "operation failed, retry later", nil)
	}
}
