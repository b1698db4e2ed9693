package usage

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/paygate/pkg/gate"
	"github.com/dmitrymomot/paygate/pkg/response"
)

// Service exposes the feature gate to callers that cannot embed gate.Middleware,
// e.g. other services asking before running an expensive job.
type Service struct {
	gate       *gate.Gate
	userID     gate.UserIDFunc
	upgradeURL string
}

// Option configures a Service.
type Option func(*Service)

// WithUserIDFunc overrides how the caller id is read. Defaults to gate.HeaderUserID.
func WithUserIDFunc(fn gate.UserIDFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.userID = fn
		}
	}
}

// WithUpgradeURL sets the link returned with 402 responses.
func WithUpgradeURL(url string) Option {
	return func(s *Service) {
		s.upgradeURL = url
	}
}

func New(g *gate.Gate, opts ...Option) *Service {
	if g == nil {
		panic("usage: gate is required")
	}
	s := &Service{gate: g, userID: gate.HeaderUserID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes mounts:
//
//	POST /features/{feature}/consume  consume one use, 402 when over the limit
//	GET  /features/{feature}          current decision without consuming
//	GET  /usage                       decisions for every configured feature
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/features/{feature}/consume", s.consume)
	r.Get("/features/{feature}", s.peek)
	r.Get("/usage", s.usage)
	return r
}

func (s *Service) consume(w http.ResponseWriter, r *http.Request) {
	d, err := s.gate.CheckAndConsume(r.Context(), s.userID(r), chi.URLParam(r, "feature"))
	if err != nil {
		gate.WriteFailure(w, err)
		return
	}
	gate.SetHeaders(w, d)
	if !d.Allowed {
		gate.WriteDenied(w, d, s.upgradeURL)
		return
	}
	response.JSON(w, http.StatusOK, d, nil)
}

func (s *Service) peek(w http.ResponseWriter, r *http.Request) {
	d, err := s.gate.Peek(r.Context(), s.userID(r), chi.URLParam(r, "feature"))
	if err != nil {
		gate.WriteFailure(w, err)
		return
	}
	gate.SetHeaders(w, d)
	var meta map[string]any
	if !d.Allowed && s.upgradeURL != "" {
		meta = map[string]any{"upgrade_url": s.upgradeURL}
	}
	response.JSON(w, http.StatusOK, d, meta)
}

func (s *Service) usage(w http.ResponseWriter, r *http.Request) {
	ds, err := s.gate.Usage(r.Context(), s.userID(r))
	if err != nil {
		gate.WriteFailure(w, err)
		return
	}
	response.JSON(w, http.StatusOK, ds, nil)
}
