// Package mockapi is an in-memory marketplace speaking the GraphQL-over-HTTP
// dialect the client expects. It exists for development and tests.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/clients"
	"lendloop/internal/membership"
)

// Error codes reported in errors[].extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeBadInput        = "BAD_USER_INPUT"
	CodeUnknownOp       = "GRAPHQL_VALIDATION_FAILED"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

type contextKey string

const userCtxKey = contextKey("user")

type request struct {
	OperationName string                     `json:"operationName"`
	Query         string                     `json:"query"`
	Variables     map[string]json.RawMessage `json:"variables"`
}

type responseError struct {
	Message    string            `json:"message"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

type response struct {
	Data   map[string]any  `json:"data"`
	Errors []responseError `json:"errors,omitempty"`
}

type resolver func(ctx context.Context, vars map[string]json.RawMessage) (any, error)

// Server serves the marketplace operations on top of the domain services.
type Server struct {
	catalog     catalog.Service
	circulation circulation.Service
	membership  membership.Service
	faults      *Injector
	logger      *zap.Logger
	tracer      trace.Tracer
	resolvers   map[string]resolver
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithInjector shares an injector, so callers can add faults while the server runs.
func WithInjector(i *Injector) Option {
	return func(s *Server) { s.faults = i }
}

func NewServer(cat catalog.Service, circ circulation.Service, members membership.Service, opts ...Option) *Server {
	s := &Server{
		catalog:     cat,
		circulation: circ,
		membership:  members,
		faults:      NewInjector(),
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("lendloop/mockapi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolvers = s.routes()
	return s
}

// New builds a server over fresh in-memory services.
func New(opts ...Option) *Server {
	cat := catalog.NewService()
	return NewServer(cat, circulation.NewService(cat, nil), membership.NewService(), opts...)
}

// Faults returns the injector applied to every operation.
func (s *Server) Faults() *Injector { return s.faults }

// Handler returns the HTTP routes: POST /graphql and GET /healthz.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/graphql", s.handleGraphQL)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// authenticate resolves the raw Authorization header to a user. Unknown tokens
// leave the request anonymous; operations that need a user refuse it later.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := r.Header.Get("Authorization"); token != "" {
			if u, err := s.membership.ResolveToken(r.Context(), token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), userCtxKey, u))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(ctx context.Context) (*membership.User, error) {
	u, ok := ctx.Value(userCtxKey).(*membership.User)
	if !ok {
		return nil, membership.ErrUnauthorized
	}
	return u, nil
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "mockapi."+req.OperationName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("graphql.operation", req.OperationName)),
	)
	defer span.End()

	delay, failure := s.faults.Decide(req.OperationName)
	if delay > 0 || failure != nil {
		span.AddEvent("injecting_faults", trace.WithAttributes(attribute.String("latency", delay.String())))
	}

	var resp response
	switch resolve, ok := s.resolvers[req.OperationName]; {
	case failure != nil:
		resp = s.errorResponse(span, req.OperationName, failure)
	case !ok:
		resp = response{Errors: []responseError{{
			Message:    "Unknown operation " + req.OperationName,
			Extensions: map[string]string{"code": CodeUnknownOp},
		}}}
	default:
		if result, err := resolve(ctx, req.Variables); err != nil {
			resp = s.errorResponse(span, req.OperationName, err)
		} else {
			resp = response{Data: map[string]any{clients.ResultField[req.OperationName]: result}}
		}
	}

	if err := wait(ctx, delay); err != nil {
		// client went away while the response was held back
		return
	}
	if errors.Is(failure, errUnavailable) {
		http.Error(w, failure.Error(), http.StatusServiceUnavailable)
		return
	}
	s.write(w, resp)
}

func (s *Server) errorResponse(span trace.Span, op string, err error) response {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	code := codeOf(err)
	if code == CodeInternal {
		s.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
	}
	return response{Errors: []responseError{{
		Message:    err.Error(),
		Extensions: map[string]string{"code": code},
	}}}
}

func (s *Server) write(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func codeOf(err error) string {
	var fe *FailureError
	switch {
	case errors.Is(err, membership.ErrUnauthorized), errors.Is(err, membership.ErrInvalidCredentials):
		return CodeUnauthenticated
	case errors.Is(err, catalog.ErrNotOwner), errors.Is(err, circulation.ErrOwnListing):
		return CodeForbidden
	case errors.Is(err, catalog.ErrListingNotFound), errors.Is(err, membership.ErrUserNotFound):
		return CodeNotFound
	case errors.As(err, &fe):
		return CodeInternal
	}
	return CodeBadInput
}
