// internal/clients/graphql_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/membership"
)

// GraphQLClient talks to the marketplace over a single GraphQL endpoint.
type GraphQLClient struct {
	endpoint string
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
	logger   *zap.Logger
	tracer   trace.Tracer
}

type Option func(*GraphQLClient)

func WithHTTPClient(c *http.Client) Option {
	return func(g *GraphQLClient) { g.http = c }
}

// WithRateLimit caps outgoing requests per second. A non-positive rps disables the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *GraphQLClient) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *GraphQLClient) { g.logger = l }
}

func NewGraphQLClient(endpoint string, tokens TokenSource, opts ...Option) *GraphQLClient {
	g := &GraphQLClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		tokens:   tokens,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("lendloop/clients"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ API = (*GraphQLClient)(nil)

// do sends op and decodes its result field into out. Server errors become *RequestError
// carrying the first server message unchanged.
func (g *GraphQLClient) do(ctx context.Context, op string, vars map[string]any, out any) error {
	ctx, span := g.tracer.Start(ctx, "clients."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("graphql.operation", op))

	err := g.roundTrip(ctx, op, vars, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Debug("remote operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (g *GraphQLClient) roundTrip(ctx context.Context, op string, vars map[string]any, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return transportError(op, err)
	}

	body, err := json.Marshal(gqlRequest{OperationName: op, Query: documents[op], Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.tokens != nil {
		token, err := g.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to read auth token: %w", err)
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	var envelope gqlResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		code, _ := first.Extensions["code"].(string)
		return &RequestError{Op: op, Message: first.Message, Code: code, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return &RequestError{
			Op:         op,
			Message:    fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	if decodeErr != nil {
		return &RequestError{Op: op, Message: "malformed response from the marketplace", StatusCode: resp.StatusCode, Err: decodeErr}
	}
	if out == nil {
		return nil
	}

	raw, ok := envelope.Data[ResultField[op]]
	if !ok {
		return &RequestError{Op: op, Message: "the marketplace returned no data", StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{Op: op, Message: "malformed response from the marketplace", StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func (g *GraphQLClient) Login(ctx context.Context, creds membership.Credentials) (string, error) {
	var token string
	if err := g.do(ctx, OpLogin, map[string]any{"input": creds}, &token); err != nil {
		return "", err
	}
	if token == "" {
		return "", &RequestError{Op: OpLogin, Message: "the marketplace returned an empty token"}
	}
	return token, nil
}

func (g *GraphQLClient) Register(ctx context.Context, reg membership.Registration) (*membership.User, error) {
	var dto userDTO
	if err := g.do(ctx, OpRegister, map[string]any{"input": reg}, &dto); err != nil {
		return nil, err
	}
	return dto.user(), nil
}

func (g *GraphQLClient) CurrentUser(ctx context.Context) (*membership.User, error) {
	var dto *userDTO
	if err := g.do(ctx, OpCurrentUser, nil, &dto); err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, &RequestError{Op: OpCurrentUser, Message: "not signed in"}
	}
	return dto.user(), nil
}

func (g *GraphQLClient) AllListings(ctx context.Context) ([]catalog.ListingPatch, error) {
	return g.listings(ctx, OpAllListings)
}

func (g *GraphQLClient) MyListings(ctx context.Context) ([]catalog.ListingPatch, error) {
	return g.listings(ctx, OpMyListings)
}

func (g *GraphQLClient) listings(ctx context.Context, op string) ([]catalog.ListingPatch, error) {
	var dtos []listingDTO
	if err := g.do(ctx, op, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]catalog.ListingPatch, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.patch())
	}
	return out, nil
}

func (g *GraphQLClient) Listing(ctx context.Context, id string) (catalog.ListingPatch, error) {
	var dto *listingDTO
	if err := g.do(ctx, OpListing, map[string]any{"productId": id}, &dto); err != nil {
		return catalog.ListingPatch{}, err
	}
	if dto == nil {
		return catalog.ListingPatch{}, &RequestError{Op: OpListing, Message: "Product not found"}
	}
	return dto.patch(), nil
}

func (g *GraphQLClient) CreateListing(ctx context.Context, in catalog.ListingInput) (catalog.ListingPatch, error) {
	var dto listingDTO
	if err := g.do(ctx, OpCreateListing, map[string]any{"input": listingInput(in)}, &dto); err != nil {
		return catalog.ListingPatch{}, err
	}
	return dto.patch(), nil
}

func (g *GraphQLClient) UpdateListing(ctx context.Context, id string, in catalog.ListingInput) (catalog.ListingPatch, error) {
	var dto listingDTO
	vars := map[string]any{"productId": id, "input": listingInput(in)}
	if err := g.do(ctx, OpUpdateListing, vars, &dto); err != nil {
		return catalog.ListingPatch{}, err
	}
	if dto.ID == "" {
		dto.ID = id
	}
	return dto.patch(), nil
}

func (g *GraphQLClient) DeleteListing(ctx context.Context, id string) error {
	var deleted bool
	if err := g.do(ctx, OpDeleteListing, map[string]any{"productId": id}, &deleted); err != nil {
		return err
	}
	if !deleted {
		return &RequestError{Op: OpDeleteListing, Message: "the marketplace refused to delete the product"}
	}
	return nil
}

func (g *GraphQLClient) BuyListing(ctx context.Context, id string) (circulation.OrderPatch, error) {
	var dto orderDTO
	if err := g.do(ctx, OpBuyListing, map[string]any{"id": id}, &dto); err != nil {
		return circulation.OrderPatch{}, err
	}
	p, err := dto.patch(circulation.OrderBuy)
	if err != nil {
		return circulation.OrderPatch{}, err
	}
	if p.ListingID == nil {
		p.ListingID = &id
	}
	return p, nil
}

func (g *GraphQLClient) RentListing(ctx context.Context, id string, from, to time.Time) (circulation.OrderPatch, error) {
	var dto orderDTO
	vars := map[string]any{
		"id":   id,
		"from": from.UTC().Format(time.RFC3339),
		"to":   to.UTC().Format(time.RFC3339),
	}
	if err := g.do(ctx, OpRentListing, vars, &dto); err != nil {
		return circulation.OrderPatch{}, err
	}
	p, err := dto.patch(circulation.OrderRent)
	if err != nil {
		return circulation.OrderPatch{}, err
	}
	if p.ListingID == nil {
		p.ListingID = &id
	}
	return p, nil
}

func (g *GraphQLClient) BoughtOrders(ctx context.Context) ([]circulation.OrderPatch, error) {
	return g.orders(ctx, OpBoughtOrders, circulation.OrderBuy)
}

func (g *GraphQLClient) SoldOrders(ctx context.Context) ([]circulation.OrderPatch, error) {
	return g.orders(ctx, OpSoldOrders, circulation.OrderBuy)
}

func (g *GraphQLClient) BorrowedOrders(ctx context.Context) ([]circulation.OrderPatch, error) {
	return g.orders(ctx, OpBorrowedOrders, circulation.OrderRent)
}

func (g *GraphQLClient) LentOrders(ctx context.Context) ([]circulation.OrderPatch, error) {
	return g.orders(ctx, OpLentOrders, circulation.OrderRent)
}

func (g *GraphQLClient) orders(ctx context.Context, op string, fallback circulation.OrderType) ([]circulation.OrderPatch, error) {
	var dtos []orderDTO
	if err := g.do(ctx, op, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]circulation.OrderPatch, 0, len(dtos))
	for _, d := range dtos {
		p, err := d.patch(fallback)
		if err != nil {
			return nil, &RequestError{Op: op, Message: "malformed response from the marketplace", Err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

// IsRequestError reports whether err carries a server or transport failure.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
