package service

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/docprovider/pkg/auth"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/metrics"
	"github.com/theapemachine/docprovider/pkg/notify"
	"github.com/theapemachine/docprovider/pkg/service/sse"
)

/*
Server exposes a documents.Provider over HTTP: JSON-RPC on /rpc, a small REST
surface under /documents and /roots, change events on /events, and optionally
MCP on /mcp. It is safe for concurrent use because the provider, the RPC
server and the broker are.
*/
type Server struct {
	app      *fiber.App
	provider *documents.Provider
	hub      *notify.Hub
	broker   *sse.Broker
	rpc      *RPCServer
	auth     *auth.Service
	metrics  *metrics.Operations
	mcp      http.Handler
}

type Option func(*Server)

// WithAuth requires bearer tokens issued by svc and serves /auth/refresh and /auth/revoke.
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

func WithMetrics(ops *metrics.Operations) Option {
	return func(s *Server) { s.metrics = ops }
}

// WithMCP mounts an MCP streamable HTTP handler on /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) { s.broker = sse.NewBroker(s.hub, d) }
}

/*
NewServer wires every route. The hub must be the notifier the provider
publishes to.
*/
func NewServer(provider *documents.Provider, hub *notify.Hub, opts ...Option) *Server {
	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "docprovider",
			ServerHeader: "docprovider",
			BodyLimit:    64 * 1024 * 1024,
		}),
		provider: provider,
		hub:      hub,
		broker:   sse.NewBroker(hub, 0),
		rpc:      NewRPCServer(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRPCHandlers()
	srv.routes()

	return srv
}

func (srv *Server) routes() {
	srv.app.Use(logger.New(logger.Config{
		// Skip logging for the /events endpoint to reduce noise
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/events"
		},
	}))

	srv.app.Get("/livez", healthcheck.New())
	srv.app.Get("/readyz", healthcheck.New())
	srv.app.Get("/", srv.handleRoot)

	if srv.auth != nil {
		srv.app.Post("/auth/refresh", srv.handleRefresh)
		srv.app.Post("/auth/revoke", srv.handleRevoke)
	}

	srv.app.Use(srv.authenticate)

	srv.app.Get("/.well-known/roots.json", srv.handleRoots)
	srv.app.Post("/rpc", srv.handleRPC)
	srv.app.Get("/events", srv.handleEvents)
	srv.app.Get("/metrics", srv.handleMetrics)

	srv.app.Get("/roots/:root", srv.handleRootInfo)
	srv.app.Get("/roots/:root/search", srv.handleSearch)
	srv.app.Get("/roots/:root/recent", srv.handleRecent)

	srv.app.Get("/documents/:id", srv.handleDocument)
	srv.app.Delete("/documents/:id", srv.handleDelete)
	srv.app.Get("/documents/:id/children", srv.handleChildren)
	srv.app.Post("/documents/:id/children", srv.handleCreate)
	srv.app.Get("/documents/:id/content", srv.handleRead)
	srv.app.Put("/documents/:id/content", srv.handleWrite)

	if srv.mcp != nil {
		srv.app.All("/mcp", fiberadaptor.HTTPHandler(srv.mcp))
	}
}

// App exposes the fiber app, mostly for tests.
func (srv *Server) App() *fiber.App {
	return srv.app
}

func (srv *Server) RPC() *RPCServer {
	return srv.rpc
}

func (srv *Server) Start(addr string) error {
	log.Info("serving documents", "addr", addr)
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

/*
Shutdown closes open event streams and stops the listener.
*/
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.broker.Close()
	return srv.app.ShutdownWithContext(ctx)
}

/*
authenticate stores the caller's principal in the request locals, where
fiber.Ctx as a context.Context exposes it to auth.PrincipalFrom. Without an
auth service every caller is trusted. A missing token leaves the caller
anonymous, so the provider shows no roots; a bad token is rejected.
*/
func (srv *Server) authenticate(ctx fiber.Ctx) error {
	if srv.auth == nil {
		ctx.Locals(auth.PrincipalKey{}, auth.Principal{Subject: "local"})
		return ctx.Next()
	}

	header := ctx.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ctx.Next()
	}

	principal, err := srv.auth.Authenticate(header)
	if err != nil {
		log.Warn("rejected request", "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Locals(auth.PrincipalKey{}, principal)
	return ctx.Next()
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

/*
handleRefresh trades a refresh token for a new token pair. The token it
replaces stops working.
*/
func (srv *Server) handleRefresh(ctx fiber.Ctx) error {
	var req refreshRequest
	if err := ctx.Bind().Body(&req); err != nil || req.RefreshToken == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "refreshToken is required"})
	}

	tok, err := srv.auth.RefreshToken(req.RefreshToken)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(tok)
}

// handleRevoke revokes the bearer token the request carries.
func (srv *Server) handleRevoke(ctx fiber.Ctx) error {
	header := ctx.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
	}

	if err := srv.auth.RevokeToken(header); err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (srv *Server) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (srv *Server) handleRPC(ctx fiber.Ctx) error {
	out, ok := srv.rpc.Handle(ctx, ctx.Body())
	if !ok {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(out)
}

/*
handleEvents streams changes under ?parent= (or everything) until the client
goes away. Only changes in roots the caller can see are sent, so an
anonymous caller gets nothing but heartbeats.
*/
func (srv *Server) handleEvents(ctx fiber.Ctx) error {
	parent := ctx.Query("parent")

	if parent != "" {
		if _, err := srv.provider.Document(ctx, parent); err != nil {
			return srv.fail(ctx, err)
		}
	}

	// Locals are gone once the handler returns, so the stream keeps its own copy.
	principal, known := auth.PrincipalFrom(ctx)
	visible := func(rootID string) bool {
		return known && principal.CanSee(rootID)
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")

	ctx.RequestCtx().SetBodyStreamWriter(srv.broker.Stream(parent, visible))
	return nil
}

func (srv *Server) handleMetrics(ctx fiber.Ctx) error {
	out := fiber.Map{
		"subscribers": srv.hub.Len(),
		"index":       srv.provider.Index().Len(),
	}

	if srv.metrics != nil {
		out["operations"] = srv.metrics.GetMetrics()
	}

	return ctx.JSON(out)
}
