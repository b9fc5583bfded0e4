package httpserver

import (
	"net/http"

	"github.com/moti-app/moti-proxy/internal/httpserver/protocol"
	"github.com/moti-app/moti-proxy/internal/ratelimit"
)

type chatEndpoint struct {
	server *Server
}

func newChatEndpoint(server *Server) protocol.Endpoint {
	return &chatEndpoint{server: server}
}

func (e *chatEndpoint) Name() string { return "chat" }

func (e *chatEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodPost, Path: "/chat", Handler: e.server.throttle(http.HandlerFunc(e.server.HandleChat))},
	}
}

type planEndpoint struct {
	server *Server
}

func newPlanEndpoint(server *Server) protocol.Endpoint {
	return &planEndpoint{server: server}
}

func (e *planEndpoint) Name() string { return "plan" }

func (e *planEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodPost, Path: "/plan", Handler: http.HandlerFunc(e.server.HandlePlan)},
	}
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return ratelimit.Middleware(s.limiter, func(w http.ResponseWriter, r *http.Request) {
		s.logger.Infow("rate limited", "client", ratelimit.ClientKey(r), "path", r.URL.Path)
		s.respondError(w, r, http.StatusTooManyRequests, "rate_limited", "")
	})(next)
}
