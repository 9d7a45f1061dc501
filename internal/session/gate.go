// Package session decides where an operator belongs before anything else runs.
package session

import (
	"context"

	"github.com/membit-bot/botctl/internal/client"
	"github.com/membit-bot/botctl/internal/observability"
)

// Route is one of the three places an operator can be sent.
type Route int

// Routes, ordered from most to least restrictive.
const (
	RouteSetup Route = iota
	RouteLogin
	RouteDashboard
)

func (r Route) String() string {
	switch r {
	case RouteSetup:
		return "setup"
	case RouteLogin:
		return "login"
	case RouteDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// StatusSource is the single call the gate needs.
type StatusSource interface {
	AuthStatus(ctx context.Context) (*client.Session, error)
}

// Decision is the outcome of resolving the gate.
type Decision struct {
	Route   Route
	Session client.Session

	// Err is the failure that forced RouteLogin, if any. It is informational;
	// the route is already decided.
	Err error
}

// Gate resolves routing from the backend's auth status.
type Gate struct {
	src StatusSource
}

// NewGate returns a gate backed by src.
func NewGate(src StatusSource) *Gate {
	return &Gate{src: src}
}

// Resolve issues exactly one status request. Any failure resolves to
// RouteLogin; it never retries.
func (g *Gate) Resolve(ctx context.Context) Decision {
	ctx, span := observability.StartSpan(ctx, "session.resolve")

	s, err := g.src.AuthStatus(ctx)
	if err != nil || s == nil {
		span.SetAttributes(observability.AttrSessionRoute.String(RouteLogin.String()))
		observability.EndSpan(span, err)

		return Decision{Route: RouteLogin, Err: err}
	}

	norm := s.Normalize()
	route := RouteFor(norm)

	span.SetAttributes(observability.AttrSessionRoute.String(route.String()))
	observability.EndSpan(span, nil)

	return Decision{Route: route, Session: norm}
}

// RouteFor maps a session onto a route.
func RouteFor(s client.Session) Route {
	switch {
	case !s.SetupCompleted && !s.LoggedIn:
		return RouteSetup
	case !s.LoggedIn:
		return RouteLogin
	default:
		return RouteDashboard
	}
}
