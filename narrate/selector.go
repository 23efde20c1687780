package narrate

// Route identifies which synthesis path speaks a chunk.
type Route int

const (
	// RouteNone indicates no backend can speak.
	RouteNone Route = iota
	// RouteRemote plays synthesized audio through the audio device.
	RouteRemote
	// RouteLocal speaks through the platform speech service.
	RouteLocal
)

// String returns the string representation of the route.
func (r Route) String() string {
	switch r {
	case RouteRemote:
		return "remote"
	case RouteLocal:
		return "local"
	default:
		return "none"
	}
}

// Selector chooses the synthesis route for each chunk. The remote
// backend is preferred whenever it is configured and the host is
// online; the platform speaker covers everything else.
type Selector struct {
	remote Backend
	local  Speaker
	online func() bool
}

// NewSelector creates a selector over the available backends. online
// may be nil, in which case the host is assumed online.
func NewSelector(remote Backend, local Speaker, online func() bool) *Selector {
	if online == nil {
		online = func() bool { return true }
	}
	return &Selector{
		remote: remote,
		local:  local,
		online: online,
	}
}

// Primary returns the route to try first for a chunk.
func (s *Selector) Primary() Route {
	if s.remote != nil && s.remote.Available() && s.online() {
		return RouteRemote
	}
	if s.local != nil && s.local.Available() {
		return RouteLocal
	}
	return RouteNone
}

// Fallback returns the alternative route after a failed attempt on
// primary. The hop is one-directional: a failed remote chunk falls
// back to the local speaker, a failed local chunk fails the session.
func (s *Selector) Fallback(primary Route) (Route, bool) {
	if primary != RouteRemote {
		return RouteNone, false
	}
	if s.local != nil && s.local.Available() {
		return RouteLocal, true
	}
	return RouteNone, false
}
