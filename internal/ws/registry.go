package ws

import "chess_webapp/internal/domain"

// seat is one side of the board. identity survives disconnects; client is
// the live transport and is nil while the player is away.
type seat struct {
	identity int64
	client   *Client
}

// registry tracks who is attached to a session. It is owned by the
// session loop and therefore unlocked.
type registry struct {
	seats      map[domain.Color]*seat
	spectators map[int64]*Client
}

func newRegistry() *registry {
	return &registry{
		seats:      make(map[domain.Color]*seat, 2),
		spectators: make(map[int64]*Client),
	}
}

// reserve pins an identity to a color before any transport shows up.
func (r *registry) reserve(color domain.Color, identity int64) {
	r.seats[color] = &seat{identity: identity}
}

// seatFor returns the seat bound to identity, if any.
func (r *registry) seatFor(identity int64) (domain.Color, *seat, bool) {
	for color, s := range r.seats {
		if s.identity == identity {
			return color, s, true
		}
	}
	return "", nil, false
}

// colorOf maps a live transport back to its seat.
func (r *registry) colorOf(c *Client) (domain.Color, bool) {
	for color, s := range r.seats {
		if s.identity == c.UserID {
			return color, true
		}
	}
	return "", false
}

func (r *registry) seated() int {
	return len(r.seats)
}

// connectedPlayers counts seats with a live transport.
func (r *registry) connectedPlayers() int {
	n := 0
	for _, s := range r.seats {
		if s.client != nil {
			n++
		}
	}
	return n
}

func (r *registry) connected() int {
	return r.connectedPlayers() + len(r.spectators)
}

// addSpectator replaces any previous handle for the same identity and
// returns the displaced transport so the caller can shut it down.
func (r *registry) addSpectator(c *Client) *Client {
	old := r.spectators[c.UserID]
	r.spectators[c.UserID] = c
	if old == c {
		return nil
	}
	return old
}

func (r *registry) dropSpectator(c *Client) bool {
	if r.spectators[c.UserID] == c {
		delete(r.spectators, c.UserID)
		return true
	}
	return false
}

// each visits every live transport, players first.
func (r *registry) each(fn func(c *Client)) {
	for _, s := range r.seats {
		if s.client != nil {
			fn(s.client)
		}
	}
	for _, c := range r.spectators {
		fn(c)
	}
}
