package calendar

import (
	"math/rand/v2"
	"sync"
)

// Identity is the client identity presented for one page request.
type Identity struct {
	UserAgent string
	TimeZone  int
}

// IdentityProvider hands out the identity for the next page request.
type IdentityProvider interface {
	Next() Identity
}

// RandomIdentity picks a user agent and a time zone uniformly per call.
type RandomIdentity struct {
	mu     sync.Mutex
	rng    *rand.Rand
	agents []string
	zones  []int
}

// NewRandomIdentity returns a provider drawing from agents and zones.
// A zero seed seeds from the runtime's random source.
func NewRandomIdentity(agents []string, zones []int, seed uint64) *RandomIdentity {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomIdentity{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		agents: agents,
		zones:  zones,
	}
}

// Next implements IdentityProvider.
func (r *RandomIdentity) Next() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id Identity
	if len(r.agents) > 0 {
		id.UserAgent = r.agents[r.rng.IntN(len(r.agents))]
	}
	if len(r.zones) > 0 {
		id.TimeZone = r.zones[r.rng.IntN(len(r.zones))]
	}
	return id
}

// StaticIdentity always returns itself. Use it to disable rotation.
type StaticIdentity Identity

// Next implements IdentityProvider.
func (s StaticIdentity) Next() Identity { return Identity(s) }
