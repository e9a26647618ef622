// Package pool tracks provisioned external execution environments
// (Instances), keyed by profile, as they move between available and
// allocated. It is not safe for concurrent use: per spec, callers
// serialise access (the run controller owns the pool for its single
// scheduling goroutine, exactly as the teacher's suiteState is mutated
// only from the scheduling loop).
package pool

import (
	"errors"
	"fmt"
)

// Sentinel errors for pool contract violations. These are programmer
// errors per spec §7 and are fatal to the caller.
var (
	ErrEmpty        = errors.New("pool: no available instance for profile")
	ErrNotAllocated = errors.New("pool: instance is not allocated")
	ErrBadArgument  = errors.New("pool: instance has an empty field")
)

// Instance is a provisioned environment token, opaque to the core beyond
// its profile and id. Two instances are equal iff both fields match.
type Instance struct {
	Profile string
	ID      string
}

// NewInstance validates and constructs an Instance. An empty Profile or ID
// is the practical Go analogue of "non-text field" from the spec's
// duck-typed source vocabulary.
func NewInstance(profile, id string) (Instance, error) {
	if profile == "" || id == "" {
		return Instance{}, fmt.Errorf("%w: profile=%q id=%q", ErrBadArgument, profile, id)
	}
	return Instance{Profile: profile, ID: id}, nil
}

type profileSet map[Instance]struct{}

// Pool tracks available and allocated instances per profile.
type Pool struct {
	available map[string]profileSet
	allocated map[string]profileSet
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{
		available: make(map[string]profileSet),
		allocated: make(map[string]profileSet),
	}
}

// Add places inst into the available set for its profile.
func (p *Pool) Add(inst Instance) {
	p.setFor(p.available, inst.Profile)[inst] = struct{}{}
}

// Allocate moves one instance of the given profile from available to
// allocated and returns it. Selection among equally-available instances is
// unordered. Returns ErrEmpty if none is available.
func (p *Pool) Allocate(profile string) (Instance, error) {
	avail := p.setFor(p.available, profile)
	for inst := range avail {
		delete(avail, inst)
		p.setFor(p.allocated, profile)[inst] = struct{}{}
		return inst, nil
	}
	return Instance{}, fmt.Errorf("%w: profile=%q", ErrEmpty, profile)
}

// Release moves inst from allocated back to available.
func (p *Pool) Release(inst Instance) error {
	allocated := p.setFor(p.allocated, inst.Profile)
	if _, ok := allocated[inst]; !ok {
		return fmt.Errorf("%w: %+v", ErrNotAllocated, inst)
	}
	delete(allocated, inst)
	p.setFor(p.available, inst.Profile)[inst] = struct{}{}
	return nil
}

// Remove drops inst from allocated entirely (it is disposed of, not
// returned to the pool). It cannot remove an available-only instance.
func (p *Pool) Remove(inst Instance) error {
	allocated := p.setFor(p.allocated, inst.Profile)
	if _, ok := allocated[inst]; !ok {
		return fmt.Errorf("%w: %+v", ErrNotAllocated, inst)
	}
	delete(allocated, inst)
	return nil
}

// Size returns the total instance count (available + allocated) for
// profile.
func (p *Pool) Size(profile string) int {
	return len(p.available[profile]) + len(p.allocated[profile])
}

// All returns a snapshot union of every instance across every profile, in
// both available and allocated sets.
func (p *Pool) All() []Instance {
	var all []Instance
	for _, set := range p.available {
		for inst := range set {
			all = append(all, inst)
		}
	}
	for _, set := range p.allocated {
		for inst := range set {
			all = append(all, inst)
		}
	}
	return all
}

func (p *Pool) setFor(m map[string]profileSet, profile string) profileSet {
	set, ok := m[profile]
	if !ok {
		set = make(profileSet)
		m[profile] = set
	}
	return set
}
