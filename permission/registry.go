package permission

import (
	"errors"
	"fmt"
	"sync"
)

const maxRoles = 64

// Registry maps role names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[Role]int
	bitToName map[int]Role
	frozen    bool
}

// NewRegistry creates a registry holding roles, in order.
func NewRegistry(roles ...Role) (*Registry, error) {
	r := &Registry{
		nameToBit: make(map[Role]int),
		bitToName: make(map[int]Role),
	}
	for _, role := range roles {
		if _, err := r.Register(role); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewDefaultRegistry returns a frozen registry of [DefaultRoles].
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultRoles...)
	if err != nil {
		panic(err)
	}
	r.Freeze()
	return r
}

// Register assigns the next available bit to role and returns it.
// Must be called before [Registry.Freeze].
func (r *Registry) Register(role Role) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if role == "" {
		return -1, errors.New("role name cannot be empty")
	}
	if _, exists := r.nameToBit[role]; exists {
		return -1, errors.New("role already registered")
	}

	nextBit := len(r.nameToBit)
	if nextBit >= maxRoles {
		return -1, errors.New("role limit exceeded")
	}

	r.nameToBit[role] = nextBit
	r.bitToName[nextBit] = role
	return nextBit, nil
}

// Bit returns the bit index for role, or false if not registered.
func (r *Registry) Bit(role Role) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[role]
	return bit, ok
}

// Name returns the role for bit, or false if unassigned.
func (r *Registry) Name(bit int) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered roles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// Compile turns roles into a mask. Unknown roles are reported together.
func (r *Registry) Compile(roles []Role) (Mask64, error) {
	var mask Mask64
	var unknown []Role
	for _, role := range roles {
		bit, ok := r.Bit(role)
		if !ok {
			unknown = append(unknown, role)
			continue
		}
		mask.Set(bit)
	}
	if len(unknown) > 0 {
		return 0, fmt.Errorf("unknown roles %v", unknown)
	}
	return mask, nil
}

// Allows reports whether role is a member of mask.
func (r *Registry) Allows(mask Mask64, role Role) bool {
	bit, ok := r.Bit(role)
	if !ok {
		return false
	}
	return mask.Has(bit)
}
