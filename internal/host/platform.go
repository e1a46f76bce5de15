package host

import (
	"errors"
	"sync"
)

// ErrNoInitializer is returned when a program is embedded through a Platform
// that has no initializer.
var ErrNoInitializer = errors.New("platform has no initializer")

// Initializer turns an application's functions into an embeddable Module.
// The renderer (view) may be ignored.
type Initializer func(init InitFunc, update UpdateFunc, subscriptions SubscriptionsFunc, view ViewFunc) Module

// Platform is a process-wide slot holding the current Initializer.
type Platform struct {
	mu         sync.RWMutex
	initialize Initializer
}

// NewPlatform returns a Platform whose slot holds initialize.
func NewPlatform(initialize Initializer) *Platform {
	return &Platform{initialize: initialize}
}

// Default is the Platform used by Initialize. Package initialisation fills
// it with the real, loop-starting initializer.
var Default = NewPlatform(Start)

// Initializer returns the current initializer, or nil.
func (p *Platform) Initializer() Initializer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialize
}

// SetInitializer replaces the initializer for the lifetime of the process.
// There is no teardown.
func (p *Platform) SetInitializer(initialize Initializer) {
	p.mu.Lock()
	p.initialize = initialize
	p.mu.Unlock()
}

// Initialize constructs a Module through the current initializer.
func (p *Platform) Initialize(init InitFunc, update UpdateFunc, subscriptions SubscriptionsFunc, view ViewFunc) Module {
	initialize := p.Initializer()
	if initialize == nil {
		return ModuleFunc(func(Root, any) (App, error) {
			return nil, ErrNoInitializer
		})
	}
	return initialize(init, update, subscriptions, view)
}

// Initialize constructs a Module through Default.
func Initialize(init InitFunc, update UpdateFunc, subscriptions SubscriptionsFunc, view ViewFunc) Module {
	return Default.Initialize(init, update, subscriptions, view)
}
