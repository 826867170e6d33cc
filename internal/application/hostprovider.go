package application

import (
	"sync"

	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// HostProvider holds the repository host bound to the session's credential.
// The handle is set on authentication and dropped when the session leaves
// repository selection backwards or resets.
type HostProvider struct {
	mu    sync.RWMutex
	host  driven.RepositoryHost
	login string
}

// NewHostProvider creates an empty provider.
func NewHostProvider() *HostProvider {
	return &HostProvider{}
}

// Get returns the current host, or nil when no credential is held.
func (p *HostProvider) Get() driven.RepositoryHost {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.host
}

// Login returns the login the held credential belongs to.
func (p *HostProvider) Login() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.login
}

// Replace swaps in a new host and login.
func (p *HostProvider) Replace(host driven.RepositoryHost, login string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = host
	p.login = login
}

// Clear drops the held host and login.
func (p *HostProvider) Clear() {
	p.Replace(nil, "")
}
