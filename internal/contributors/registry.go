package contributors

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrDuplicateContributor is returned when a name is registered twice
var ErrDuplicateContributor = errors.New("contributor already registered")

// ContributorRegistry holds the contributors consulted for every naming request.
// It is built once at startup and handed to the naming service.
type ContributorRegistry struct {
	contributors []Contributor
	byName       map[string]Contributor
	logger       *zap.Logger
	mu           sync.RWMutex
}

// NewContributorRegistry creates an empty registry
func NewContributorRegistry(logger *zap.Logger) *ContributorRegistry {
	return &ContributorRegistry{
		byName: make(map[string]Contributor),
		logger: logger,
	}
}

// Register adds a contributor; registration order is the aggregation order
func (r *ContributorRegistry) Register(contributor Contributor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[contributor.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateContributor, contributor.Name())
	}
	r.byName[contributor.Name()] = contributor
	r.contributors = append(r.contributors, contributor)

	r.logger.Info("Registered name contributor", zap.String("contributor", contributor.Name()))
	return nil
}

// Get retrieves a contributor by name
func (r *ContributorRegistry) Get(name string) (Contributor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contributor, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("contributor not found: %s", name)
	}
	return contributor, nil
}

// All returns the registered contributors in registration order
func (r *ContributorRegistry) All() []Contributor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contributors := make([]Contributor, len(r.contributors))
	copy(contributors, r.contributors)
	return contributors
}
