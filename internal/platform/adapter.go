package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fanforge/creator-platform/internal/models"
)

// Supported DM platforms.
const (
	OnlyFans  = "onlyfans"
	Instagram = "instagram"
	TikTok    = "tiktok"
	Reddit    = "reddit"
)

// Adapter sends a DM through one platform and returns a normalized provider
// response alongside error classification.
type Adapter interface {
	Platform() string
	Send(ctx context.Context, msg models.MessagePayload) (*models.ProviderResponse, error)
}

// Sentinel errors adapters use when classifying provider failures.
var (
	ErrTransient   = errors.New("transient error")
	ErrPermanent   = errors.New("permanent error")
	ErrRateLimited = errors.New("rate limited")
)

// WrapTransient annotates an error so callers can detect transient failures.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// WrapPermanent annotates an error as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}

// WrapRateLimited annotates an error as a provider-side rate limit.
func WrapRateLimited(err error) error {
	if err == nil {
		return ErrRateLimited
	}
	return fmt.Errorf("%w: %v", ErrRateLimited, err)
}

// Registry resolves adapters by platform name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry indexes the supplied adapters by Platform().
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, errors.New("platform registry: nil adapter")
		}
		name := a.Platform()
		if name == "" {
			return nil, errors.New("platform registry: adapter with empty platform name")
		}
		if _, dup := r.adapters[name]; dup {
			return nil, fmt.Errorf("platform registry: duplicate adapter for %q", name)
		}
		r.adapters[name] = a
	}
	return r, nil
}

// Adapter returns the adapter for the platform, or an error naming the
// platforms that are available.
func (r *Registry) Adapter(platform string) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("platform registry: no adapter for %q (have %v)", platform, r.Platforms())
	}
	return a, nil
}

// Platforms lists the registered platform names in stable order.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
