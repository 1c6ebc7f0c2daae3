// Package venue holds the self-registration point for exchange
// adapters. Each adapter package registers a factory from its init(),
// so wiring a venue in is an import, not an edit here.
package venue

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"uniperp/internal/application/port"
)

// Settings carries per-venue endpoints and credentials from config to
// the adapter factory.
type Settings struct {
	WSURL     string
	RestURL   string
	APIKey    string
	APISecret string
}

// Factory 构造一个 venue adapter
type Factory func(s Settings) (port.Venue, error)

// registry maps venue names to their adapter factories
var registry = make(map[string]Factory)

// Register 注册 venue factory. 由各 venue 包的 init() 自注册调用.
func Register(name string, factory Factory) {
	if factory == nil {
		log.Warn().Str("venue", name).Msg("invalid venue factory")
		return
	}
	if _, exists := registry[name]; exists {
		log.Warn().Str("venue", name).Msg("venue factory already registered, overwriting")
	}
	registry[name] = factory
	log.Debug().Str("venue", name).Msg("venue factory registered")
}

// Get 获取已注册的 venue factory
func Get(name string) (Factory, bool) {
	factory, ok := registry[name]
	return factory, ok
}

// Build constructs a registered venue or fails with the known names.
func Build(name string, s Settings) (port.Venue, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown venue %q (registered: %v)", name, Names())
	}
	return factory(s)
}

// Names lists registered venues in stable order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
