package venue

import (
	"fmt"
	"sort"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/market"
)

type constructor func(cfg config.MarketConfig, deps Deps) (market.Adapter, error)

var registry = map[string]constructor{
	mtgoxName:    newMtGox,
	bitstampName: newBitstamp,
	campbxName:   newCampBX,
	nullName:     newNull,
}

// New builds the adapter registered under name.
func New(name string, cfg config.MarketConfig, deps Deps) (market.Adapter, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown market %q (available: %v)", name, Names())
	}
	return build(cfg, deps)
}

// Names lists the registered markets in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
