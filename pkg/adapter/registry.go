package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/housetax/pkg/core"
)

// Factory builds an unconnected engine. A nil logger discards output.
type Factory func(*slog.Logger) core.Adapter

// ErrNoEngine is returned when no sql.engine is configured.
var ErrNoEngine = errors.New("sql.engine is not set")

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Factory)
)

// Register makes an engine available under name. Engine packages call it
// from init. It panics on an empty name, a nil factory or a name that is
// already taken.
func Register(name string, f Factory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	switch {
	case name == "":
		panic("adapter: Register with empty engine name")
	case f == nil:
		panic("adapter: Register " + name + " with nil factory")
	}
	if _, dup := engines[name]; dup {
		panic("adapter: Register called twice for engine " + name)
	}
	engines[name] = f
}

// Engines returns the registered engine names, sorted.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CheckEngine returns nil when name is a registered engine.
func CheckEngine(name string) error {
	if name == "" {
		return ErrNoEngine
	}
	enginesMu.RLock()
	_, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return &UnknownEngineError{Engine: name, Available: Engines()}
	}
	return nil
}

// NewEngine builds the engine cfg.Type names. Connect it before use.
func NewEngine(cfg core.AdapterConfig, logger *slog.Logger) (core.Adapter, error) {
	if err := CheckEngine(cfg.Type); err != nil {
		return nil, err
	}
	enginesMu.RLock()
	f := engines[cfg.Type]
	enginesMu.RUnlock()
	return f(logger), nil
}

// UnknownEngineError names a sql.engine value no package registered.
type UnknownEngineError struct {
	Engine    string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown sql.engine %q (choose one of: %s)", e.Engine, strings.Join(e.Available, ", "))
}
