package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/housetax/pkg/adapter"
	"github.com/leapstack-labs/housetax/pkg/core"
)

func init() {
	adapter.Register(Name, func(logger *slog.Logger) core.Adapter { return New(logger) })
}
