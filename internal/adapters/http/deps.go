package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/kilopost/internal/adapters/postgres"
	"github.com/samirrijal/kilopost/internal/adapters/valkey"
	"github.com/samirrijal/kilopost/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Chainage *usecases.ChainageService
	Roads    *usecases.RoadService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
