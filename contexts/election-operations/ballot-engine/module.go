package ballotengine

import (
	"log/slog"
	"time"

	httpadapter "eligo/contexts/election-operations/ballot-engine/adapters/http"
	"eligo/contexts/election-operations/ballot-engine/adapters/memory"
	"eligo/contexts/election-operations/ballot-engine/application/commands"
	"eligo/contexts/election-operations/ballot-engine/application/queries"
	"eligo/contexts/election-operations/ballot-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Cache   ports.ResultsCache
}

type Dependencies struct {
	Store      ports.BallotStore
	Elections  ports.ElectionRepository
	Sessions   ports.SessionStore
	Cache      ports.ResultsCache
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	castUseCase := commands.CastVotesUseCase{
		Store:     deps.Store,
		Elections: deps.Elections,
		Cache:     deps.Cache,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	sessionUseCase := commands.RegisterSessionUseCase{
		Store:      deps.Store,
		Sessions:   deps.Sessions,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		SessionTTL: deps.SessionTTL,
		Logger:     deps.Logger,
	}
	adminUseCase := commands.ElectionAdminUseCase{
		Store:     deps.Store,
		Elections: deps.Elections,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	tallyUseCase := queries.TallyUseCase{
		Store:     deps.Store,
		Elections: deps.Elections,
		Cache:     deps.Cache,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Casting:  castUseCase,
			Sessions: sessionUseCase,
			Admin:    adminUseCase,
			Tallies:  tallyUseCase,
			Logger:   deps.Logger,
		},
		Cache: deps.Cache,
	}
}

// NewInMemoryModule wires the module entirely on the memory adapter. Tests
// and local runs use it; the store doubles as every port implementation.
func NewInMemoryModule(resultsTTL time.Duration, logger *slog.Logger) Module {
	store := memory.NewStore()
	cache := memory.NewResultsCache(resultsTTL)
	module := NewModule(Dependencies{
		Store:     store,
		Elections: store,
		Sessions:  store,
		Cache:     cache,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
