package compound

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lendingScope/internal/hook"
	"lendingScope/internal/model"
	"lendingScope/internal/oracle"
	"lendingScope/internal/ratemodel"
	"lendingScope/internal/state"
	"lendingScope/internal/storage"
	"lendingScope/internal/stream"
)

// ProtocolConfig wires a Protocol to its event sources.
type ProtocolConfig struct {
	Source      storage.Source
	Options     Options
	DSRRates    []ratemodel.DSRRate
	Recoverable func(error) bool
	MaxRetries  int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// Protocol replays Compound from the raw event log merged with the
// synthetic price and chi sources.
type Protocol struct {
	cfg        ProtocolConfig
	registries state.Registries
	hooks      *hook.Registry
	processor  *Processor
}

// NewProtocol builds the Compound registries and processor.
func NewProtocol(cfg ProtocolConfig) (*Protocol, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	models := ratemodel.NewRegistry()
	if err := RegisterRateModels(models); err != nil {
		return nil, err
	}
	oracles := oracle.NewRegistry()
	if err := RegisterOracles(oracles); err != nil {
		return nil, err
	}
	hooks := hook.NewRegistry()
	if err := RegisterHooks(hooks); err != nil {
		return nil, err
	}
	return &Protocol{
		cfg:        cfg,
		registries: state.Registries{RateModels: models, Oracles: oracles},
		hooks:      hooks,
		processor:  NewProcessor(cfg.Options, cfg.Logger),
	}, nil
}

func (p *Protocol) Name() string { return ProtocolName }

// Registries returns the lookup tables states of this protocol bind to.
func (p *Protocol) Registries() state.Registries { return p.registries }

// Hooks returns the analytics hooks available for this protocol.
func (p *Protocol) Hooks() *hook.Registry { return p.hooks }

// NewState returns an empty Compound state.
func (p *Protocol) NewState() *state.State {
	return state.New(ProtocolName, p.registries, ratemodel.NewDSR(p.cfg.DSRRates))
}

// Contracts lists every address whose logs feed the replay: cTokens, the
// comptroller, price oracles and rate models.
func (p *Protocol) Contracts() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addresses ...string) {
		for _, a := range addresses {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	for _, m := range Markets {
		add(m.Address)
	}
	add(ComptrollerAddress)
	add(p.registries.Oracles.Addresses()...)
	add(p.registries.RateModels.Addresses()...)
	return out
}

// Process applies one event.
func (p *Protocol) Process(st *state.State, ev model.Event) error {
	return p.processor.Process(st, ev)
}

// Events merges every source kind within r into one sorted stream. Each
// source reopens after its last key when interrupted.
func (p *Protocol) Events(_ context.Context, r storage.Range) (stream.Iterator[model.Event], error) {
	kinds := storage.Kinds()
	sources := make([]stream.Iterator[model.Event], 0, len(kinds))
	for _, kind := range kinds {
		kind := kind
		sources = append(sources, stream.NewResumable(stream.ResumableConfig[model.Event]{
			Name: string(kind),
			Open: func(ctx context.Context, after *model.PointInTime) (stream.Iterator[model.Event], error) {
				return p.cfg.Source.Open(ctx, kind, r, after)
			},
			Key:         model.Event.Key,
			Recoverable: p.cfg.Recoverable,
			MaxRetries:  p.cfg.MaxRetries,
			Backoff:     p.cfg.Backoff,
			Logger:      p.cfg.Logger,
		}))
	}
	return stream.Merge(model.Event.Key, sources...), nil
}
