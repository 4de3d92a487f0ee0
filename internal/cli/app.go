package cli

import (
	"context"
	"errors"

	"github.com/roach88/semlayer/internal/definitions"
	"github.com/roach88/semlayer/internal/metrics"
	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/querysql"
	"github.com/roach88/semlayer/internal/semantic"
	"github.com/roach88/semlayer/internal/service"
	"github.com/roach88/semlayer/internal/store"
	"github.com/roach88/semlayer/internal/warehouse"
)

// loadModel loads and builds the configured definitions. On failure it
// returns every load or definition error found.
func (o *RootOptions) loadModel(dir string) (*semantic.Model, *definitions.LoadResult, []error) {
	if dir == "" {
		dir = o.Config.Definitions.Dir
	}
	o.Logger.Debug("loading definitions", "dir", dir)

	result, errs := definitions.LoadDir(dir, definitions.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, result, errs
	}

	opts := []semantic.Option{semantic.WithDialect(o.Config.Dialect())}
	if o.Config.Model.BaseTable != "" {
		opts = append(opts, semantic.WithBaseTable(o.Config.Model.BaseTable))
	}
	m, err := semantic.Build(result.Definitions, opts...)
	if err != nil {
		var be *semantic.BuildError
		if errors.As(err, &be) {
			return nil, result, be.Errors
		}
		return nil, result, []error{err}
	}
	o.Logger.Debug("model built",
		"format", result.Format,
		"columns", m.Columns().Len(),
		"segments", len(m.Taxonomy().Segments()),
		"metrics", m.Metrics().Len(),
	)
	return m, result, nil
}

// components are the optional adapters around the compiler. close
// releases whatever was opened.
type components struct {
	service *service.Service
	closers []func() error
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

// buildService wires the compiler to the warehouse, audit log and, when
// withExtractor is set, the OpenAI extractor.
func (o *RootOptions) buildService(ctx context.Context, m *semantic.Model, withExtractor bool) (*components, error) {
	cfg := o.Config
	c := &components{service: &service.Service{
		Compiler: querysql.NewCompiler(m),
		Metrics:  metrics.New(),
		Logger:   o.Logger,
	}}
	c.service.Metrics.SetModel(m)

	if cfg.Warehouse.Path != "" {
		wh, err := warehouse.Open(cfg.Warehouse.Path, o.Logger)
		if err != nil {
			c.close()
			return nil, err
		}
		wh.OnQuery = c.service.Metrics.ObserveQuery
		c.service.Warehouse = wh
		c.closers = append(c.closers, wh.Close)
	}

	if cfg.Audit.Path != "" {
		st, err := store.Open(cfg.Audit.Path)
		if err != nil {
			c.close()
			return nil, err
		}
		c.service.Audit = st
		c.closers = append(c.closers, st.Close)
	}

	if withExtractor && cfg.NLU.APIKey != "" {
		ex, err := o.buildExtractor(ctx, m, c)
		if err != nil {
			c.close()
			return nil, err
		}
		c.service.Extractor = ex
	}
	return c, nil
}

func (o *RootOptions) buildExtractor(ctx context.Context, m *semantic.Model, c *components) (nlu.Extractor, error) {
	cfg := o.Config.NLU
	base, err := nlu.NewOpenAIExtractor(nlu.OpenAIConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}, nlu.NewVocabulary(m), o.Logger)
	if err != nil {
		return nil, err
	}

	var cache nlu.Cache = nlu.NewMemoryCache(nil)
	if addr := o.Config.Redis.Addr; addr != "" {
		rc, err := nlu.NewRedisCache(ctx, addr, o.Config.Redis.Password, o.Config.Redis.DB)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rc.Close)
		cache = rc
	}

	return &nlu.CachedExtractor{
		Next:     base,
		Cache:    cache,
		TTL:      cfg.CacheTTL,
		Logger:   o.Logger,
		OnLookup: c.service.Metrics.ObserveCacheLookup,
	}, nil
}
