package scene

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

// ErrAssetMissing is returned by FileAssetLoader when a model file does
// not exist.
var ErrAssetMissing = errors.New("asset missing")

// DefaultLoadConcurrency bounds concurrent asset loads.
const DefaultLoadConcurrency = 4

// AssetLoader loads the visual for a body. The returned handle is stored
// in CelestialBody.Visual and never inspected by the simulation.
type AssetLoader interface {
	Load(ctx context.Context, spec model.BodySpec) (any, error)
}

// AssetLoaderFunc adapts a function to AssetLoader.
type AssetLoaderFunc func(ctx context.Context, spec model.BodySpec) (any, error)

func (f AssetLoaderFunc) Load(ctx context.Context, spec model.BodySpec) (any, error) {
	return f(ctx, spec)
}

// NopAssetLoader succeeds immediately with no visual.
var NopAssetLoader AssetLoader = AssetLoaderFunc(func(context.Context, model.BodySpec) (any, error) {
	return nil, nil
})

// FileAssetLoader resolves BodySpec.Model against Root and checks that the
// file exists. Its handle is the resolved path. Specs without a model
// load with a nil handle.
type FileAssetLoader struct {
	Root string
}

func (l FileAssetLoader) Load(ctx context.Context, spec model.BodySpec) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.Model == "" {
		return nil, nil
	}
	path := spec.Model
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.Root, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAssetMissing, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrAssetMissing, path)
	}
	return path, nil
}

// LoadResult lists the outcome per body ID, in completion order.
type LoadResult struct {
	Ready  []string
	Failed map[string]error
}

// LoadBodies registers every body of cat in reg, loading their assets
// concurrently. A failed asset marks the body failed and the rest carry
// on; the registry settles once every body has an outcome. Only context
// cancellation is returned as an error.
func LoadBodies(ctx context.Context, reg *kb.Registry, cat Catalogue, loader AssetLoader, concurrency int, log logging.Logger) (LoadResult, error) {
	if loader == nil {
		loader = NopAssetLoader
	}
	if log == nil {
		log = logging.Noop()
	}
	if concurrency <= 0 {
		concurrency = DefaultLoadConcurrency
	}

	reg.Expect(cat.IDs()...)

	var (
		mu     sync.Mutex
		result = LoadResult{Failed: make(map[string]error)}
	)
	fail := func(id string, err error) {
		mu.Lock()
		result.Failed[id] = err
		mu.Unlock()
		_ = reg.MarkFailed(id, err)
		log.Warn(ctx, "body failed to load", logging.String("body", id), logging.Err(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, spec := range cat.Specs() {
		g.Go(func() error {
			id := BodyID(spec.Name)
			visual, err := loader.Load(gctx, spec)
			if err != nil {
				fail(id, err)
				// Cancellation stops the group; other failures do not.
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return nil
			}

			body := NewBody(spec)
			body.Visual = visual
			if err := reg.AddBody(body); err != nil {
				fail(id, err)
				return nil
			}
			if err := reg.MarkReady(id); err != nil {
				fail(id, err)
				return nil
			}
			mu.Lock()
			result.Ready = append(result.Ready, id)
			mu.Unlock()
			log.Debug(gctx, "body ready", logging.String("body", id))
			return nil
		})
	}
	err := g.Wait()
	return result, err
}
