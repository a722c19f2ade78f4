package scene

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

func TestLoadBodiesToleratesFailures(t *testing.T) {
	root := t.TempDir()
	cat := DefaultCatalogue()
	for _, b := range cat.Bodies {
		if b.Name == "mars" || b.Name == "neptune" {
			continue
		}
		path := filepath.Join(root, b.Model)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	reg := kb.NewRegistry()
	res, err := LoadBodies(context.Background(), reg, cat, FileAssetLoader{Root: root}, 3, nil)
	if err != nil {
		t.Fatalf("LoadBodies: %v", err)
	}
	if len(res.Ready) != 7 || len(res.Failed) != 2 {
		t.Fatalf("ready=%v failed=%v", res.Ready, res.Failed)
	}
	if !errors.Is(res.Failed["mars"], ErrAssetMissing) {
		t.Fatalf("mars error = %v, want ErrAssetMissing", res.Failed["mars"])
	}
	if !reg.Settled() || reg.AllReady() {
		t.Fatalf("Settled=%v AllReady=%v, want settled with failures", reg.Settled(), reg.AllReady())
	}
	if st, _ := reg.Status("neptune"); st != kb.StatusFailed {
		t.Fatalf("neptune status = %v, want failed", st)
	}
	earth := reg.Body("earth")
	if earth == nil || earth.Visual != filepath.Join(root, "earth", "scene.gltf") {
		t.Fatalf("earth visual = %+v", earth)
	}
	// The sun has no model and loads with a nil visual.
	if sun := reg.Body("sun"); sun == nil || sun.Visual != nil || !reg.Ready("sun") {
		t.Fatalf("sun = %+v ready=%v", sun, reg.Ready("sun"))
	}
}

func TestLoadBodiesRespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	loader := AssetLoaderFunc(func(ctx context.Context, spec model.BodySpec) (any, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		return spec.Name, nil
	})
	reg := kb.NewRegistry()
	res, err := LoadBodies(context.Background(), reg, DefaultCatalogue(), loader, 2, nil)
	if err != nil {
		t.Fatalf("LoadBodies: %v", err)
	}
	if len(res.Ready) != 9 || !reg.AllReady() {
		t.Fatalf("ready = %v", res.Ready)
	}
	if p := peak.Load(); p > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", p)
	}
}

func TestLoadBodiesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reg := kb.NewRegistry()
	_, err := LoadBodies(ctx, reg, DefaultCatalogue(), FileAssetLoader{Root: t.TempDir()}, 0, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("LoadBodies error = %v, want context.Canceled", err)
	}
	if reg.Ready("earth") {
		t.Fatalf("body became ready after cancellation")
	}
}
