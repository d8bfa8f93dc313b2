package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopCatalogHooks{}
	p.OnPassStart(ctx, "pass-1")
	p.OnProjectComplete(ctx, "acme/widget", "done", 3, nil)
	p.OnPassComplete(ctx, "pass-1", 3, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "manifest")
	c.OnCacheMiss(ctx, "manifest")
	c.OnCacheSet(ctx, "manifest", 1024)
	c.OnCacheError(ctx, "manifest", errors.New("disk full"))

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "gitlab.example.com", "/api/v3/projects")
	h.OnResponse(ctx, "GET", "gitlab.example.com", "/api/v3/projects", 200, time.Second)
	h.OnError(ctx, "GET", "gitlab.example.com", "/api/v3/projects", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Catalog().(NoopCatalogHooks); !ok {
		t.Error("Catalog() should return NoopCatalogHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	counters := &Counters{}
	SetCatalogHooks(counters)
	SetCacheHooks(counters)
	SetHTTPHooks(counters)
	if Catalog() != counters || Cache() != counters || HTTP() != counters {
		t.Error("Set*Hooks should register custom hooks")
	}

	Reset()
	if _, ok := Catalog().(NoopCatalogHooks); !ok {
		t.Error("Reset() should restore NoopCatalogHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &Counters{}
	SetCatalogHooks(custom)
	SetCatalogHooks(nil)

	if Catalog() != custom {
		t.Error("SetCatalogHooks(nil) should not replace existing hooks")
	}
}

func TestCountersConcurrent(t *testing.T) {
	ctx := context.Background()
	c := &Counters{}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state := "done"
			if i%2 == 0 {
				state = "skipped"
			}
			c.OnProjectComplete(ctx, "p", state, 2, nil)
			c.OnCacheHit(ctx, "manifest")
			c.OnCacheMiss(ctx, "manifest")
			c.OnRequest(ctx, "GET", "h", "/")
		}(i)
	}
	wg.Wait()

	got := c.Snapshot()
	if got.ProjectsDone != 5 || got.ProjectsSkipped != 5 {
		t.Errorf("projects done/skipped = %d/%d, want 5/5", got.ProjectsDone, got.ProjectsSkipped)
	}
	if got.Versions != 10 {
		t.Errorf("Versions = %d, want 10", got.Versions)
	}
	if got.CacheHits != 10 || got.CacheMisses != 10 || got.Requests != 10 {
		t.Errorf("unexpected counts: %+v", got)
	}
}
