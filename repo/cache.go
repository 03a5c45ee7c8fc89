package repo

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spkrepo/spk/metrics"
	"github.com/spkrepo/spk/storage/cas"
)

// cacheRequests counts cache lookups per map, labeled by hit/miss, the way
// the teacher's registry/storage/cache/metrics counts Stat calls against
// its BlobDescriptorCacheProvider.
var cacheRequests = metrics.CacheNamespace.NewLabeledCounter("requests", "The number of cache map lookups", "map", "hit")

func recordCacheLookup(mapName string, hit bool) {
	if hit {
		cacheRequests.WithValues(mapName, "true").Inc(1)
		return
	}
	cacheRequests.WithValues(mapName, "false").Inc(1)
}

// cacheMapSize bounds each of the six per-address maps. Sized generously
// since entries are small (digests, short lists); eviction is a safety
// valve, not the primary invalidation mechanism (that's Purge, on
// every write, per spec §4.4).
const cacheMapSize = 8192

// CachePolicy selects whether reads consult the per-address cache.
// Writes always populate it regardless of policy (spec §4.4).
type CachePolicy int

const (
	CacheOk CachePolicy = iota
	BypassCache
)

// bundle is the six concurrent maps shared by every handle bound to one
// repository address (spec §4.4). Plain (non-ARC) LRUs are used
// deliberately: invalidation here is wholesale (Purge on every write),
// not recency-based, so the teacher's ARC variant (tuned for scan
// resistance under partial eviction) buys nothing an ordinary LRU with
// a generous size doesn't already give, and the plain package exposes
// Purge directly.
type bundle struct {
	lsTags              *lru.Cache[string, []cas.Entry]
	packageVersions     *lru.Cache[string, cacheValue]
	pkg                 *lru.Cache[string, cacheValue]
	recipe              *lru.Cache[string, cacheValue]
	tagSpec             *lru.Cache[string, cacheValue]
	listBuildComponents *lru.Cache[string, cacheValue]
}

func newBundle() *bundle {
	must := func(c *lru.Cache[string, cacheValue], err error) *lru.Cache[string, cacheValue] {
		if err != nil {
			panic(err) // unreachable: cacheMapSize is a positive constant
		}
		return c
	}
	lsTags, err := lru.New[string, []cas.Entry](cacheMapSize)
	if err != nil {
		panic(err)
	}
	return &bundle{
		lsTags:              lsTags,
		packageVersions:     must(lru.New[string, cacheValue](cacheMapSize)),
		pkg:                 must(lru.New[string, cacheValue](cacheMapSize)),
		recipe:              must(lru.New[string, cacheValue](cacheMapSize)),
		tagSpec:             must(lru.New[string, cacheValue](cacheMapSize)),
		listBuildComponents: must(lru.New[string, cacheValue](cacheMapSize)),
	}
}

// purge invalidates all six maps wholesale. Called once by every
// publish/remove/write_metadata operation (spec §4.4 Invalidation).
func (b *bundle) purge() {
	b.lsTags.Purge()
	b.packageVersions.Purge()
	b.pkg.Purge()
	b.recipe.Purge()
	b.tagSpec.Purge()
	b.listBuildComponents.Purge()
}

// registry is the process-wide address → bundle map (spec §4.4, §9
// "guarded registry of handles to internally-concurrent maps"). Two
// handles opened at the same address share the same *bundle pointer,
// so write-through by one handle is visible to the other.
var registry = struct {
	mu      sync.Mutex
	bundles map[string]*bundle
}{bundles: make(map[string]*bundle)}

// bundleFor returns the shared bundle for address, creating it on
// first use. The mutex is held only for the lookup/insert, matching
// the spec's "guarded only for insertion lookups" resource note (§5).
func bundleFor(address string) *bundle {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	b, ok := registry.bundles[address]
	if !ok {
		b = newBundle()
		registry.bundles[address] = b
	}
	return b
}
