// Package store caches hierarchies so that repeated requests for the same
// codes skip the coding-system round trip.
//
// Lookups go through two tiers: an LRU of live *hierarchy.Hierarchy values,
// whose memo tables keep growing while they are in use, and a Store of
// serialised hierarchy.CacheRecord values (Badger, on disk or in memory).
// Concurrent requests for the same key share one build.
//
//	db, err := store.OpenBadger(store.DefaultConfig("/var/lib/codelists"))
//	if err != nil {
//	    return err
//	}
//	b, err := store.NewBuilder(registry, db, store.WithCacheSize(256))
//	defer b.Close()
//
//	h, err := b.Hierarchy(ctx, "http://snomed.info/sct", codes)
//	// ... resolve statuses, which fills the memo tables ...
//	err = b.Save(ctx, "http://snomed.info/sct", codes, h)
package store
