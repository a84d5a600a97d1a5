// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
// The notification engine uses it as the in-process layer in front of the
// preference store, where a short TTL bounds how long another instance's
// update can stay invisible:
//
//	prefs := cache.NewLRUCache[string, notifications.Preferences](10_000,
//		cache.WithTTL(30*time.Second),
//	)
//	prefs.Put(userID, p)
//	p, ok := prefs.Get(userID)
//
// Entries are considered recently used when read with Get or written with
// Put. When the capacity is exceeded the least recently used entry is
// evicted and the callback set with SetEvictCallback, if any, is invoked.
// Expired entries are dropped lazily on access.
//
// All operations are O(1) and safe for concurrent use.
package cache
