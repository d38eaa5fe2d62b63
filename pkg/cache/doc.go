// Package cache keeps push API list responses in Redis so they can be
// revalidated with If-None-Match or If-Modified-Since.
//
// The client always asks the server. A stored body is only replayed when the
// server answers 304 Not Modified, so a refresh never shows data the server
// has not confirmed.
//
//	m := cache.NewManager(redisClient)
//	key := cache.Key{
//		Scope:    cache.ScopeFromToken(token),
//		Resource: "/subscriptions",
//		Query:    url.Values{"page": {"1"}, "perPage": {"20"}},
//	}
//
//	entry, _ := m.Prepare(ctx, key, req.Header) // adds validators when cached
//	resp, _ := http.DefaultClient.Do(req)
//	switch {
//	case resp.StatusCode == http.StatusNotModified && entry != nil:
//		_ = m.Revalidated(ctx, key, entry, resp.Header)
//		resp = entry.Replay(req)
//	case resp.StatusCode == http.StatusOK:
//		_ = m.Capture(ctx, key, resp)
//	}
//
// Keys start with the scope, derived from the bearer token, so two accounts
// sharing a Redis instance never read each other's pages and one account's
// entries can be dropped with Purge. Writes to a resource call Invalidate.
package cache
