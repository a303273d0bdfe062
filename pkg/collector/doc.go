// Package collector assembles a bounded result set from a paginated,
// rate-limited search provider.
//
// The provider orders items by recency and caps every page at 100 items. It
// exposes an upper-bound identifier filter (max_id) rather than an offset, so
// the collector pages backwards through identifier space: after each page the
// next request is bounded by the smallest identifier seen so far minus one.
//
// Example usage:
//
//	c := collector.New(fetcher, collector.DefaultConfig())
//	result, err := c.Collect(ctx, tmpl, 250)
//
// The collector:
//   - Requests min(100, remaining) items per page
//   - Drops items whose identifier was already collected
//   - Stops when the target is reached or a page adds nothing new
//   - Returns partial results when rate limited after some progress
//   - Fetches strictly sequentially; the cursor for page k+1 depends on page k
package collector
