// Package pagination walks paginated API-Football endpoints.
//
// Paginated endpoints report paging.current and paging.total in the response
// envelope. The walker fetches page 1 to learn the total, then fetches pages
// 2..total one after another. Pages are never fetched in parallel: every call
// goes through the key pool, and a single worker keeps per-key accounting
// simple.
//
// Example usage:
//
//	walker := pagination.NewWalker(apiClient, pagination.DefaultConfig())
//	pages, err := walker.Walk(ctx, "players", params)
//
// The walker:
//   - Fetches the first page to determine total pages
//   - Fetches the remaining pages sequentially
//   - Stops at Config.MaxPages
//   - Returns the pages fetched so far together with the first error
package pagination
