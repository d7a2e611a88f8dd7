// Package pagination provides parallel batch fetching for paged transit API
// listings.
//
// The API reports the total page count in the X-Pages header of every page.
// BatchFetcher fetches page 1 to learn the count, then distributes the
// remaining pages over a small worker pool.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(transitClient, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, "/v1/bikes")
//	if err != nil {
//		return err // no partial collections
//	}
//	for page := 1; page <= len(pages); page++ {
//		decode(pages[page])
//	}
//
// Any failed page fails the whole fetch. Callers never see a partial
// collection.
package pagination
