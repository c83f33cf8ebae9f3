// Package pagination fetches every page of a paginated provider listing.
//
// GitHub and GitLab announce the last page in the Link header (rel="last"),
// GitLab also sends X-Total-Pages, and Bitbucket reports size and pagelen in
// the body. PageMapper folds that count into the cached canonical body, so a
// page replayed from cache on a 304 still knows how many pages follow.
//
// Example usage:
//
//	fetcher := pagination.NewClientPageFetcher(c, pagination.QueryPageURL("page"))
//	bf := pagination.NewBatchFetcher(fetcher, pagination.DefaultConfig())
//	pages, err := bf.FetchAllPages(ctx, "https://api.github.com/user/repos")
//
// The batch fetcher:
//   - Fetches the first page to determine the total page count
//   - Fetches the remaining pages in parallel, bounded by MaxConcurrency
//   - Returns the pages fetched so far together with the first error
//
// Pages are fetched from several goroutines, so the client must be safe for
// concurrent use; a client.FastCacheClient is not.
package pagination
