// Package pagination is the page fetch client for the push API's list
// resources.
//
// List endpoints answer GET {resource}?page={n}&perPage={m} with
//
//	{"data": [...], "meta": {"page":1,"perPage":20,"total":55,"lastPage":3,"hasNext":true,"hasPrev":false}}
//
// ResourceFetcher issues exactly one request per FetchPage call and never
// retries. BatchFetcher reads lastPage from page 1 and fetches the rest with a
// small worker pool:
//
//	fetcher := pagination.NewResourceFetcher[subscriptions.Subscription](apiClient, "/subscriptions")
//	items, meta, err := pagination.NewBatchFetcher[subscriptions.Subscription](fetcher, pagination.DefaultConfig()).FetchAll(ctx, 20)
package pagination
