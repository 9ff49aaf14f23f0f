// Package resilience retries failed operations with exponential backoff.
//
//	h, err := resilience.Retry(ctx, cfg, func(ctx context.Context) (feed.Handle, error) {
//	    return src.Open(ctx, req)
//	})
//
// By default only retryable application errors (TRANSPORT, FEED_ABORTED,
// SERVICE_UNAVAILABLE, TIMEOUT) and plain I/O errors are retried.
package resilience
