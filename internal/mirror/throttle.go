package mirror

import (
	"context"

	"golang.org/x/time/rate"

	"ytmirror/internal/youtube"
)

// throttledFetcher spaces out yt-dlp invocations with a token bucket.
type throttledFetcher struct {
	Fetcher
	limiter *rate.Limiter
}

func throttle(f Fetcher, perMinute float64) *throttledFetcher {
	return &throttledFetcher{
		Fetcher: f,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), 1),
	}
}

func (t *throttledFetcher) QueryResource(ctx context.Context, rawURL string) (*youtube.Snapshot, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Fetcher.QueryResource(ctx, rawURL)
}

func (t *throttledFetcher) Download(ctx context.Context, id string) (*youtube.DownloadResult, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Fetcher.Download(ctx, id)
}

func (t *throttledFetcher) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		// Wait also fails before a deadline that would pass while waiting.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return context.DeadlineExceeded
	}
	return nil
}
