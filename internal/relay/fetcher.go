package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/imroc/req/v3"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/version"
)

// Fetcher is the final hop: it owns the privileged outbound HTTP client and
// answers FetchProxy envelopes with FetchResult messages.
type Fetcher struct {
	client *req.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: req.C().
			SetTimeout(directTimeout).
			SetUserAgent("fetchrelayd/" + version.Version),
	}
}

// ServeSocket consumes escalated requests from the socket until it closes.
// Each request runs in its own goroutine so one slow origin does not stall
// the rest of the chain.
func (f *Fetcher) ServeSocket(ctx context.Context, socket *Socket) {
	for msg := range socket.Recv() {
		proxy, ok := msg.Data.(*gitmsg.FetchProxy)
		if !ok {
			slog.Warn("fetcher unexpected message", "id", msg.Id, "type", msg.Type)
			continue
		}

		go func() {
			start := time.Now()
			res, err := execute(ctx, f.client, &Envelope{
				URL:     proxy.URL,
				Method:  proxy.Method,
				Headers: proxy.Headers,
				Body:    proxy.Body,
			})

			var reply *gitmsg.Message
			if err != nil {
				slog.Warn("fetcher request failed", "fetchId", proxy.FetchID, "url", proxy.URL, "error", err)
				reply = gitmsg.NewFetchError(proxy.FetchID, err.Error())
			} else {
				slog.Info("fetcher request",
					"fetchId", proxy.FetchID,
					"method", proxy.Method,
					"url", proxy.URL,
					"status", res.StatusCode,
					"took", time.Since(start).Round(time.Millisecond))
				reply = gitmsg.NewFetchResult(proxy.FetchID, res)
			}

			if err := socket.Send(reply); err != nil {
				slog.Warn("fetcher reply dropped", "fetchId", proxy.FetchID, "error", err)
			}
		}()
	}
}
