package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/imroc/req/v3"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/version"
)

const (
	directTimeout = 2 * time.Minute

	// responses flow back as ordered chunks; the receiver reassembles them
	responseChunkSize = 256 * 1024
)

// DirectProxy performs the request from the current process, no escalation.
type DirectProxy struct {
	client *req.Client
}

var _ Proxy = (*DirectProxy)(nil)

func NewDirectProxy() *DirectProxy {
	return &DirectProxy{
		client: req.C().
			SetTimeout(directTimeout).
			SetUserAgent("nano-web-git/" + version.Version),
	}
}

func (p *DirectProxy) Relay(ctx context.Context, env *Envelope) (*gitmsg.FetchResponse, error) {
	return execute(ctx, p.client, env)
}

// execute performs the network call and normalizes the response envelope.
// Transport failures surface as ErrNetwork; HTTP error statuses pass
// through, the caller decides what they mean.
func execute(ctx context.Context, client *req.Client, env *Envelope) (*gitmsg.FetchResponse, error) {
	r := client.R().SetContext(ctx)
	for k, v := range env.Headers {
		r.SetHeader(k, v)
	}
	if len(env.Body) > 0 {
		r.SetBodyBytes(env.Body)
	}

	resp, err := r.Send(env.Method, env.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, env.Method, env.URL, err)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %v", ErrNetwork, env.URL, err)
	}

	return &gitmsg.FetchResponse{
		URL:           env.URL,
		StatusCode:    resp.StatusCode,
		StatusMessage: http.StatusText(resp.StatusCode),
		Headers:       flattenHeaders(resp.Header),
		Body:          chunkBody(body),
	}, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func chunkBody(body []byte) [][]byte {
	if len(body) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, len(body)/responseChunkSize+1)
	for len(body) > 0 {
		n := min(responseChunkSize, len(body))
		chunks = append(chunks, body[:n])
		body = body[n:]
	}
	return chunks
}
