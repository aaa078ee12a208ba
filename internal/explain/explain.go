// Package explain talks to the code-explanation service. It is strictly
// best-effort: callers log failures and carry on, nothing here may abort a
// sync or relay operation.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/copywrite-ai/nano-web-git/internal/version"
)

var ErrUnavailable = errors.New("explain: service unavailable")

const requestTimeout = 30 * time.Second

type Client struct {
	client  *req.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: req.C().
			SetTimeout(requestTimeout).
			SetUserAgent("nanogit/" + version.Version),
	}
}

type explainRequest struct {
	Text       string `json:"text"`
	Identifier string `json:"identifier"`
}

type summarizeRequest struct {
	Names []string `json:"names"`
}

type textResponse struct {
	Result string `json:"result"`
}

// Explain asks the service to describe a snippet identified by ident.
func (c *Client) Explain(ctx context.Context, text, ident string) (string, error) {
	return c.post(ctx, "/v1/explain", &explainRequest{Text: text, Identifier: ident})
}

// Summarize asks for a short description of a set of file names.
func (c *Client) Summarize(ctx context.Context, names []string) (string, error) {
	return c.post(ctx, "/v1/summarize", &summarizeRequest{Names: names})
}

func (c *Client) post(ctx context.Context, path string, body any) (string, error) {
	var out textResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetSuccessResult(&out).
		Post(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsErrorState() {
		return "", fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	return out.Result, nil
}
