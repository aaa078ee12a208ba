package relay

import (
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/wire"
)

// startDaemon runs an in-process fetch relay endpoint and returns its ws url.
func startDaemon(t *testing.T, serve func(ctx context.Context, s *Socket)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s := NewSocket(r.Context(), conn, wire.EncodingMsgPack)
		defer s.Close()
		serve(r.Context(), s)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialChain(t *testing.T, wsURL string) (*ChainProxy, *Socket) {
	t.Helper()
	socket, err := DialSocket(context.Background(), wsURL)
	require.NoError(t, err)
	t.Cleanup(socket.Close)
	return NewChainProxy(socket), socket
}

func TestChain_RoundTripBytesExact(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("X-Echo", "1")
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	}))
	defer origin.Close()

	wsURL := startDaemon(t, func(ctx context.Context, s *Socket) {
		NewFetcher().ServeSocket(ctx, s)
	})
	chain, _ := dialChain(t, wsURL)

	// larger than one response chunk so reassembly is exercised end to end
	body := make([]byte, responseChunkSize*2+33)
	_, err := rand.Read(body)
	require.NoError(t, err)

	res, err := chain.Relay(context.Background(), &Envelope{
		URL:    origin.URL,
		Method: http.MethodPost,
		Body:   body,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "1", res.Headers["X-Echo"])
	assert.Equal(t, body, res.Bytes())
}

func TestChain_HTTPErrorStatusPassesThrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer origin.Close()

	wsURL := startDaemon(t, func(ctx context.Context, s *Socket) {
		NewFetcher().ServeSocket(ctx, s)
	})
	chain, _ := dialChain(t, wsURL)

	res, err := chain.Relay(context.Background(), &Envelope{URL: origin.URL, Method: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestChain_TransportFailureIsNetworkError(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close() // nothing listens here anymore

	wsURL := startDaemon(t, func(ctx context.Context, s *Socket) {
		NewFetcher().ServeSocket(ctx, s)
	})
	chain, _ := dialChain(t, wsURL)

	_, err := chain.Relay(context.Background(), &Envelope{URL: dead.URL, Method: http.MethodGet})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestChain_HopTimeoutAndLateResultDiscarded(t *testing.T) {
	first := true
	wsURL := startDaemon(t, func(ctx context.Context, s *Socket) {
		for msg := range s.Recv() {
			proxy, ok := msg.Data.(*gitmsg.FetchProxy)
			if !ok {
				continue
			}
			delay := time.Duration(0)
			if first {
				first = false
				delay = 300 * time.Millisecond
			}
			go func() {
				time.Sleep(delay)
				s.Send(gitmsg.NewFetchResult(proxy.FetchID, &gitmsg.FetchResponse{
					URL:        proxy.URL,
					StatusCode: http.StatusOK,
				}))
			}()
		}
	})
	chain, _ := dialChain(t, wsURL)
	chain.HopTimeout = 100 * time.Millisecond

	// first hop expires; the timed-out id must not poison the chain
	_, err := chain.Relay(context.Background(), &Envelope{URL: "http://x", Method: http.MethodGet})
	assert.ErrorIs(t, err, ErrRelayTimeout)

	// the late result for the expired id arrives during this call; it is
	// dropped and the fresh id correlates correctly
	res, err := chain.Relay(context.Background(), &Envelope{URL: "http://y", Method: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestChain_RemoteErrorSurfaces(t *testing.T) {
	wsURL := startDaemon(t, func(ctx context.Context, s *Socket) {
		for msg := range s.Recv() {
			if proxy, ok := msg.Data.(*gitmsg.FetchProxy); ok {
				s.Send(gitmsg.NewFetchError(proxy.FetchID, "dns exploded"))
			}
		}
	})
	chain, _ := dialChain(t, wsURL)

	_, err := chain.Relay(context.Background(), &Envelope{URL: "http://x", Method: http.MethodGet})
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "dns exploded")
}

func TestChain_ClosedSocketRejectsCalls(t *testing.T) {
	wsURL := startDaemon(t, func(ctx context.Context, s *Socket) {
		<-s.Done()
	})
	chain, socket := dialChain(t, wsURL)
	socket.Close()

	_, err := chain.Relay(context.Background(), &Envelope{URL: "http://x", Method: http.MethodGet})
	assert.ErrorIs(t, err, ErrRelayClosed)
}
