package report

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultMemoSize   = 64
	maxReportSize     = 64 << 20
	defaultMaxElapsed = 30 * time.Second
)

// Fetcher returns content addressed bytes that were checked against their CID.
type Fetcher interface {
	FetchAndVerify(ctx context.Context, c cid.Cid) ([]byte, error)
}

// Gateway fetches from an IPFS HTTP gateway: GET {gateway}/{cid}.
type Gateway struct {
	BaseURL    string
	Client     *http.Client
	MaxElapsed time.Duration

	memo *lru.Cache
}

func NewGateway(baseURL string, timeout time.Duration) (*Gateway, error) {
	memo, err := lru.New(defaultMemoSize)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: timeout},
		MaxElapsed: defaultMaxElapsed,
		memo:       memo,
	}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.code, e.body)
}

func transient(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// FetchAndVerify downloads c and recomputes its CID. Transport failures are
// retried with exponential backoff; a CID mismatch is never retried.
func (g *Gateway) FetchAndVerify(ctx context.Context, c cid.Cid) ([]byte, error) {
	if v, ok := g.memo.Get(c.KeyString()); ok {
		return append([]byte{}, v.([]byte)...), nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = g.MaxElapsed

	var data []byte
	err := backoff.RetryNotify(func() error {
		body, err := g.get(ctx, c)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && !transient(se.code) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := VerifyCID(c, body); err != nil {
			return backoff.Permanent(err)
		}
		data = body
		return nil
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.Warn().Err(err).Str("cid", c.String()).Dur("retry-in", d).Msg("gateway fetch failed")
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", c)
	}

	g.memo.Add(c.KeyString(), append([]byte{}, data...))
	log.Debug().Str("cid", c.String()).Int("bytes", len(data)).Msg("report fetched")
	return data, nil
}

func (g *Gateway) get(ctx context.Context, c cid.Cid) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/"+c.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportSize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	return body, nil
}
