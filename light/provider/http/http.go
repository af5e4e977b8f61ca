package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tonlight/tonlight/light/provider"
	"github.com/tonlight/tonlight/types"
)

const (
	signaturesMethod = "getMasterchainBlockSignatures"
	apiKeyHeader     = "X-API-Key"

	defaultTimeout = 10 * time.Second
	// toncenter answers are small; anything larger is not a signature set.
	maxResponseSize = 4 << 20
)

// http provider fetches block signatures from a toncenter v2 compatible
// JSON API.
type http struct {
	remote *url.URL
	apiKey string
	client *stdhttp.Client
}

var _ provider.SignatureProvider = (*http)(nil)

// Option sets a parameter of the provider.
type Option func(*http)

// APIKey makes the provider send key with every request.
func APIKey(key string) Option {
	return func(p *http) { p.apiKey = key }
}

// Timeout bounds every request. Default: 10s.
func Timeout(d time.Duration) Option {
	return func(p *http) { p.client.Timeout = d }
}

// WithClient makes the provider use client for requests.
func WithClient(client *stdhttp.Client) Option {
	return func(p *http) { p.client = client }
}

// New creates a HTTP provider for the API at remote, such as
// https://toncenter.com/api/v2. If no scheme is provided in the remote URL,
// https will be used by default.
func New(remote string, options ...Option) (provider.SignatureProvider, error) {
	// Ensure URL scheme is set (default HTTPS) when not provided.
	if !strings.Contains(remote, "://") {
		remote = "https://" + remote
	}
	u, err := url.Parse(strings.TrimSuffix(remote, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote %q: %w", remote, err)
	}

	p := &http{
		remote: u,
		client: &stdhttp.Client{Timeout: defaultTimeout},
	}
	for _, o := range options {
		o(p)
	}
	return p, nil
}

func (p *http) String() string {
	return fmt.Sprintf("http{%s}", p.remote)
}

type response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Code   int             `json:"code"`
}

// BlockSignatures calls `/getMasterchainBlockSignatures`.
func (p *http) BlockSignatures(ctx context.Context, seqno uint32) (*types.BlockSignatures, error) {
	u := *p.remote
	u.Path += "/" + signaturesMethod
	u.RawQuery = url.Values{"seqno": {strconv.FormatUint(uint64(seqno), 10)}}.Encode()

	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set(apiKeyHeader, p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Timeout() {
			return nil, provider.ErrNoResponse
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	var res response
	if err := json.Unmarshal(body, &res); err != nil {
		if resp.StatusCode != stdhttp.StatusOK {
			return nil, fmt.Errorf("%s: unexpected status %s", p, resp.Status)
		}
		return nil, provider.ErrBadResponse{Reason: err}
	}
	if !res.OK {
		if resp.StatusCode == stdhttp.StatusNotFound || res.Code == stdhttp.StatusNotFound ||
			strings.Contains(strings.ToLower(res.Error), "not in db") {
			return nil, provider.ErrBlockNotFound
		}
		return nil, fmt.Errorf("%s: error %d: %s", p, res.Code, res.Error)
	}

	bs, err := types.UnmarshalBlockSignatures(res.Result)
	if err != nil {
		return nil, provider.ErrBadResponse{Reason: err}
	}
	if bs.ID.Seqno != seqno {
		return nil, provider.ErrBadResponse{
			Reason: fmt.Errorf("asked for seqno %d, got signatures of %d", seqno, bs.ID.Seqno),
		}
	}
	return bs, nil
}
