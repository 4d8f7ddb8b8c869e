package iceproxy

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// ErrNoTURN is returned by a provider that produced no usable TURN entry.
var ErrNoTURN = errors.New("iceproxy: no turn servers")

// Provider fetches TURN servers with credentials.
type Provider interface {
	Name() string
	TURNServers(ctx context.Context) ([]webrtc.ICEServer, error)
}

// HTTPProvider asks a third-party TURN API for credentials.
type HTTPProvider struct {
	http   *http.Client
	url    string
	apiKey string
}

func NewHTTPProvider(url, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProvider{
		http:   &http.Client{Timeout: timeout},
		url:    url,
		apiKey: apiKey,
	}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) TURNServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, fmt.Errorf("turn api: %s: %s", resp.Status, string(body))
	}
	servers, err := parseServers(body)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, ErrNoTURN
	}
	return servers, nil
}

// RESTProvider mints coturn-compatible TURN REST credentials locally:
//
//	username   = <unix expiry>:<prefix>:<random>
//	credential = base64(hmac_sha1(secret, username))
type RESTProvider struct {
	urls   []string
	secret []byte
	ttl    time.Duration
	prefix string
	now    func() time.Time
	random func() string
}

func NewRESTProvider(urls []string, secret string, ttl time.Duration, prefix string) (*RESTProvider, error) {
	if secret == "" {
		return nil, errors.New("iceproxy: shared secret is required")
	}
	if len(urls) == 0 {
		return nil, errors.New("iceproxy: turn urls are required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if prefix == "" {
		prefix = "handoff"
	}
	if strings.Contains(prefix, ":") {
		return nil, errors.New("iceproxy: username prefix must not contain ':'")
	}
	return &RESTProvider{
		urls:   urls,
		secret: []byte(secret),
		ttl:    ttl,
		prefix: prefix,
		now:    time.Now,
		random: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}, nil
}

func (p *RESTProvider) Name() string { return "turnrest" }

func (p *RESTProvider) TURNServers(context.Context) ([]webrtc.ICEServer, error) {
	expiry := p.now().UTC().Add(p.ttl).Unix()
	username := fmt.Sprintf("%d:%s:%s", expiry, p.prefix, p.random())
	srv := webrtc.ICEServer{
		URLs:     append([]string(nil), p.urls...),
		Username: username,
	}
	srv.Credential = sign(p.secret, username)
	if err := validateServer(srv); err != nil {
		return nil, err
	}
	return []webrtc.ICEServer{srv}, nil
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
