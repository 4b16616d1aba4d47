// Package jwks resolves bearer tokens by verifying RS256 JWTs against a
// remote JWKS endpoint.
package jwks

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/clock"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/identity"
)

// Options configures token verification.
type Options struct {
	Issuer   string
	Audience string
	JWKSURL  string

	ClockSkew       time.Duration
	RefreshInterval time.Duration
	HTTPTimeout     time.Duration
}

// Resolver implements identity.Resolver by verifying RS256 JWTs. Keys are
// cached per kid and refreshed periodically or on an unknown kid.
type Resolver struct {
	opts   Options
	client *http.Client
	clk    clock.Clock

	mu          sync.Mutex
	keysByKID   map[string]*rsa.PublicKey
	lastRefresh time.Time
	refreshing  bool
	refreshDone chan struct{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func New(opts Options) *Resolver {
	return NewWithOptions(opts, nil, nil)
}

func NewWithOptions(opts Options, httpClient *http.Client, clk clock.Clock) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.HTTPTimeout}
	}
	if clk == nil {
		clk = realClock{}
	}
	return &Resolver{
		opts:      opts,
		client:    httpClient,
		clk:       clk,
		keysByKID: map[string]*rsa.PublicKey{},
	}
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

type tokenClaims struct {
	Iss   string          `json:"iss"`
	Sub   string          `json:"sub"`
	Aud   json.RawMessage `json:"aud"`
	Exp   *int64          `json:"exp"`
	Nbf   *int64          `json:"nbf"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
}

// Resolve verifies the credential as an RS256 JWT and maps its sub claim to
// the member id. Name and email claims carry over when present; any
// verification failure collapses to identity.ErrUnauthorized.
func (r *Resolver) Resolve(ctx context.Context, credential string) (identity.Identity, error) {
	h, claims, signingInput, sig, err := parseToken(credential)
	if err != nil {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	if h.Alg != "RS256" || h.Kid == "" {
		return identity.Identity{}, identity.ErrUnauthorized
	}

	if err := r.maybeRefresh(ctx, h.Kid); err != nil {
		return identity.Identity{}, identity.ErrUnauthorized
	}

	pub := r.key(h.Kid)
	if pub == nil {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	sum := sha256.Sum256([]byte(signingInput))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], sig); err != nil {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	if err := r.validateClaims(claims); err != nil {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	if claims.Sub == "" {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	return identity.Identity{
		MemberID:    domain.MemberID(claims.Sub),
		DisplayName: claims.Name,
		Email:       claims.Email,
	}, nil
}

func (r *Resolver) validateClaims(c tokenClaims) error {
	now := r.clk.Now()
	skew := r.opts.ClockSkew

	if c.Iss != r.opts.Issuer {
		return errors.New("iss mismatch")
	}
	if !audMatches(c.Aud, r.opts.Audience) {
		return errors.New("aud mismatch")
	}
	if c.Exp == nil {
		return errors.New("missing exp")
	}
	if now.After(time.Unix(*c.Exp, 0).Add(skew)) {
		return errors.New("token expired")
	}
	if c.Nbf != nil && now.Before(time.Unix(*c.Nbf, 0).Add(-skew)) {
		return errors.New("token not yet valid")
	}
	return nil
}

func (r *Resolver) key(kid string) *rsa.PublicKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keysByKID[kid]
}

func (r *Resolver) maybeRefresh(ctx context.Context, kid string) error {
	now := r.clk.Now()

	r.mu.Lock()
	stale := !r.lastRefresh.IsZero() && r.opts.RefreshInterval > 0 && now.Sub(r.lastRefresh) >= r.opts.RefreshInterval
	unknown := r.keysByKID[kid] == nil
	if !stale && !unknown {
		r.mu.Unlock()
		return nil
	}

	// One fetch at a time; late arrivals wait for the in-flight one.
	if r.refreshing {
		done := r.refreshDone
		r.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.refreshing = true
	r.refreshDone = make(chan struct{})
	done := r.refreshDone
	r.mu.Unlock()

	err := r.refresh(ctx)

	r.mu.Lock()
	r.refreshing = false
	close(done)
	r.mu.Unlock()

	return err
}

func (r *Resolver) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	keys, err := parseJWKS(body)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.keysByKID = keys
	r.lastRefresh = r.clk.Now()
	r.mu.Unlock()

	return nil
}

func parseToken(token string) (tokenHeader, tokenClaims, string, []byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return tokenHeader{}, tokenClaims{}, "", nil, errors.New("bad jwt parts")
	}
	headerB, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	claimsB, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	var h tokenHeader
	if err := json.Unmarshal(headerB, &h); err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	var c tokenClaims
	if err := json.Unmarshal(claimsB, &c); err != nil {
		return tokenHeader{}, tokenClaims{}, "", nil, err
	}
	return h, c, parts[0] + "." + parts[1], sig, nil
}

func audMatches(raw json.RawMessage, expected string) bool {
	if len(raw) == 0 {
		return false
	}
	// aud can be a string or an array of strings.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == expected
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, v := range arr {
			if v == expected {
				return true
			}
		}
	}
	return false
}

type keySet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseJWKS(b []byte) (map[string]*rsa.PublicKey, error) {
	var set keySet
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, err
	}
	out := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || k.N == "" || k.E == "" {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		e := new(big.Int).SetBytes(eb).Int64()
		if e <= 0 || e > int64(^uint(0)>>1) {
			return nil, errors.New("invalid jwk exponent")
		}
		out[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nb),
			E: int(e),
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no usable jwks keys")
	}
	return out, nil
}
