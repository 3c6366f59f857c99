// Package ipecho resolves the caller's current public IPv4 address.
package ipecho

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

const (
	// maxBodyBytes bounds how much of an echo response is read
	maxBodyBytes = 256

	defaultHTTPTimeout = 10 * time.Second
)

// ErrNotIPv4 is returned when the resolved value is not a usable IPv4 address
var ErrNotIPv4 = errors.New("not an IPv4 address")

// Resolver looks up the caller's public address
type Resolver interface {
	Lookup(ctx context.Context) (netip.Addr, error)
}

// HTTPResolver asks a plain-text address echo service such as checkip.amazonaws.com
type HTTPResolver struct {
	URL    string
	Client *http.Client
}

// NewHTTPResolver creates an HTTPResolver for url with a bounded client timeout
func NewHTTPResolver(url string) *HTTPResolver {
	return &HTTPResolver{
		URL:    url,
		Client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Lookup issues one GET to the echo service. There is no retry.
func (r *HTTPResolver) Lookup(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error building echo request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error querying %s: %w", r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, fmt.Errorf("echo service %s returned %s", r.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error reading echo response: %w", err)
	}

	return ParseIPv4(string(body))
}

// Static always resolves to the same address
type Static netip.Addr

// Lookup implements Resolver.
func (s Static) Lookup(ctx context.Context) (netip.Addr, error) {
	addr := netip.Addr(s)
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("static address %q: %w", addr, ErrNotIPv4)
	}
	return addr, nil
}

// ParseIPv4 parses an echo response, tolerating surrounding whitespace
func ParseIPv4(raw string) (netip.Addr, error) {
	value := strings.TrimSpace(raw)
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolved value %q: %w", value, ErrNotIPv4)
	}

	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("resolved value %q: %w", value, ErrNotIPv4)
	}
	return addr, nil
}

// HostCIDR renders addr as a single-host CIDR block, e.g. 203.0.113.7/32
func HostCIDR(addr netip.Addr) string {
	return netip.PrefixFrom(addr, addr.BitLen()).String()
}
