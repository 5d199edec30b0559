// Package dns resolves relay hostnames, falling back to public resolvers
// when the system resolver cannot answer.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	systemTimeout   = time.Second
	fallbackTimeout = 2 * time.Second
)

// fallbackServers are raced when the system resolver fails.
var fallbackServers = []string{
	"1.1.1.1",         // Cloudflare
	"1.0.0.1",         // Cloudflare
	"8.8.8.8",         // Google
	"8.8.4.4",         // Google
	"9.9.9.9",         // Quad9
	"149.112.112.112", // Quad9
	"208.67.222.222",  // OpenDNS
	"208.67.220.220",  // OpenDNS
	"2606:4700:4700::1111",
	"2001:4860:4860::8888",
}

var errNoAddress = errors.New("no addresses returned")

// DialContext resolves the host of addr with Lookup and dials the result. It
// fits both http.Transport.DialContext and websocket.Dialer.NetDialContext.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	if net.ParseIP(host) == nil {
		ip, err := Lookup(ctx, host)
		if err != nil {
			return nil, err
		}
		host = ip
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(host, port))
}

// Lookup resolves host to one address, preferring IPv4. The fallback race
// only starts if the system resolver fails, and both steps end with ctx.
func Lookup(ctx context.Context, host string) (string, error) {
	ip, err := resolve(ctx, net.DefaultResolver, host, systemTimeout)
	if err == nil {
		return ip, nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
	}
	return race(ctx, host)
}

func race(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	type answer struct {
		ip  string
		err error
	}
	answers := make(chan answer, len(fallbackServers))
	for _, server := range fallbackServers {
		go func() {
			ip, err := resolve(ctx, resolverAt(server), host, fallbackTimeout)
			answers <- answer{ip: ip, err: err}
		}()
	}

	var errs []error
	for range fallbackServers {
		select {
		case a := <-answers:
			if a.err == nil {
				return a.ip, nil
			}
			errs = append(errs, a.err)
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: %w", host, errors.Join(errs...))
}

func resolve(ctx context.Context, r *net.Resolver, host string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return preferIPv4(addrs)
}

// resolverAt queries one server on port 53.
func resolverAt(server string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
}

func preferIPv4(addrs []string) (string, error) {
	if len(addrs) == 0 {
		return "", errNoAddress
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, nil
		}
	}
	return addrs[0], nil
}
