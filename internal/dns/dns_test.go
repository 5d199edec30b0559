package dns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestDialContext_IPLiteral(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
		close(accepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	conn.Close()
	<-accepted
}

func TestDialContext_RejectsAddressWithoutPort(t *testing.T) {
	if _, err := DialContext(context.Background(), "tcp", "127.0.0.1"); err == nil {
		t.Fatalf("DialContext succeeded without a port")
	}
}

func TestLookup_Localhost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ip, err := Lookup(ctx, "localhost")
	if err != nil {
		t.Skipf("no local resolver: %v", err)
	}
	if parsed := net.ParseIP(ip); parsed == nil || !parsed.IsLoopback() {
		t.Fatalf("Lookup(localhost)=%q, want a loopback address", ip)
	}
}

func TestLookup_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := Lookup(ctx, "duobooth.invalid")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Lookup err=%v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Lookup took %v after cancel", elapsed)
	}
}

func TestDialContext_DeadlineBoundsLookup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := DialContext(ctx, "tcp", "duobooth.invalid:443"); err == nil {
		t.Fatalf("DialContext resolved a reserved name")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("DialContext took %v with a 50ms deadline", elapsed)
	}
}

func TestPreferIPv4(t *testing.T) {
	tests := []struct {
		addrs []string
		want  string
		err   bool
	}{
		{[]string{"2001:db8::1", "192.0.2.1"}, "192.0.2.1", false},
		{[]string{"2001:db8::1"}, "2001:db8::1", false},
		{nil, "", true},
	}
	for _, tt := range tests {
		got, err := preferIPv4(tt.addrs)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("preferIPv4(%v)=%q,%v want %q", tt.addrs, got, err, tt.want)
		}
	}
}
