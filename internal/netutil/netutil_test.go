package netutil

import (
	"net"
	"testing"
)

func TestRestrictive(t *testing.T) {
	ipnet := func(s string) net.Addr {
		ip, n, err := net.ParseCIDR(s)
		if err != nil {
			t.Fatal(err)
		}
		n.IP = ip
		return n
	}

	cases := []struct {
		name  string
		iface string
		addrs []net.Addr
		want  bool
	}{
		{"plain ethernet", "eth0", []net.Addr{ipnet("192.168.1.20/24")}, false},
		{"wireguard", "wg0", nil, true},
		{"openvpn", "TUN3", nil, true},
		{"warp", "CloudflareWARP", nil, true},
		{"cgnat address", "en0", []net.Addr{ipnet("100.96.1.2/32")}, true},
		{"edge of cgnat", "en0", []net.Addr{ipnet("100.128.0.1/24")}, false},
		{"ip addr", "en1", []net.Addr{&net.IPAddr{IP: net.ParseIP("100.64.0.1")}}, true},
		{"ipv6", "en0", []net.Addr{ipnet("fe80::1/64")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Restrictive(tc.iface, tc.addrs); got != tc.want {
				t.Errorf("Restrictive(%q) = %v, want %v", tc.iface, got, tc.want)
			}
		})
	}
}
