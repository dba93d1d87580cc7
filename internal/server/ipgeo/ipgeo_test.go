package ipgeo

import (
	"path/filepath"
	"testing"
)

func TestCountryCode(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"127.0.0.1", Local},
		{"::1", Local},
		{"10.0.0.1", Local},
		{"192.168.1.1", Local},
		{"172.16.0.1", Local},
		{"0.0.0.0", Local},
		{"169.254.1.1", Local},
		{"fe80::1", Local},
		{"::ffff:10.1.2.3", Local},
		{"100.64.0.1", Tailscale},
		{"100.127.255.254", Tailscale},
		{"100.128.0.0", ""},
		{"8.8.8.8", ""},
		{"not an ip", ""},
		{"", ""},
	}
	// Public addresses need a database; without one they map to "".
	var nilChecker *Checker
	empty := &Checker{}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := nilChecker.CountryCode(tt.ip); got != tt.want {
				t.Errorf("nil.CountryCode(%q) = %q, want %q", tt.ip, got, tt.want)
			}
			if got := empty.CountryCode(tt.ip); got != tt.want {
				t.Errorf("CountryCode(%q) = %q, want %q", tt.ip, got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Error("Open() of a missing file succeeded")
	}
	var c *Checker
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() = %v", err)
	}
}
