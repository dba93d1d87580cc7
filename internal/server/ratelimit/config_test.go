package ratelimit

import "testing"

func TestConfig_Match(t *testing.T) {
	cfg := NewConfig(120, 6000)
	defer cfg.Close()

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/api/health", ""},
		{"GET", "/", ""},
		{"GET", "/static/cart.js", ""},
		{"GET", "/api/v1/cart", "read"},
		{"GET", "/api/v1/plans", "read"},
		{"POST", "/api/v1/cart/items", "write"},
		{"PUT", "/api/v1/cart/items/pro", "write"},
		{"DELETE", "/api/v1/cart", "write"},
		{"OPTIONS", "/api/v1/cart", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			tier := cfg.Match(tt.method, tt.path)
			got := ""
			if tier != nil {
				got = tier.Name
			}
			if got != tt.want {
				t.Errorf("Match() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_Disabled(t *testing.T) {
	cfg := NewConfig(0, 60)
	defer cfg.Close()
	if cfg.Write.Limiter != nil {
		t.Error("write tier enabled at rate 0")
	}
	if tier := cfg.Match("POST", "/api/v1/cart/items"); tier != nil {
		t.Errorf("Match() = %q, want nil", tier.Name)
	}
	if tier := cfg.Match("GET", "/api/v1/cart"); tier == nil || tier.Limiter.burst != 10 {
		t.Errorf("read tier = %+v", tier)
	}
	var nilCfg *Config
	if nilCfg.Match("GET", "/api/v1/cart") != nil {
		t.Error("nil Config matched")
	}
}
