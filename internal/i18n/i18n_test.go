package i18n

import "testing"

func TestParseLocale(t *testing.T) {
	tests := []struct {
		in   string
		want Locale
	}{
		{"es", LocaleES},
		{"es-CL", LocaleES},
		{"en", LocaleEN},
		{"en-US", LocaleEN},
		{"fr-CA", LocaleFR},
		{"de", LocaleDE},
		{"ja", DefaultLocale},
		{"", DefaultLocale},
		{"not a tag!", DefaultLocale},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLocale(tt.in); got != tt.want {
				t.Errorf("ParseLocale(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		locale Locale
		v      int64
		want   string
	}{
		{LocaleES, 0, "$0"},
		{LocaleES, 20000, "$20.000"},
		{LocaleES, 1234567, "$1.234.567"},
		{LocaleDE, 20000, "$20.000"},
		{LocaleEN, 20000, "$20,000"},
		{LocaleEN, 1234567, "$1,234,567"},
		{Locale("xx"), 20000, "$20.000"},
	}
	for _, tt := range tests {
		t.Run(string(tt.locale), func(t *testing.T) {
			if got := tt.locale.Money(tt.v); got != tt.want {
				t.Errorf("Money(%d) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestAdded(t *testing.T) {
	if got := LocaleES.Added("Plan Pro"); got != "Plan Pro agregado al carrito" {
		t.Errorf("Added() = %q", got)
	}
	if got := LocaleEN.Added("Plan Pro"); got != "Plan Pro added to cart" {
		t.Errorf("Added() = %q", got)
	}
}

func TestTexts(t *testing.T) {
	for l := range texts {
		tx := l.Texts()
		if tx.AddedFormat == "" || tx.EmptyCart == "" || tx.Total == "" {
			t.Errorf("%s: incomplete texts %+v", l, tx)
		}
		if _, ok := tags[l]; !ok {
			t.Errorf("%s: missing language tag", l)
		}
	}
	if got := Locale("zz").Texts().EmptyCart; got != "Tu carrito está vacío" {
		t.Errorf("fallback EmptyCart = %q", got)
	}
}
