// Package ipgeo tags client addresses with a country code from a MaxMind
// database so request logs can show where shoppers come from.
package ipgeo

import (
	"fmt"
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

// Labels returned for addresses that never reach the database.
const (
	Local     = "local"
	Tailscale = "tailscale"
)

// cgnat is the carrier-grade NAT range 100.64.0.0/10, used by Tailscale.
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// Checker resolves IP addresses to ISO 3166-1 alpha-2 country codes.
//
// A nil *Checker is valid and only classifies non-public addresses.
type Checker struct {
	reader *maxminddb.Reader
}

// Open opens an MMDB country or city database.
func Open(path string) (*Checker, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Checker{reader: r}, nil
}

// Close releases the database.
func (c *Checker) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// CountryCode returns the country of ip.
//
// Loopback, private, link-local and unspecified addresses return Local and
// CGNAT addresses return Tailscale. Unparsable input, lookup failures and a
// Checker without database return "".
func (c *Checker) CountryCode(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	if label := classify(addr); label != "" {
		return label
	}
	if c == nil || c.reader == nil {
		return ""
	}
	var rec countryRecord
	if err := c.reader.Lookup(addr).Decode(&rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}

func classify(addr netip.Addr) string {
	switch {
	case addr.IsLoopback(), addr.IsPrivate(), addr.IsUnspecified(), addr.IsLinkLocalUnicast():
		return Local
	case cgnat.Contains(addr):
		return Tailscale
	default:
		return ""
	}
}
