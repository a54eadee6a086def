// Package address implements the engine's IPv4/IPv6 address value
// type, grounded on the original xviweb Address.cpp/Address.h: an
// octet buffer (4 bytes for IPv4, 16 for IPv6) tagged with a type, resolved from a
// hostname by preferring AAAA and falling back to A (the Go
// equivalent of the original's gethostbyname2/gethostbyname pair).
package address

import (
	"fmt"
	"net"
	"strings"
)

// Type distinguishes the octet layout stored in an Address.
type Type int

const (
	IPv4 Type = iota
	IPv6
)

// Address is an immutable IPv4 or IPv6 address value. The octet
// slice length always matches Type (4 bytes for IPv4, 16 for IPv6).
type Address struct {
	typ    Type
	octets []byte
}

// FromOctets builds an Address directly from a raw octet slice, as
// used when turning an accept()ed peer address into a value (the
// original's Address(const uint8_t *address, AddressType type)).
// The slice is copied so the caller's buffer can be reused.
func FromOctets(octets []byte, typ Type) Address {
	length := 4
	if typ == IPv6 {
		length = 16
	}
	buf := make([]byte, length)
	copy(buf, octets)
	return Address{typ: typ, octets: buf}
}

// Resolve looks up a hostname, preferring an IPv6 result and falling
// back to IPv4, mirroring the original constructor's
// gethostbyname2(AF_INET6) / gethostbyname() fallback. A literal IP
// string resolves to itself.
func Resolve(hostname string) (Address, error) {
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return Address{}, fmt.Errorf("address: resolve %q: %w", hostname, err)
	}

	var v4 net.IP
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			if v4 == nil {
				v4 = ip4
			}
			continue
		}
		// first non-v4 result is a genuine IPv6 address
		return FromOctets(ip.To16(), IPv6), nil
	}
	if v4 != nil {
		return FromOctets(v4, IPv4), nil
	}
	return Address{}, fmt.Errorf("address: resolve %q: no addresses found", hostname)
}

// Type returns whether the address is IPv4 or IPv6.
func (a Address) Type() Type {
	return a.typ
}

// Octets returns the raw address bytes (4 or 16 long).
func (a Address) Octets() []byte {
	return a.octets
}

// String renders dotted-quad for IPv4 or colon-separated 16-bit hex
// groups for IPv6, matching Address::toString in the original.
func (a Address) String() string {
	if a.typ == IPv4 {
		var b strings.Builder
		for i, o := range a.octets {
			if i > 0 {
				b.WriteByte('.')
			}
			fmt.Fprintf(&b, "%d", o)
		}
		return b.String()
	}

	var b strings.Builder
	for i := 0; i < len(a.octets); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		n := uint16(a.octets[i])<<8 | uint16(a.octets[i+1])
		fmt.Fprintf(&b, "%x", n)
	}
	return b.String()
}
