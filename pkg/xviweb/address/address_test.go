package address

import "testing"

func TestFromOctetsIPv4String(t *testing.T) {
	a := FromOctets([]byte{192, 168, 1, 20}, IPv4)
	if got, want := a.String(), "192.168.1.20"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if a.Type() != IPv4 {
		t.Errorf("Type() = %v, want IPv4", a.Type())
	}
}

func TestFromOctetsIPv6String(t *testing.T) {
	octets := []byte{
		0x20, 0x01, 0x0d, 0xb8,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x01,
	}
	a := FromOctets(octets, IPv6)
	if got, want := a.String(), "2001:db8:0:0:0:0:0:1"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFromOctetsCopiesInput(t *testing.T) {
	src := []byte{10, 0, 0, 1}
	a := FromOctets(src, IPv4)
	src[0] = 99
	if a.Octets()[0] != 10 {
		t.Errorf("Address retained a reference to caller's slice instead of copying")
	}
}

func TestResolveLoopback(t *testing.T) {
	a, err := Resolve("localhost")
	if err != nil {
		t.Fatalf("Resolve(%q) error: %v", "localhost", err)
	}
	if len(a.Octets()) == 0 {
		t.Errorf("Resolve(%q) returned empty octets", "localhost")
	}
}

func TestResolveUnknownHost(t *testing.T) {
	_, err := Resolve("this-host-should-not-resolve.invalid")
	if err == nil {
		t.Errorf("Resolve of an invalid hostname succeeded, want error")
	}
}
