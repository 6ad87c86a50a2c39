package detector

import (
	"fmt"
	"net"
	"strconv"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"
)

// dialTimeout bounds the fallback reachability probe.
const dialTimeout = 250 * time.Millisecond

// ListenerProbe checks whether a bind address has an active listener and,
// where the OS exposes it, which process owns it. It implements the
// supervisor's PortProbe capability.
type ListenerProbe struct{}

// Listening reports whether addr (host:port) is bound by a listening TCP
// socket. ownerPID is the owning process id when attributable, 0 when the
// connection table does not expose it. When the table cannot be read at all
// (insufficient privileges on some platforms) it falls back to a TCP dial,
// which can confirm a listener but never attribute it.
func (ListenerProbe) Listening(addr string) (bool, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return false, 0, fmt.Errorf("invalid bind address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return false, 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}

	conns, err := gopsnet.Connections("tcp")
	if err != nil {
		return dialProbe(addr)
	}
	want := resolveHost(host)
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) {
			continue
		}
		if !want.matches(c.Laddr.IP) {
			continue
		}
		return true, int(c.Pid), nil
	}
	return false, 0, nil
}

// hostSet is the resolved form of the configured bind host. The connection
// table carries numeric addresses, so a hostname bind like "localhost" has
// to be resolved once before matching.
type hostSet struct {
	raw      string
	wildcard bool
	ips      []net.IP
}

func resolveHost(host string) hostSet {
	hs := hostSet{raw: host}
	if isWildcard(host) {
		hs.wildcard = true
		return hs
	}
	if ip := net.ParseIP(host); ip != nil {
		hs.ips = []net.IP{ip}
		return hs
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return hs
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil {
			hs.ips = append(hs.ips, ip)
		}
	}
	return hs
}

// matches reports whether a listener bound to got serves the configured
// host. Wildcards on either side match: a server on 0.0.0.0/:: serves any
// configured host, and a wildcard configuration accepts any listener on the
// port.
func (hs hostSet) matches(got string) bool {
	if hs.raw == got || hs.wildcard || isWildcard(got) {
		return true
	}
	gip := net.ParseIP(got)
	if gip == nil {
		return false
	}
	for _, ip := range hs.ips {
		if gip.Equal(ip) {
			return true
		}
	}
	return false
}

func isWildcard(h string) bool {
	switch h {
	case "", "0.0.0.0", "::", "*":
		return true
	}
	return false
}

func dialProbe(addr string) (bool, int, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return false, 0, nil
	}
	_ = conn.Close()
	return true, 0, nil
}
