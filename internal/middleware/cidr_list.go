package middleware

import (
	"net"
)

// CIDRList matches remote addresses against a set of networks
type CIDRList struct {
	networks []*net.IPNet
}

func NewCIDRList(cidrs []string) (*CIDRList, error) {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, err
		}
		networks = append(networks, ipNet)
	}
	return &CIDRList{networks: networks}, nil
}

// Len returns the number of configured networks
func (l *CIDRList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.networks)
}

// Contains reports whether addr (host or host:port) falls in one of the
// networks. An empty list contains nothing.
func (l *CIDRList) Contains(addr string) bool {
	if l.Len() == 0 {
		return false
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// Fallback: maybe it's already a raw IP (no port)
		host = addr
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, network := range l.networks {
		if network.Contains(ip) {
			return true
		}
	}

	return false
}
