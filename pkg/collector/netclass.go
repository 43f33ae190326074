package collector

import (
	"fmt"
	"net"
)

// DefaultPrivateRanges are the RFC1918 blocks. They are always internal;
// configured ranges are added to them.
var DefaultPrivateRanges = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// Classifier decides whether a remote address is external to the host's
// private network.
type Classifier struct {
	nets []*net.IPNet
}

func NewClassifier(ranges []string) (*Classifier, error) {
	all := make([]string, 0, len(DefaultPrivateRanges)+len(ranges))
	all = append(all, DefaultPrivateRanges...)
	all = append(all, ranges...)
	c := &Classifier{}
	for _, r := range all {
		_, n, err := net.ParseCIDR(r)
		if err != nil {
			return nil, fmt.Errorf("invalid private range %q: %w", r, err)
		}
		c.nets = append(c.nets, n)
	}
	return c, nil
}

// IsExternal reports whether addr lies outside the configured private
// ranges, loopback, link-local and IPv6 unique-local space. Unparseable
// and unspecified addresses are never external.
func (c *Classifier) IsExternal(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil || ip.IsUnspecified() {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	if ip.To4() == nil && ip.IsPrivate() {
		return false
	}
	for _, n := range c.nets {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}
