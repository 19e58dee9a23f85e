// Package discovery advertises the status page on the local network so the
// device can be found by its hostname.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceType is the DNS-SD service type of the status page.
	ServiceType = "_http._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
)

// Info describes the advertised service.
type Info struct {
	Hostname string
	HTTPAddr string // listen address of the status server, e.g. ":80"
	Broker   string
	TTL      time.Duration
}

// Advertiser owns at most one registered service.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an idle Advertiser.
func NewAdvertiser() *Advertiser {
	return &Advertiser{}
}

// Advertise registers the service, replacing any previous registration.
func (a *Advertiser) Advertise(info Info) error {
	port, err := Port(info.HTTPAddr)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if info.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(info.TTL.Seconds())))
	}

	server, err := zeroconf.Register(info.Hostname, ServiceType, Domain, port, TXT(info), nil, opts...)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement. Safe to call when idle.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// TXT builds the TXT records for the service.
func TXT(info Info) []string {
	txt := []string{"path=/", "json=/index.json"}
	if info.Broker != "" {
		txt = append(txt, "broker="+info.Broker)
	}
	return txt
}

// Port extracts the TCP port from a listen address such as ":80" or
// "0.0.0.0:8080".
func Port(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse http address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("http address %q has no usable port", addr)
	}
	return port, nil
}
