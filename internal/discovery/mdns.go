// Package discovery advertises the status page on the local network via mDNS,
// so the box can be found as "<name>._http._tcp.local." without knowing its IP.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"sync"

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
	Instance string // e.g. "amperage-follower"
	Addr     string // HTTP listen address, e.g. ":80"
	BootID   string
}

type server interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Advertiser owns the mDNS registration.
type Advertiser struct {
	mu       sync.Mutex
	register registerFunc
	srv      server
}

// NewAdvertiser creates an advertiser backed by zeroconf.
func NewAdvertiser() *Advertiser {
	return &Advertiser{register: zeroconfRegister}
}

// Start registers the service, replacing any previous registration.
func (a *Advertiser) Start(info Info) error {
	port, err := Port(info.Addr)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.srv != nil {
		a.srv.Shutdown()
		a.srv = nil
	}

	txt := []string{"path=/", "json=/index.json"}
	if info.BootID != "" {
		txt = append(txt, "boot_id="+info.BootID)
	}

	// nil interfaces means all multicast-capable interfaces
	srv, err := a.register(info.Instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}
	a.srv = srv
	return nil
}

// Stop withdraws the registration. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.srv != nil {
		a.srv.Shutdown()
		a.srv = nil
	}
}

// Port extracts the TCP port from a listen address such as ":80" or "0.0.0.0:8080".
func Port(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse http address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("parse http address %q: invalid port", addr)
	}
	return port, nil
}
