// Package resolver turns hostnames into addresses asynchronously.
// The client polls entries every tick; no call ever blocks.
package resolver

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/jxsl13/protonet/network"
	"github.com/jxsl13/protonet/protocol"
)

const (
	StatusPending   Status = 0
	StatusSucceeded Status = 1
	StatusFailed    Status = 2
)

// Status is the lifecycle state of a resolve entry.
type Status int

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of a successful lookup.
type Result struct {
	Addresses []network.Address
}

// Entry is an immutable snapshot of a lookup. Pending entries are replaced,
// never mutated, so a polled pointer stays safe to read.
type Entry struct {
	Status Status
	Result Result
}

// Resolver is the capability the client drives. Resolve starts exactly one
// lookup per hostname; GetEntry and Update are polled from a single thread.
type Resolver interface {
	Resolve(hostname string)
	GetEntry(hostname string) *Entry
	Update(t protocol.TimeBase)
}

// NetResolver resolves through the net package on background goroutines.
type NetResolver struct {
	resolver *net.Resolver

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewNetResolver creates a resolver backed by the default system resolver.
func NewNetResolver() *NetResolver {
	return &NetResolver{
		resolver: net.DefaultResolver,
		entries:  make(map[string]*Entry),
	}
}

// Resolve starts an asynchronous lookup for hostname, which may carry an
// optional ":port" suffix applied to every resulting address. Starting a
// lookup that is already tracked is a no-op.
func (r *NetResolver) Resolve(hostname string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[hostname]; ok {
		return
	}
	r.entries[hostname] = &Entry{Status: StatusPending}

	go r.lookup(hostname)
}

// GetEntry returns the current snapshot for hostname, nil if Resolve was
// never called for it.
func (r *NetResolver) GetEntry(hostname string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[hostname]
}

// Update ticks the resolver. Lookups complete on their own goroutines, so
// there is nothing to pump.
func (r *NetResolver) Update(t protocol.TimeBase) {}

func (r *NetResolver) lookup(hostname string) {
	host, port := splitHostPort(hostname)

	ips, err := r.resolver.LookupNetIP(context.Background(), "ip", host)
	entry := &Entry{Status: StatusFailed}
	if err == nil && len(ips) > 0 {
		entry.Status = StatusSucceeded
		for _, ip := range ips {
			entry.Result.Addresses = append(entry.Result.Addresses, network.AddressFrom(ip, port))
		}
	}

	r.mu.Lock()
	r.entries[hostname] = entry
	r.mu.Unlock()
}

// splitHostPort splits an optional trailing ":port" off a hostname.
// A missing or unparsable port yields 0.
func splitHostPort(hostname string) (string, uint16) {
	host, portString, err := net.SplitHostPort(hostname)
	if err != nil {
		return hostname, 0
	}
	port, err := strconv.ParseUint(portString, 10, 16)
	if err != nil {
		return host, 0
	}
	return host, uint16(port)
}

// StaticResolver serves lookups from a fixed table; hostnames that are not
// in the table fail. It is handy for tests and offline demos.
type StaticResolver struct {
	mu      sync.Mutex
	table   map[string][]network.Address
	entries map[string]*Entry
}

// NewStaticResolver creates a resolver over a fixed hostname table.
func NewStaticResolver(table map[string][]network.Address) *StaticResolver {
	return &StaticResolver{
		table:   table,
		entries: make(map[string]*Entry),
	}
}

func (r *StaticResolver) Resolve(hostname string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[hostname]; ok {
		return
	}

	host, port := splitHostPort(hostname)
	addresses, ok := r.table[host]
	if !ok {
		r.entries[hostname] = &Entry{Status: StatusFailed}
		return
	}

	entry := &Entry{Status: StatusSucceeded}
	for _, addr := range addresses {
		if port != 0 {
			addr.SetPort(port)
		}
		entry.Result.Addresses = append(entry.Result.Addresses, addr)
	}
	r.entries[hostname] = entry
}

func (r *StaticResolver) GetEntry(hostname string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[hostname]
}

func (r *StaticResolver) Update(t protocol.TimeBase) {}

var (
	_ Resolver = (*NetResolver)(nil)
	_ Resolver = (*StaticResolver)(nil)
)
