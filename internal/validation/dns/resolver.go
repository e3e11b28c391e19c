// Package dns answers the MX and TXT questions the deliverability checks ask.
package dns

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"golang.org/x/sync/singleflight"
)

// ErrLookupFailed reports that no server gave a usable answer. Callers treat it
// as "unknown", never as "absent".
var ErrLookupFailed = errors.New("dns lookup failed")

// Resolver queries a fixed list of recursive servers in order. Identical
// concurrent questions share one exchange.
//
// A name that does not exist, or has no records of the asked type, yields an
// empty answer with a nil error. Only transport failures and server errors
// (SERVFAIL, REFUSED, ...) return an error.
type Resolver struct {
	client  *mdns.Client
	servers []string
	group   singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNetwork selects "udp" (default) or "tcp".
func WithNetwork(network string) Option {
	return func(r *Resolver) {
		r.client.Net = network
	}
}

// WithExchangeTimeout bounds a single exchange with one server.
func WithExchangeTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

// NewResolver creates a resolver for servers given as host:port.
func NewResolver(servers []string, opts ...Option) *Resolver {
	r := &Resolver{
		client:  &mdns.Client{Net: "udp", Timeout: 500 * time.Millisecond},
		servers: servers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MX is one mail exchanger.
type MX struct {
	Host string
	Pref uint16
}

// LookupMX returns domain's mail exchangers sorted by preference. A null MX
// ("." per RFC 7505) is returned as-is so callers can treat it as "no mail".
func (r *Resolver) LookupMX(ctx context.Context, domain string) ([]MX, error) {
	answer, err := r.query(ctx, domain, mdns.TypeMX)
	if err != nil {
		return nil, err
	}
	var out []MX
	for _, rr := range answer {
		if mx, ok := rr.(*mdns.MX); ok {
			out = append(out, MX{Host: mx.Mx, Pref: mx.Preference})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pref < out[j].Pref })
	return out, nil
}

// LookupTXT returns domain's TXT records with each record's strings joined.
func (r *Resolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	answer, err := r.query(ctx, domain, mdns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rr := range answer {
		if txt, ok := rr.(*mdns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, nil
}

func (r *Resolver) query(ctx context.Context, domain string, qtype uint16) ([]mdns.RR, error) {
	name := mdns.Fqdn(strings.ToLower(domain))
	key := mdns.TypeToString[qtype] + " " + name

	ch := r.group.DoChan(key, func() (any, error) {
		// The shared exchange must not die with the first caller's context.
		return r.exchange(context.WithoutCancel(ctx), name, qtype)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]mdns.RR), nil
	}
}

func (r *Resolver) exchange(ctx context.Context, name string, qtype uint16) ([]mdns.RR, error) {
	if len(r.servers) == 0 {
		return nil, fmt.Errorf("%w: no servers configured", ErrLookupFailed)
	}
	msg := new(mdns.Msg)
	msg.SetQuestion(name, qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		switch in.Rcode {
		case mdns.RcodeSuccess:
			return in.Answer, nil
		case mdns.RcodeNameError:
			return nil, nil
		default:
			lastErr = fmt.Errorf("%s from %s", mdns.RcodeToString[in.Rcode], server)
		}
	}
	return nil, fmt.Errorf("%w: %s %s: %v", ErrLookupFailed, mdns.TypeToString[qtype], name, lastErr)
}
