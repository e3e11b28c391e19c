package checks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailguard/internal/validation/dns"
	"mailguard/internal/validation/models"
)

const (
	defaultMXCacheTimeout = 100 * time.Millisecond
	defaultMXDNSTimeout   = 600 * time.Millisecond
)

// MXResolver looks up mail exchangers.
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) ([]dns.MX, error)
}

// TXTResolver looks up TXT records.
type TXTResolver interface {
	LookupTXT(ctx context.Context, domain string) ([]string, error)
}

// MX fails domains that cannot receive mail. The shared cache is consulted
// first under its own short bound; a slow or broken cache falls through to DNS.
type MX struct {
	Resolver     MXResolver
	Cache        dns.MXCache
	CacheTimeout time.Duration
	DNSTimeout   time.Duration
}

func (MX) Name() models.CheckName { return models.CheckMX }

func (c MX) Run(ctx context.Context, in Input) (Outcome, error) {
	if in.Domain == "" {
		return fail(models.SignalInvalidMX), nil
	}
	if hasMX, found := c.cached(ctx, in.Domain); found {
		out := verdict(hasMX, models.SignalInvalidMX)
		out.Metadata = map[string]any{"cached": true}
		return out, nil
	}

	dctx, cancel := context.WithTimeout(ctx, orDefault(c.DNSTimeout, defaultMXDNSTimeout))
	defer cancel()
	records, err := c.Resolver.LookupMX(dctx, in.Domain)
	if err != nil {
		return Outcome{}, err
	}
	hasMX := acceptsMail(records)
	c.store(ctx, in.Domain, hasMX)

	out := verdict(hasMX, models.SignalInvalidMX)
	out.Metadata = map[string]any{"cached": false, "records": len(records)}
	return out, nil
}

func (c MX) cached(ctx context.Context, domain string) (hasMX, found bool) {
	if c.Cache == nil {
		return false, false
	}
	cctx, cancel := context.WithTimeout(ctx, orDefault(c.CacheTimeout, defaultMXCacheTimeout))
	defer cancel()
	hasMX, found, err := c.Cache.Get(cctx, domain)
	if err != nil {
		return false, false
	}
	return hasMX, found
}

func (c MX) store(ctx context.Context, domain string, hasMX bool) {
	if c.Cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, orDefault(c.CacheTimeout, defaultMXCacheTimeout))
	defer cancel()
	_ = c.Cache.Set(cctx, domain, hasMX)
}

// acceptsMail is false for no records and for a lone null MX (RFC 7505).
func acceptsMail(records []dns.MX) bool {
	for _, r := range records {
		if r.Host != "." && r.Host != "" {
			return true
		}
	}
	return false
}

// SPFHeuristic approximates mailbox deliverability from DNS alone. A domain
// without any v=spf1 TXT record fails; everything else, including lookup
// errors, is left to the caller to treat as unknown.
type SPFHeuristic struct {
	Resolver TXTResolver
}

// Probe reports whether address's domain publishes SPF.
func (h SPFHeuristic) Probe(ctx context.Context, address string) (bool, error) {
	domain := address
	if i := strings.LastIndexByte(address, '@'); i >= 0 {
		domain = address[i+1:]
	}
	if domain == "" {
		return false, nil
	}
	records, err := h.Resolver.LookupTXT(ctx, domain)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r == "v=spf1" || strings.HasPrefix(strings.ToLower(r), "v=spf1 ") {
			return true, nil
		}
	}
	return false, nil
}

// SMTP runs the SPF heuristic against the address.
type SMTP struct {
	Heuristic SPFHeuristic
}

func (SMTP) Name() models.CheckName { return models.CheckSMTP }

func (c SMTP) Run(ctx context.Context, in Input) (Outcome, error) {
	ok, err := c.Heuristic.Probe(ctx, in.Email)
	if err != nil {
		return Outcome{}, err
	}
	return verdict(ok, models.SignalSMTPFail), nil
}

// Catchall probes a random mailbox at the same domain. A domain that looks
// deliverable for an address nobody registered accepts everything.
type Catchall struct {
	Heuristic SPFHeuristic
}

func (Catchall) Name() models.CheckName { return models.CheckCatchall }

func (c Catchall) Run(ctx context.Context, in Input) (Outcome, error) {
	if in.Domain == "" {
		return pass(), nil
	}
	probe := "mg-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16] + "@" + in.Domain
	accepted, err := c.Heuristic.Probe(ctx, probe)
	if err != nil {
		return Outcome{}, err
	}
	return verdict(!accepted, models.SignalCatchallDomain), nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
