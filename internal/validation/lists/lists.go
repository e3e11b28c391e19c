// Package lists holds the reference data behind the disposable, roleEmail
// and ip checks, and keeps it fresh while the process runs.
package lists

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/netip"
	"strings"

	"gopkg.in/yaml.v3"

	pstrings "mailguard/pkg/platform/strings"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// File is the on-disk YAML shape.
type File struct {
	Disposable []string `yaml:"disposable"`
	Roles      []string `yaml:"roles"`
	VPNRanges  []string `yaml:"vpn_ranges"`
	VPNASNs    []int    `yaml:"vpn_asns"`
	Fraud      []string `yaml:"fraud"`
}

// Lists is an immutable, indexed snapshot of a File.
type Lists struct {
	disposable map[string]struct{}
	roles      map[string]struct{}
	vpnRanges  []netip.Prefix
	vpnASNs    map[int]struct{}
	fraud      []netip.Prefix
}

// Defaults returns the lists compiled into the binary.
func Defaults() *Lists {
	l, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("lists: embedded defaults: %v", err))
	}
	return l
}

// Parse decodes and indexes a YAML document. Unknown keys are rejected so a
// typo in an operator file surfaces at load time.
func Parse(data []byte) (*Lists, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode lists: %w", err)
	}
	return Compile(f)
}

// Compile indexes f. Fraud entries may be single addresses or CIDRs.
func Compile(f File) (*Lists, error) {
	l := &Lists{
		disposable: toSet(pstrings.NormalizeDomains(f.Disposable)),
		roles:      toSet(pstrings.DedupeAndTrimLower(f.Roles)),
		vpnASNs:    make(map[int]struct{}, len(f.VPNASNs)),
	}
	for _, asn := range f.VPNASNs {
		l.vpnASNs[asn] = struct{}{}
	}
	var err error
	if l.vpnRanges, err = parsePrefixes(f.VPNRanges); err != nil {
		return nil, fmt.Errorf("vpn_ranges: %w", err)
	}
	if l.fraud, err = parsePrefixes(f.Fraud); err != nil {
		return nil, fmt.Errorf("fraud: %w", err)
	}
	return l, nil
}

// IsDisposable reports whether domain or any parent domain is listed, so
// "x.mailinator.com" matches "mailinator.com".
func (l *Lists) IsDisposable(domain string) bool {
	for _, d := range DomainSuffixes(domain) {
		if _, ok := l.disposable[d]; ok {
			return true
		}
	}
	return false
}

// IsRole reports whether local (ignoring any +tag) is a role mailbox.
func (l *Lists) IsRole(local string) bool {
	local = strings.ToLower(local)
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	_, ok := l.roles[local]
	return ok
}

// IsVPN reports whether ip falls in a VPN range or asn is a known VPN network.
func (l *Lists) IsVPN(ip netip.Addr, asn int) bool {
	if _, ok := l.vpnASNs[asn]; ok && asn != 0 {
		return true
	}
	return ip.IsValid() && contains(l.vpnRanges, ip)
}

// IsFraud reports whether ip is on the fraud list.
func (l *Lists) IsFraud(ip netip.Addr) bool {
	return ip.IsValid() && contains(l.fraud, ip)
}

// Disposable returns the indexed disposable domains, for seeding shared stores.
func (l *Lists) Disposable() []string {
	out := make([]string, 0, len(l.disposable))
	for d := range l.disposable {
		out = append(out, d)
	}
	return out
}

// DomainSuffixes lists domain and each parent that still has a dot:
// "a.b.example.com" yields a.b.example.com, b.example.com, example.com.
func DomainSuffixes(domain string) []string {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	if domain == "" {
		return nil
	}
	out := []string{domain}
	for {
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			break
		}
		domain = domain[i+1:]
		if !strings.Contains(domain, ".") {
			break
		}
		out = append(out, domain)
	}
	return out
}

func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range pstrings.DedupeAndTrimLower(entries) {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func contains(prefixes []netip.Prefix, ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range prefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
