package models

import (
	"fmt"
	"maps"

	dErrors "mailguard/pkg/domain-errors"
)

// CheckName identifies one check primitive.
type CheckName string

const (
	CheckSyntax     CheckName = "syntax"
	CheckAlias      CheckName = "alias"
	CheckRoleEmail  CheckName = "roleEmail"
	CheckDisposable CheckName = "disposable"
	CheckMX         CheckName = "mx"
	CheckSMTP       CheckName = "smtp"
	CheckCatchall   CheckName = "catchall"
	CheckIP         CheckName = "ip"
	CheckDevice     CheckName = "device"
)

// AllChecks lists every check in execution and signal order.
var AllChecks = []CheckName{
	CheckSyntax,
	CheckAlias,
	CheckRoleEmail,
	CheckDisposable,
	CheckMX,
	CheckSMTP,
	CheckCatchall,
	CheckIP,
	CheckDevice,
}

// ParseCheckName validates a check name from external input.
func ParseCheckName(s string) (CheckName, error) {
	for _, c := range AllChecks {
		if string(c) == s {
			return c, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown validation %q", s))
}

// FailedTag is the error tag recorded when a check fails open.
func (c CheckName) FailedTag() string {
	return string(c) + "_check_failed"
}

// Toggles maps checks to enabled flags. Missing entries are disabled.
type Toggles map[CheckName]bool

// DefaultToggles enables every check except the DNS-heavy smtp and catchall.
func DefaultToggles() Toggles {
	return Toggles{
		CheckSyntax:     true,
		CheckAlias:      true,
		CheckRoleEmail:  true,
		CheckDisposable: true,
		CheckMX:         true,
		CheckSMTP:       false,
		CheckCatchall:   false,
		CheckIP:         true,
		CheckDevice:     true,
	}
}

// Enabled reports whether c is switched on.
func (t Toggles) Enabled(c CheckName) bool {
	return t[c]
}

// MergeToggles layers toggle sets; later layers win per key.
// Typical use: MergeToggles(DefaultToggles(), tenant, request).
func MergeToggles(layers ...Toggles) Toggles {
	out := make(Toggles, len(AllChecks))
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// ParseToggles converts a name→bool map from a request or config file.
func ParseToggles(raw map[string]bool) (Toggles, error) {
	out := make(Toggles, len(raw))
	for k, v := range raw {
		c, err := ParseCheckName(k)
		if err != nil {
			return nil, err
		}
		out[c] = v
	}
	return out, nil
}
