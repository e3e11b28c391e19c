package orchestrator

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mailguard/internal/validation/checks"
	"mailguard/internal/validation/dns"
	"mailguard/internal/validation/lists"
	"mailguard/internal/validation/models"
)

// stubCheck returns a fixed outcome after an optional delay.
type stubCheck struct {
	name  models.CheckName
	out   checks.Outcome
	err   error
	delay time.Duration
	panic bool
	block chan struct{}
	seen  *checks.Input
}

func (s *stubCheck) Name() models.CheckName { return s.name }

func (s *stubCheck) Run(_ context.Context, in checks.Input) (checks.Outcome, error) {
	if s.seen != nil {
		*s.seen = in
	}
	if s.block != nil {
		<-s.block
	}
	if s.panic {
		panic("boom")
	}
	time.Sleep(s.delay)
	return s.out, s.err
}

func failing(name models.CheckName, delay time.Duration, signals ...models.Signal) *stubCheck {
	return &stubCheck{name: name, delay: delay, out: checks.Outcome{Pass: false, Signals: signals}}
}

func passing(name models.CheckName) *stubCheck {
	return &stubCheck{name: name, out: checks.Outcome{Pass: true}}
}

func allOn() models.Toggles {
	t := models.Toggles{}
	for _, c := range models.AllChecks {
		t[c] = true
	}
	return t
}

type OrchestratorSuite struct {
	suite.Suite
	ctx context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *OrchestratorSuite) TestSignalsFollowCheckOrder() {
	o := New([]checks.Check{
		failing(models.CheckIP, 0, models.SignalVPNDetected),
		failing(models.CheckDisposable, 30*time.Millisecond, models.SignalDisposableEmail),
		failing(models.CheckMX, 10*time.Millisecond, models.SignalInvalidMX),
		failing(models.CheckSyntax, 0, models.SignalInvalidSyntax),
		failing(models.CheckAlias, 0, models.SignalAliasPattern),
	})

	res := o.Run(s.ctx, Request{
		TenantID: "acme",
		Email:    "x+y@example.com",
		Toggles:  allOn(),
		IP:       netip.MustParseAddr("192.0.2.1"),
	})

	s.Equal([]models.Signal{
		models.SignalInvalidSyntax,
		models.SignalAliasPattern,
		models.SignalDisposableEmail,
		models.SignalInvalidMX,
		models.SignalVPNDetected,
	}, res.Signals)
	s.Len(res.Checks, 5, "syntax failure does not skip the rest")
}

func (s *OrchestratorSuite) TestFailOpen() {
	release := make(chan struct{})
	s.T().Cleanup(func() { close(release) })

	o := New([]checks.Check{
		&stubCheck{name: models.CheckMX, err: dns.ErrLookupFailed},
		&stubCheck{name: models.CheckSMTP, panic: true},
		&stubCheck{name: models.CheckDisposable, block: release},
		passing(models.CheckCatchall),
	}, WithBound(models.CheckDisposable, 20*time.Millisecond))

	start := time.Now()
	res := o.Run(s.ctx, Request{TenantID: "acme", Email: "jane@example.com", Toggles: allOn()})
	s.Less(time.Since(start), time.Second, "blocked check does not hold the request")

	for _, name := range []models.CheckName{models.CheckMX, models.CheckSMTP, models.CheckDisposable} {
		got := res.Checks[name]
		s.True(got.Pass, name)
		s.Equal(name.FailedTag(), got.Error, name)
	}
	s.Equal(models.CheckResult{Pass: true, LatencyMs: res.Checks[models.CheckCatchall].LatencyMs}, res.Checks[models.CheckCatchall])
	s.Empty(res.Signals)
}

func (s *OrchestratorSuite) TestConditionalChecks() {
	ip := passing(models.CheckIP)
	device := passing(models.CheckDevice)
	o := New([]checks.Check{ip, device, passing(models.CheckSyntax), passing(models.CheckSMTP)})

	toggles := allOn()
	toggles[models.CheckSMTP] = false
	res := o.Run(s.ctx, Request{TenantID: "acme", Email: "jane@example.com", Toggles: toggles})
	s.NotContains(res.Checks, models.CheckIP, "no ip given")
	s.NotContains(res.Checks, models.CheckDevice, "no fingerprint given")
	s.NotContains(res.Checks, models.CheckSMTP, "toggled off")
	s.Contains(res.Checks, models.CheckSyntax)

	res = o.Run(s.ctx, Request{
		TenantID:        "acme",
		Email:           "jane@example.com",
		Toggles:         toggles,
		IP:              netip.MustParseAddr("192.0.2.1"),
		FingerprintHash: "0123456789abcdef0123456789abcdef",
	})
	s.Contains(res.Checks, models.CheckIP)
	s.Contains(res.Checks, models.CheckDevice)
}

func (s *OrchestratorSuite) TestNormalizesInput() {
	var seen checks.Input
	o := New([]checks.Check{&stubCheck{name: models.CheckSyntax, out: checks.Outcome{Pass: true}, seen: &seen}})

	res := o.Run(s.ctx, Request{TenantID: "acme", Email: "  Jane@Example.COM ", Toggles: allOn()})
	s.Equal("jane@example.com", res.Email)
	s.Equal("jane", seen.Local)
	s.Equal("example.com", seen.Domain)
}

type mxStub struct{}

func (mxStub) LookupMX(_ context.Context, domain string) ([]dns.MX, error) {
	if domain == "mailinator.com" {
		return []dns.MX{{Host: "mail.mailinator.com.", Pref: 10}}, nil
	}
	return nil, errors.New("unexpected domain " + domain)
}

func realChecks() []checks.Check {
	store := lists.NewStaticStore(lists.Defaults())
	return []checks.Check{
		checks.Syntax{},
		checks.Alias{},
		checks.Role{Lists: store},
		checks.Disposable{Set: store},
		checks.MX{Resolver: mxStub{}},
		checks.IP{Lists: store},
	}
}

func TestDisposableAddressEndToEnd(t *testing.T) {
	o := New(realChecks())
	res := o.Run(context.Background(), Request{
		TenantID: "acme",
		Email:    "test@mailinator.com",
		Toggles:  models.DefaultToggles(),
	})

	require.Contains(t, res.Checks, models.CheckDisposable)
	assert.False(t, res.Checks[models.CheckDisposable].Pass)
	assert.True(t, res.Checks[models.CheckSyntax].Pass)
	assert.True(t, res.Checks[models.CheckMX].Pass)
	assert.Equal(t, []models.Signal{models.SignalDisposableEmail}, res.Signals)
}

func TestMalformedAddressEndToEnd(t *testing.T) {
	o := New(realChecks())
	res := o.Run(context.Background(), Request{
		TenantID: "acme",
		Email:    "not-an-email",
		Toggles:  models.DefaultToggles(),
	})

	assert.False(t, res.Checks[models.CheckSyntax].Pass)
	assert.False(t, res.Checks[models.CheckMX].Pass)
	assert.Equal(t, []models.Signal{models.SignalInvalidSyntax, models.SignalInvalidMX}, res.Signals)
}
