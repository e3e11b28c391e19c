package dns

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs an in-process authoritative stub on a random UDP port.
func startServer(t *testing.T, handler mdns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &mdns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func zoneHandler(hits *atomic.Int32) mdns.HandlerFunc {
	return func(w mdns.ResponseWriter, req *mdns.Msg) {
		if hits != nil {
			hits.Add(1)
		}
		m := new(mdns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch q.Name {
		case "example.com.":
			if q.Qtype == mdns.TypeMX {
				m.Answer = append(m.Answer,
					&mdns.MX{Hdr: rrHeader(q), Preference: 20, Mx: "mx2.example.com."},
					&mdns.MX{Hdr: rrHeader(q), Preference: 10, Mx: "mx1.example.com."},
				)
			}
			if q.Qtype == mdns.TypeTXT {
				m.Answer = append(m.Answer, &mdns.TXT{Hdr: rrHeader(q), Txt: []string{"v=spf1 ", "-all"}})
			}
		case "broken.test.":
			m.Rcode = mdns.RcodeServerFailure
		default:
			m.Rcode = mdns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	}
}

func rrHeader(q mdns.Question) mdns.RR_Header {
	return mdns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: mdns.ClassINET, Ttl: 300}
}

func TestResolver(t *testing.T) {
	addr := startServer(t, zoneHandler(nil))
	r := NewResolver([]string{addr}, WithExchangeTimeout(time.Second))
	ctx := context.Background()

	t.Run("mx sorted by preference", func(t *testing.T) {
		mx, err := r.LookupMX(ctx, "Example.COM")
		require.NoError(t, err)
		require.Len(t, mx, 2)
		assert.Equal(t, "mx1.example.com.", mx[0].Host)
	})

	t.Run("txt strings joined", func(t *testing.T) {
		txt, err := r.LookupTXT(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"v=spf1 -all"}, txt)
	})

	t.Run("nxdomain is an empty answer", func(t *testing.T) {
		mx, err := r.LookupMX(ctx, "nowhere.invalid")
		require.NoError(t, err)
		assert.Empty(t, mx)
	})

	t.Run("servfail is an error", func(t *testing.T) {
		_, err := r.LookupMX(ctx, "broken.test")
		assert.ErrorIs(t, err, ErrLookupFailed)
	})

	t.Run("canceled caller", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.LookupTXT(cctx, "example.com")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestResolverFallsThroughDeadServer(t *testing.T) {
	dead, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.LocalAddr().String()
	require.NoError(t, dead.Close())

	var hits atomic.Int32
	live := startServer(t, zoneHandler(&hits))
	r := NewResolver([]string{deadAddr, live}, WithExchangeTimeout(200*time.Millisecond))

	mx, err := r.LookupMX(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Len(t, mx, 2)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolverNoServers(t *testing.T) {
	_, err := NewResolver(nil).LookupMX(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrLookupFailed)
}
