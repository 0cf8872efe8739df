package transcriber

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// tracedHTTP is a keep-alive client that times each phase of a request.
type tracedHTTP struct {
	client *http.Client
}

func newTracedHTTP() *tracedHTTP {
	return &tracedHTTP{client: &http.Client{Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     2 * time.Minute,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}}}
}

type reply struct {
	status  int
	header  http.Header
	body    []byte
	metrics *NetworkMetrics
}

// phases collects httptrace callbacks into a NetworkMetrics.
type phases struct {
	m NetworkMetrics

	start, connAsked, dns, dial time.Time
	tlsAt, conn, headers, wrote time.Time
	first                       time.Time
}

func (p *phases) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.connAsked = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.conn = time.Now()
			p.m.ConnWait = p.conn.Sub(p.connAsked)
			p.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dns) },
		ConnectStart:      func(string, string) { p.dial = time.Now() },
		ConnectDone:       func(string, string, error) { p.m.TCP = time.Since(p.dial) },
		TLSHandshakeStart: func() { p.tlsAt = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(p.tlsAt)
			p.m.TLSProtocol = tls.VersionName(cs.Version)
		},
		WroteHeaders: func() {
			p.headers = time.Now()
			p.m.ReqHeaders = p.headers.Sub(p.conn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.wrote = time.Now()
			p.m.ReqBody = p.wrote.Sub(p.headers)
		},
		GotFirstResponseByte: func() {
			p.first = time.Now()
			p.m.TTFB = p.first.Sub(p.wrote)
		},
	}
}

// do sends req and buffers the whole body. req's context carries the deadline.
func (c *tracedHTTP) do(req *http.Request) (*reply, error) {
	p := &phases{start: time.Now()}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), p.trace()))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	p.m.Download = time.Since(p.first)
	p.m.Total = time.Since(p.start)
	return &reply{status: resp.StatusCode, header: resp.Header, body: body, metrics: &p.m}, nil
}

// head issues a HEAD to url and drains the reply. Any HTTP status is a
// success; only transport failures are returned.
func (c *tracedHTTP) head(ctx context.Context, url string) (*NetworkMetrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	r, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return r.metrics, nil
}
