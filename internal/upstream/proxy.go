package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go-messenger/internal/model"
	"go-messenger/internal/trust"
)

// Proxy forwards edge requests to one internal service. The bearer token
// never leaves the gateway.
type Proxy struct {
	name      string
	target    *url.URL
	gate      *trust.Gate
	transport http.RoundTripper
}

func NewProxy(name string, rawTarget string, gate *trust.Gate, transport http.RoundTripper) (*Proxy, error) {
	target, err := url.Parse(strings.TrimRight(strings.TrimSpace(rawTarget), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", name, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("%s url must be absolute: %q", name, rawTarget)
	}
	if gate == nil {
		return nil, errors.New("proxy requires a trust gate")
	}

	return &Proxy{name: name, target: target, gate: gate, transport: transport}, nil
}

func (p *Proxy) To(path string) http.Handler {
	return p.handler(func(string) string { return path })
}

func (p *Proxy) Prefix(from string, to string) http.Handler {
	return p.handler(func(in string) string {
		return to + strings.TrimPrefix(in, from)
	})
}

func (p *Proxy) handler(mapPath func(string) string) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(p.target)
			pr.Out.URL.Path = p.target.Path + mapPath(pr.In.URL.Path)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = p.target.Host
			pr.SetXForwarded()

			if principal, ok := trust.PrincipalFromContext(pr.In.Context()); ok {
				p.gate.Stamp(pr.Out.Header, &principal)
			} else {
				p.gate.Stamp(pr.Out.Header, nil)
			}
		},
		Transport:    p.transport,
		ErrorHandler: p.writeBadGateway,
	}
}

func (p *Proxy) writeBadGateway(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("upstream request failed",
		"upstream", p.name,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)

	WriteBadGateway(w, p.name)
}

func WriteBadGateway(w http.ResponseWriter, upstream string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "BAD_GATEWAY",
			Message: "Upstream service unavailable",
			Details: upstream,
		},
	})
}
