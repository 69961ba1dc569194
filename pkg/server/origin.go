package server

import (
	"net/http"
	"net/url"

	"github.com/rs/cors"
)

// originPolicy checks request origins against a host-name allow-list.
// A nil list allows every origin.
type originPolicy struct {
	hosts map[string]struct{}
}

func newOriginPolicy(hosts []string) *originPolicy {
	if hosts == nil {
		return &originPolicy{}
	}
	p := &originPolicy{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		p.hosts[h] = struct{}{}
	}
	return p
}

func (p *originPolicy) allowAll() bool { return p.hosts == nil }

// allowed reports whether origin's host name is on the list.
func (p *originPolicy) allowed(origin string) bool {
	if p.allowAll() {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	_, ok := p.hosts[u.Hostname()]
	return ok
}

// checkWebSocket is the upgrader's CheckOrigin. Requests without an Origin
// header come from non-browser clients and are accepted.
func (p *originPolicy) checkWebSocket(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return p.allowed(origin)
}

// cors returns the CORS handler for the one-shot HTTP transport. With no
// allow-list every origin gets "*"; otherwise allowed origins are echoed.
// Preflights pass through to the mount path's OPTIONS handler.
func (p *originPolicy) cors() *cors.Cors {
	opts := cors.Options{
		AllowedMethods:     []string{http.MethodPost},
		AllowedHeaders:     []string{"Content-Type"},
		OptionsPassthrough: true,
	}
	if p.allowAll() {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowOriginFunc = p.allowed
	}
	return cors.New(opts)
}
