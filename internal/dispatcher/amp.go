package dispatcher

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
)

const ampUpstreamBase = "https://ampcode.com"

// handleAmpLogin implements GET /amp/v1/login: a redirect to
// Amp's own hosted login so the CLI's `amp` subcommand can open a browser
// without BYOKEY ever handling Amp credentials directly.
func (d *Dispatcher) handleAmpLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, ampUpstreamBase+"/settings")
}

// handleAmpManagement implements ANY /amp/v0/management/{*path}:
// a transparent reverse proxy to ampcode.com's management API, injecting
// amp.upstream_key as bearer auth so the gateway's own clients never need
// to hold that key themselves.
func (d *Dispatcher) handleAmpManagement(c *gin.Context) {
	target, err := url.Parse(ampUpstreamBase)
	if err != nil {
		writeError(c, err)
		return
	}

	ampCfg := d.cfg.Load().Amp
	proxy := httputil.NewSingleHostReverseProxy(target)
	baseDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		baseDirector(req)
		req.URL.Path = "/v0/management" + c.Param("path")
		req.Host = target.Host
		if ampCfg.UpstreamKey != "" {
			req.Header.Set("Authorization", "Bearer "+ampCfg.UpstreamKey)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(c, err)
	}

	proxy.ServeHTTP(c.Writer, c.Request)
}
