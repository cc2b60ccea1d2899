package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/homeserver/internal/netx"
)

func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	netx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to " + a.opts.AppName,
		"version": a.opts.Version,
		"status":  "running",
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	netx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"app":     a.opts.AppName,
		"version": a.opts.Version,
	})
}

func (a *API) handleInfo(w http.ResponseWriter, _ *http.Request) {
	netx.WriteJSON(w, http.StatusOK, map[string]any{
		"api_version": "v1",
		"services": map[string]string{
			"auth":       "active",
			"files":      "active",
			"monitoring": "active",
		},
	})
}
