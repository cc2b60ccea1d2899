package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/homeserver/internal/netx"
)

func (a *API) handleSystem(w http.ResponseWriter, r *http.Request) {
	snap, err := a.monitoring.System(r.Context())
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, snap)
}

func (a *API) handleStorage(w http.ResponseWriter, r *http.Request) {
	inv, err := a.monitoring.Storage(r.Context())
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, inv)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := a.monitoring.Snapshot(r.Context())
	if err != nil {
		netx.WriteError(w, r, a.log, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, snap)
}
