package handlers

import (
	"net/http"

	"github.com/apex/log"
	"p9e.in/zeladoria/middleware"
)

// Live upgrades to a websocket that streams the report changes the caller
// may see.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		http.Error(w, "live feed disabled", http.StatusServiceUnavailable)
		return
	}
	if err := h.Hub.Serve(w, r, middleware.GetUserID(r), middleware.GetViewer(r)); err != nil {
		// the upgrader already answered the client
		log.WithError(err).WithField("user", middleware.GetUserID(r)).Warn("live upgrade failed")
	}
}
