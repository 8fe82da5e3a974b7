package handlers

import "net/http"

// Healthz reports that the process is serving requests.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "OK", nil)
}
