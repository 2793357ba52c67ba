package handlers

import (
	"net/http"
)

// VersionResponse identifies the running build.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// GetVersion returns the build the binary was stamped with.
func (a *API) GetVersion(w http.ResponseWriter, r *http.Request) {
	v := a.cfg.Version
	if v.Version == "" {
		v.Version = "dev"
	}
	writeJSON(w, http.StatusOK, v)
}
