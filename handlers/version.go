package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
)

var (
	version     string
	versionOnce sync.Once
)

type VersionHandler struct{}

type VersionResponse struct {
	Version string `json:"version"`
}

func NewVersionHandler() *VersionHandler {
	return &VersionHandler{}
}

// Version reads the build version from version.txt (cached after first read).
func Version() string {
	versionOnce.Do(func() {
		data, err := os.ReadFile("version.txt")
		if err != nil {
			version = "dev"
			return
		}
		version = strings.TrimSpace(string(data))
	})
	return version
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{Version: Version()})
}
