package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/smaxiso/portfolio-rag/pkg/response"
)

// Healthz is the liveness probe.
func Healthz(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit,omitempty"`
	BuildDate  string `json:"buildDate,omitempty"`
	GoVersion  string `json:"goVersion,omitempty"`
}

// Version returns the build information.
func Version(c *gin.Context) {
	info := version.Get()
	response.OK(c, VersionResponse{
		GitVersion: info.GitVersion,
		GitCommit:  info.GitCommit,
		BuildDate:  info.BuildDate,
		GoVersion:  info.GoVersion,
	})
}
