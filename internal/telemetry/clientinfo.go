package telemetry

import (
	"os"
	"runtime"
)

// ClientInfo describes the machine a session runs on.
type ClientInfo struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	GoVersion string `json:"goVersion"`
	Terminal  string `json:"terminal,omitempty"`
	Language  string `json:"language,omitempty"`
}

func CurrentClientInfo() ClientInfo {
	return ClientInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
		Terminal:  os.Getenv("TERM"),
		Language:  os.Getenv("LANG"),
	}
}
