package workerctl

// Version is the current version of the go-workerctl library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// InitSystems lists the init systems with a dedicated strategy
	InitSystems []string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:     Version,
		InitSystems: []string{InitSystemSystemd.String(), InitSystemUpstart.String()},
	}
}
