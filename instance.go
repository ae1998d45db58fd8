package workerctl

import "strconv"

// Instance is one worker process derived from a WorkerConfig
type Instance struct {
	// Index is the sidekiq process index passed with -i
	Index int
	// PIDFile is the PID file the process writes
	PIDFile string
	// ConfigFile is the sidekiq config file the process loads
	ConfigFile string
}

// Enumerate returns the cfg.ProcessCount worker instances in index order.
// Instance 0 uses the base PID path, instance k uses "<base>-k". An instance
// uses cfg.ConfigPaths[k] when present and cfg.DefaultConfigPath otherwise.
func Enumerate(cfg WorkerConfig) []Instance {
	if cfg.ProcessCount < 1 {
		return nil
	}

	instances := make([]Instance, 0, cfg.ProcessCount)
	for idx := 0; idx < cfg.ProcessCount; idx++ {
		instances = append(instances, Instance{
			Index:      idx,
			PIDFile:    PIDFile(cfg.BasePIDPath, idx),
			ConfigFile: configFile(cfg, idx),
		})
	}
	return instances
}

// PIDFile returns the PID file path of instance idx
func PIDFile(base string, idx int) string {
	if idx == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(idx)
}

// configFile treats an empty entry in ConfigPaths like a missing one, so a
// blank list item never produces "-C ''"
func configFile(cfg WorkerConfig, idx int) string {
	if idx < len(cfg.ConfigPaths) && cfg.ConfigPaths[idx] != "" {
		return cfg.ConfigPaths[idx]
	}
	return cfg.DefaultConfigPath
}
