package workerctl

// Setting keys understood by LoadWorkerConfig and the unit installer
const (
	KeyApplication        = "application"
	KeyAppName            = "app_name"
	KeyRailsEnv           = "rails_env"
	KeyDeployTo           = "deploy_to"
	KeyCurrentPath        = "current_path"
	KeySharedPath         = "shared_path"
	KeyBundleBin          = "bundle_bin"
	KeySidekiq            = "sidekiq"
	KeySidekiqctl         = "sidekiqctl"
	KeyTimeout            = "sidekiq_timeout"
	KeyConfig             = "sidekiq_config"
	KeyConfigs            = "sidekiq_configs"
	KeyLog                = "sidekiq_log"
	KeyPID                = "sidekiq_pid"
	KeyProcesses          = "sidekiq_processes"
	KeyConcurrency        = "sidekiq_concurrency"
	KeyUser               = "sidekiq_user"
	KeyInitSystem         = "init_system"
	KeyServiceUnitName    = "service_unit_name"
	KeyUpstartServiceName = "upstart_service_name"
	KeyServiceUnitPath    = "service_unit_path"
)

// NewDefaultStore creates a Store populated with the default worker settings.
// Only deploy_to has no default; paths derived from it fail to resolve until
// it is set.
func NewDefaultStore() *Store {
	s := NewStore()
	RegisterDefaults(s)
	return s
}

// RegisterDefaults sets every default worker setting on s, overwriting
// existing values. Call it before applying overrides.
func RegisterDefaults(s *Store) {
	s.Set(KeyApplication, "")
	s.Set(KeyAppName, "")
	s.Set(KeyRailsEnv, "production")
	s.Set(KeyBundleBin, "bundle")

	s.SetFunc(KeyCurrentPath, Expand("${deploy_to}/current"))
	s.SetFunc(KeySharedPath, Expand("${deploy_to}/shared"))

	s.SetFunc(KeySidekiq, Expand("${bundle_bin} exec sidekiq"))
	s.SetFunc(KeySidekiqctl, Expand("${bundle_bin} exec sidekiqctl"))
	s.Set(KeyTimeout, DefaultTimeoutSeconds)
	s.SetFunc(KeyConfig, Expand("${current_path}/config/sidekiq.yml"))
	s.Set(KeyConfigs, []string{})
	// Set to nil to launch without -L.
	s.SetFunc(KeyLog, Expand("${current_path}/log/sidekiq.log"))
	s.SetFunc(KeyPID, Expand("${shared_path}/pids/sidekiq.pid"))
	s.Set(KeyProcesses, DefaultProcessCount)
	s.Set(KeyConcurrency, nil)
	s.Set(KeyUser, nil)

	s.Set(KeyInitSystem, nil)
	s.SetFunc(KeyServiceUnitName, Expand("sidekiq-${rails_env}.service"))
	s.Set(KeyUpstartServiceName, DefaultUpstartServiceName)
	s.Set(KeyServiceUnitPath, DefaultUnitDir)
}
