// Package config loads the zsupd configuration.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML file, and
// environment variables named ZSUP_<SECTION>_<KEY>:
//
//	supervisor:
//	  validate_name_uniqueness: true   # ZSUP_SUPERVISOR_VALIDATE_NAME_UNIQUENESS
//	  poll_interval: 100ms             # ZSUP_SUPERVISOR_POLL_INTERVAL
//	ops:
//	  enable: true                     # ZSUP_OPS_ENABLE
//	  addr: 127.0.0.1:8089             # ZSUP_OPS_ADDR
//	log:
//	  level: info                      # debug|info|warn|error
//	  format: text                     # text|json
//	shutdown_timeout: 10s              # ZSUP_SHUTDOWN_TIMEOUT
package config
