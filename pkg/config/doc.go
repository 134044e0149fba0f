// Package config provides the engine configuration.
//
// A single Config structure covers the engine limits, snapshot encoding,
// logging and metrics. Files are YAML; ${VAR_NAME} references are replaced
// with environment values before parsing.
//
// # Usage
//
//	cfg := config.Default()
//	if err := config.Load("dremel.yaml", cfg); err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
//	store, err := table.NewStore(s, table.WithMaxDepth(cfg.Engine.MaxDepth))
//
// # Example file
//
//	engine:
//	  max_depth: 32
//	  initial_capacity: 1024
//	snapshot:
//	  algorithm: zstd
//	  level: 5
//	  dictionary_threshold: 0.5
//	logging:
//	  level: ${DREMEL_LOG_LEVEL}
//	  encoding: console
//	metrics:
//	  enabled: true
//	  namespace: dremel
package config
