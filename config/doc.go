// Package config provides configuration loading for semquery binaries.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. Environment variables use the SEMQUERY_ prefix
// with dots in keys replaced by underscores, so search.max_iterations is set
// by SEMQUERY_SEARCH_MAX_ITERATIONS.
//
// # Basic Usage
//
//	cfg, err := config.NewLoader(config.WithFile("semquery.yaml")).Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := query.NewEngine(cfg.EngineConfig(), deps)
//
// # File Format
//
//	graph:
//	  base_cache_size: 8
//	  fact_types_cache_size: 64
//	search:
//	  exclusion_cache_size: 1024
//	  exclusion_cache_ttl_ms: 300000
//	  max_iterations: 10000
//	  max_discovery_depth: 3
//	projection:
//	  distribution_mode: DISTRIBUTED
//	  distribution_packet_size: 50
//	  distribution_remote_bias: 1
//	results:
//	  buffer_size: 256
//	invoker:
//	  retry:
//	    max_retries: 2
//	    initial_delay: 50ms
//	  rate_limit: 20
//	  rate_burst: 5
//	nats:
//	  url: nats://localhost:4222
//	security:
//	  username: semquery
//	  password: secret
//	  tls:
//	    enabled: true
//	    ca_files: [/etc/semquery/ca.pem]
//	    min_version: "1.3"
//	log:
//	  level: info
//	  format: text
//	metrics:
//	  enabled: true
//	  port: 9090
//
// Durations accept Go duration strings ("250ms", "2s"). The configuration
// is read once at startup; a running engine never sees changes.
package config
