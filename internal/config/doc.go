// Package config loads the pushmodel command's configuration file.
//
// The file is pushmodel.json, pushmodel.yaml or pushmodel.yml. Durations are
// strings in time.ParseDuration syntax. Every field is optional.
//
// # Configuration File Structure
//
//	address: ":8080"
//	mountPath: /
//	acceptOrigins: [localhost, example.com]
//	maxConnections: 1000
//	shutdownTimeout: 30s
//	conn:
//	  readTimeout: 60s
//	  heartbeatInterval: 30s
//	  maxOutboundQueue: 1024
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  address: ":9090"
//	  namespace: pushmodel
//	example: todo
//
// # Usage
//
//	cfg, err := config.LoadFile("pushmodel.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(m, cfg.ServerConfig())
package config
