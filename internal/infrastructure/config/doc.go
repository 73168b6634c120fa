// Package config loads the ISM7 bridge configuration.
//
// Load applies defaults, then the YAML file, then ISM7_* environment
// overrides, and finally validates the result, reporting every problem in
// one error. Gateway, MQTT and InfluxDB secrets are best supplied through
// the environment so the file can stay world-readable in deployments that
// need it.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	addr := cfg.GetGatewayAddress() // "192.168.1.50:9092"
package config
