// Package config loads and validates MQTT service configuration documents.
//
// This package manages:
//   - Reading configuration documents (JSON, JSON with comments, or YAML)
//   - Environment variable overrides for secrets
//   - Normalising and validating the mandatory "mqtt" section
//   - Passing application-defined sections through untouched
//
// # Document Shape
//
//	{
//	  "mqtt": {
//	    "broker": "localhost",   // required
//	    "port": 1883,            // default 1883, must be 1..65535
//	    "user": "svc",           // optional
//	    "password": "secret",    // optional
//	    "basetopic": "home/"     // default "", normalised to end with "/"
//	  },
//	  "echoservice": { ... }     // any application section
//	}
//
// A validated Config is immutable: a reload produces a new Config that
// replaces the old one wholesale, or is rejected wholesale.
//
// # Security Considerations
//
//   - Missing credentials are accepted but logged as a warning
//   - Passwords can be injected with <PREFIX>_MQTT_PASSWORD instead of the file
//   - The config file should have restricted permissions (0600)
//
// # Usage
//
//	doc, err := config.Load("/etc/echoservice.conf")
//	if err != nil {
//	    return err // wraps ErrConfigRead or ErrConfigParse
//	}
//	v := config.Validator{Logger: log}
//	cfg, err := v.Validate(doc)
//	if err != nil {
//	    return err // wraps ErrConfigValidation
//	}
//	fmt.Println(cfg.MQTT.Broker, cfg.MQTT.Port)
package config
