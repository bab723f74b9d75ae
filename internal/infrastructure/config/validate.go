package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MQTT section defaults.
const (
	// DefaultPort is used when the mqtt section has no port.
	DefaultPort = 1883

	minPort = 1
	maxPort = 65535

	topicSeparator = "/"
)

// Logger receives warnings about auto-corrected configuration values.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// Validator normalises and validates configuration documents.
//
// Structurally required values (the mqtt section and its broker) cause
// rejection. Recoverable omissions (port, credentials, base topic) are
// corrected with a logged warning.
type Validator struct {
	// Logger receives correction warnings. Optional.
	Logger Logger

	// Check is the service-specific validation hook. It runs after the
	// structural checks succeed; a non-nil error rejects the document.
	Check func(cfg *Config) error
}

// Validate normalises doc and returns the resulting Config.
// doc itself is not modified.
//
// Returns:
//   - *Config: The normalised configuration
//   - error: wraps ErrConfigValidation and the specific failure
func (v Validator) Validate(doc Document) (*Config, error) {
	raw, ok := doc[SectionMQTT]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, ErrMissingMQTTSection)
	}
	section, ok := asSection(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %w: must be an object", ErrConfigValidation, ErrMissingMQTTSection)
	}

	settings, normalised, err := v.normaliseMQTT(section)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}

	out := make(Document, len(doc))
	for k, val := range doc {
		out[k] = val
	}
	out[SectionMQTT] = normalised

	cfg := &Config{MQTT: settings, Document: out}

	if v.Check != nil {
		if err := v.Check(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrConfigValidation, ErrRejected, err)
		}
	}
	return cfg, nil
}

// normaliseMQTT builds MQTTSettings from the raw section and returns a
// normalised copy of the section.
func (v Validator) normaliseMQTT(section map[string]any) (MQTTSettings, map[string]any, error) {
	var s MQTTSettings
	out := make(map[string]any, len(section))
	for k, val := range section {
		out[k] = val
	}

	brokerRaw, ok := section["broker"]
	if !ok {
		return s, nil, ErrMissingBroker
	}
	broker, ok := brokerRaw.(string)
	if !ok {
		return s, nil, fmt.Errorf("%w: broker must be a string", ErrInvalidField)
	}
	s.Broker = strings.TrimSpace(broker)

	if portRaw, ok := section["port"]; ok {
		port, err := toInt(portRaw)
		if err != nil {
			return s, nil, fmt.Errorf("%w: %v", ErrInvalidPort, portRaw)
		}
		s.Port = port
	} else {
		v.warn("Configuration missing broker port in mqtt section, using default", "port", DefaultPort)
		s.Port = DefaultPort
	}

	err := validation.ValidateStruct(&s,
		validation.Field(&s.Broker, validation.Required.ErrorObject(validation.NewError("broker_required", ErrMissingBroker.Error()))),
		// Min skips zero values, Required catches port 0.
		validation.Field(&s.Port, validation.Required, validation.Min(minPort), validation.Max(maxPort)),
	)
	if err != nil {
		if errs, ok := err.(validation.Errors); ok {
			if _, bad := errs["Broker"]; bad {
				return s, nil, ErrMissingBroker
			}
			if _, bad := errs["Port"]; bad {
				return s, nil, fmt.Errorf("%w: %d", ErrInvalidPort, s.Port)
			}
		}
		return s, nil, fmt.Errorf("%w: %w", ErrInvalidField, err)
	}

	if s.User, err = v.optionalString(section, "user", "MQTT configuration missing user credentials (username)"); err != nil {
		return s, nil, err
	}
	if s.Password, err = v.optionalString(section, "password", "MQTT configuration missing user credentials (password)"); err != nil {
		return s, nil, err
	}

	switch base := section["basetopic"].(type) {
	case nil:
		v.warn("MQTT base topic not set, using empty")
	case string:
		switch {
		case base == "":
			v.warn("MQTT base topic not set, using empty")
		case !strings.HasSuffix(base, topicSeparator):
			v.warn("MQTT base topic not ending in trailing slash, appending", "basetopic", base)
			s.BaseTopic = base + topicSeparator
		default:
			s.BaseTopic = base
		}
	default:
		return s, nil, fmt.Errorf("%w: basetopic must be a string", ErrInvalidField)
	}

	if s.ClientID, err = stringField(section, "client_id"); err != nil {
		return s, nil, err
	}
	if tls, ok := section["tls"].(bool); ok {
		s.TLS = tls
	}
	if ka, ok := section["keepalive"]; ok {
		seconds, err := toInt(ka)
		if err != nil || seconds < 0 {
			return s, nil, fmt.Errorf("%w: keepalive must be a non-negative integer", ErrInvalidField)
		}
		s.KeepAlive = seconds
	}

	out["broker"] = s.Broker
	out["port"] = s.Port
	out["user"] = optionalValue(s.User)
	out["password"] = optionalValue(s.Password)
	out["basetopic"] = s.BaseTopic

	return s, out, nil
}

// optionalString reads a string-or-null key. A missing key is reported as
// degraded security.
func (v Validator) optionalString(section map[string]any, key, missingMsg string) (*string, error) {
	raw, ok := section[key]
	if !ok {
		v.warn(missingMsg)
		return nil, nil
	}
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &val, nil
	case json.Number:
		s := val.String()
		return &s, nil
	case int, int64, float64, bool:
		s := fmt.Sprint(val)
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidField, key)
	}
}

func (v Validator) warn(msg string, args ...any) {
	if v.Logger != nil {
		v.Logger.Warn(msg, args...)
	}
}

func stringField(section map[string]any, key string) (string, error) {
	raw, ok := section[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidField, key)
	}
	return s, nil
}

func optionalValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// toInt accepts integers, integral floats and numeric strings.
// Range checking is left to the caller.
func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, fmt.Errorf("out of range: %d", v)
		}
		return int(v), nil
	case uint64:
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("out of range: %d", v)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return toInt(n)
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return toInt(f)
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
