package echo

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/nerrad567/mqttservice/internal/infrastructure/config"
)

// SectionName is the configuration section read by the echo service.
const SectionName = "echoservice"

// DefaultReplyTopic is used when the section sets no reply_topic.
const DefaultReplyTopic = "echoservice/reply"

// ErrInvalidSettings wraps every rejection of the echoservice section.
var ErrInvalidSettings = errors.New("echo: invalid settings")

// Settings is the "echoservice" configuration section.
//
// Example (YAML):
//
//	echoservice:
//	  reply_topic: echoservice/reply
//	  database:
//	    path: /var/lib/echoservice/journal.db
//	    wal_mode: true
//	  influxdb:
//	    enabled: false
type Settings struct {
	ReplyTopic string                `json:"reply_topic"`
	Database   config.DatabaseConfig `json:"database"`
	InfluxDB   config.InfluxDBConfig `json:"influxdb"`
}

// Validate checks the section. Publish topics may not contain wildcards,
// and an enabled InfluxDB needs a URL, an org and a bucket.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ReplyTopic, validation.Required, validation.By(noWildcards)),
		validation.Field(&s.InfluxDB, validation.By(influxComplete)),
	)
}

func influxComplete(value any) error {
	c, _ := value.(config.InfluxDBConfig)
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Org, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
	)
}

func noWildcards(value any) error {
	topic, _ := value.(string)
	if strings.ContainsAny(topic, "+#") {
		return errors.New("must not contain wildcards")
	}
	return nil
}

// settingsFrom decodes and validates the echoservice section of cfg,
// filling defaults for anything the section leaves out.
func settingsFrom(cfg *config.Config) (Settings, error) {
	s := Settings{ReplyTopic: DefaultReplyTopic}
	if _, err := cfg.DecodeSection(SectionName, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return s, nil
}
