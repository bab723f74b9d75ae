package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// messageMeasurement is the measurement written by WriteMessage.
const messageMeasurement = "mqtt_messages"

// WriteMessage records one handled MQTT message.
//
// Parameters:
//   - topic: Full topic the message arrived on
//   - handler: Short name of the handler that processed it (e.g. "echo")
//   - size: Payload size in bytes
func (c *Client) WriteMessage(topic, handler string, size int) {
	c.WritePoint(messageMeasurement,
		map[string]string{
			"topic":   topic,
			"handler": handler,
		},
		map[string]any{
			"bytes": size,
			"count": 1,
		},
	)
}

// WritePoint writes a point stamped with the current time.
//
// Example:
//
//	client.WritePoint("service_stats",
//	    map[string]string{"service": "echoservice"},
//	    map[string]any{"reloads": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
