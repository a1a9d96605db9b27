package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint queues a point stamped with the current time. Points written
// while disconnected are dropped.
//
// Example:
//
//	client.WritePoint("catalog_inventory", nil,
//	    map[string]interface{}{"plants": 12, "devices": 40, "users": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newPoint(measurement, tags, fields, c.now()))
}

// newPoint builds a point, skipping nil field values which the line
// protocol cannot carry.
func newPoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) *write.Point {
	clean := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if v != nil {
			clean[k] = v
		}
	}
	return write.NewPoint(measurement, tags, clean, ts)
}
