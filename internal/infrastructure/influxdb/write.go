package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementParameter is the measurement holding decoded parameter values.
const measurementParameter = "ism7_parameter"

// Parameter is one decoded parameter value.
type Parameter struct {
	Gateway   string
	Device    string
	Parameter string
	PTID      int
	Value     any
}

// WriteParameter records a parameter value. Numbers and booleans are
// written to the "value" field as floats, strings (labels, dates, times)
// to the "text" field. Other value types are ignored.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Returns:
//   - bool: false if the value was not written
func (c *Client) WriteParameter(p Parameter, ts time.Time) bool {
	if !c.IsConnected() {
		return false
	}

	point, ok := parameterPoint(p, ts)
	if !ok {
		return false
	}
	c.writeAPI.WritePoint(point)
	return true
}

func parameterPoint(p Parameter, ts time.Time) (*write.Point, bool) {
	fields := make(map[string]interface{}, 1)
	switch v := p.Value.(type) {
	case float64:
		fields["value"] = v
	case int:
		fields["value"] = float64(v)
	case int64:
		fields["value"] = float64(v)
	case uint32:
		fields["value"] = float64(v)
	case bool:
		if v {
			fields["value"] = 1.0
		} else {
			fields["value"] = 0.0
		}
	case string:
		fields["text"] = v
	default:
		return nil, false
	}

	tags := map[string]string{
		"gateway":   p.Gateway,
		"device":    p.Device,
		"parameter": p.Parameter,
		"ptid":      strconv.Itoa(p.PTID),
	}
	return write.NewPoint(measurementParameter, tags, fields, ts), true
}
