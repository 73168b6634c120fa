package device

import (
	"fmt"
	"math"
	"strconv"
)

// Document is the merged value object of one device, keyed by parameter
// display name. Duplicate names are nested under their PTID.
type Document struct {
	Topic  string
	Device string
	Values map[string]any
}

// Datapoint is a single value published on its own topic.
type Datapoint struct {
	Topic     string
	Device    string
	Parameter string
	PTID      int
	Value     any
}

// Batch is the downstream output of one Collect pass.
type Batch struct {
	Documents  []Document
	Datapoints []Datapoint
}

// Empty reports whether the batch carries no values.
func (b Batch) Empty() bool {
	return len(b.Documents) == 0 && len(b.Datapoints) == 0
}

// Collect reads every parameter that has a value and builds the downstream
// messages. Reading consumes the value (see converter.Converter.Value).
//
// List parameters with a label table appear as {"value": raw, "text": label}
// in the document and as ".../value" and ".../text" datapoints. A value
// missing from the table keeps that shape with the raw value as its text.
//
// Returns:
//   - Batch: Documents for devices with at least one value, plus leaf datapoints
//   - error: First decode failure; values read before it are discarded
func (r *Registry) Collect() (Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var batch Batch
	for _, d := range r.devices {
		values := make(map[string]any)

		for _, p := range d.Parameters {
			if !p.Converter.HasValue() {
				continue
			}
			v, err := p.Converter.Value()
			if err != nil {
				return Batch{}, fmt.Errorf("device %s parameter %s (%d): %w", d.Name, p.Name, p.PTID(), err)
			}

			topic := d.Topic + "/" + p.MQTTName
			if p.IsDuplicate {
				topic += "/" + strconv.Itoa(p.PTID())
			}

			node := v
			if p.Template.HasLabels() {
				label := r.label(p, v)
				node = map[string]any{"value": v, "text": label}
				batch.Datapoints = append(batch.Datapoints,
					Datapoint{Topic: topic + "/value", Device: d.Name, Parameter: p.Name, PTID: p.PTID(), Value: v},
					Datapoint{Topic: topic + "/text", Device: d.Name, Parameter: p.Name, PTID: p.PTID(), Value: label},
				)
			} else {
				batch.Datapoints = append(batch.Datapoints,
					Datapoint{Topic: topic, Device: d.Name, Parameter: p.Name, PTID: p.PTID(), Value: v})
			}

			if p.IsDuplicate {
				nested, _ := values[p.Name].(map[string]any)
				if nested == nil {
					nested = make(map[string]any)
					values[p.Name] = nested
				}
				nested[strconv.Itoa(p.PTID())] = node
			} else {
				values[p.Name] = node
			}
		}

		if len(values) > 0 {
			batch.Documents = append(batch.Documents, Document{Topic: d.Topic, Device: d.Name, Values: values})
		}
	}
	return batch, nil
}

// label returns the display label of a list parameter value, or the raw
// value formatted as text when the table has no entry for it.
func (r *Registry) label(p *RunningParameter, v any) string {
	if n, ok := asInt(v); ok {
		if l, ok := p.Template.Label(n); ok {
			return r.display(l)
		}
	}
	return fmt.Sprint(v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint32:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}
