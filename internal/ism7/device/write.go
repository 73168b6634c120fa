package device

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Path segments selecting how a list parameter value is interpreted.
const (
	segmentText  = "text"
	segmentValue = "value"
)

// WriteRequest resolves a flat command into register writes.
//
// path starts with the parameter's MQTT name. A duplicate parameter needs
// its PTID as the next segment. A list parameter with a label table accepts
// a trailing "text" segment, in which case value is a label.
//
// Unknown devices or parameters, read-only parameters and incomplete paths
// produce no writes and no error.
//
// Parameters:
//   - topic: Device topic
//   - path: Path segments below the device topic
//   - value: Command value
//
// Returns:
//   - []Write: Register writes, possibly empty
//   - error: If the value cannot be encoded
func (r *Registry) WriteRequest(topic string, path []string, value string) ([]Write, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.deviceByTopic(topic)
	if d == nil || len(path) == 0 {
		return nil, nil
	}

	var out []Write
	for _, p := range d.Parameters {
		if p.MQTTName != path[0] || !p.Writable {
			continue
		}
		rest := path[1:]
		if p.IsDuplicate {
			if len(rest) == 0 || rest[0] != strconv.Itoa(p.PTID()) {
				continue
			}
			rest = rest[1:]
		}

		byLabel := false
		switch {
		case len(rest) == 0:
		case len(rest) == 1 && rest[0] == segmentText && p.Template.HasLabels():
			byLabel = true
		case len(rest) == 1 && rest[0] == segmentValue:
		default:
			continue
		}

		writes, ok, err := r.encode(d, p, value, byLabel)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, writes...)
		}
	}
	return out, nil
}

// WriteRequestJSON resolves a JSON command object into register writes.
//
// Keys are parameter MQTT names or display names. A duplicate parameter is
// addressed as {"Name": {"<ptid>": value}}. A list parameter accepts either a
// raw value or {"value": raw} or {"text": label}.
func (r *Registry) WriteRequestJSON(topic string, obj map[string]any) ([]Write, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.deviceByTopic(topic)
	if d == nil {
		return nil, nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []Write
	for _, k := range keys {
		for _, p := range d.Parameters {
			if (p.MQTTName != k && p.Name != k) || !p.Writable {
				continue
			}

			v := obj[k]
			if p.IsDuplicate {
				nested, ok := v.(map[string]any)
				if !ok {
					continue
				}
				if v, ok = nested[strconv.Itoa(p.PTID())]; !ok {
					continue
				}
			}

			byLabel := false
			if sel, ok := v.(map[string]any); ok {
				if t, ok := sel[segmentText]; ok && p.Template.HasLabels() {
					v, byLabel = t, true
				} else if raw, ok := sel[segmentValue]; ok {
					v = raw
				} else {
					continue
				}
			}

			s, ok := stringify(v)
			if !ok {
				continue
			}
			writes, ok, err := r.encode(d, p, s, byLabel)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, writes...)
			}
		}
	}
	return out, nil
}

// encode turns a command value into writes for one parameter. An unknown
// label is not an error.
func (r *Registry) encode(d *RunningDevice, p *RunningParameter, value string, byLabel bool) ([]Write, bool, error) {
	if byLabel {
		n, ok := r.valueOf(p, value)
		if !ok {
			r.logger.Warn("unknown label in write command",
				"device", d.Name,
				"parameter", p.Name,
				"label", value,
			)
			return nil, false, nil
		}
		value = strconv.Itoa(n)
	}

	telegrams, err := p.Converter.Write(value)
	if err != nil {
		return nil, false, fmt.Errorf("device %s parameter %s: %w", d.Name, p.Name, err)
	}

	writes := make([]Write, 0, len(telegrams))
	for _, t := range telegrams {
		writes = append(writes, Write{
			BusAddress: d.WriteBusAddress,
			Service:    p.ConverterTemplate.ServiceWrite,
			Telegram:   t,
		})
	}
	return writes, true, nil
}

// valueOf matches a label against the raw and, when enabled, translated
// label table.
func (r *Registry) valueOf(p *RunningParameter, label string) (int, bool) {
	if n, ok := p.Template.ValueOf(label); ok {
		return n, true
	}
	if r.opts.Translate {
		for _, o := range p.Template.Options {
			if strings.EqualFold(r.catalog.Translate(o.Label), label) {
				return o.Value, true
			}
		}
	}
	return 0, false
}

func (r *Registry) deviceByTopic(topic string) *RunningDevice {
	topic = strings.TrimSuffix(topic, "/")
	for _, d := range r.devices {
		if d.Topic == topic {
			return d
		}
	}
	return nil
}

func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	default:
		return "", false
	}
}
