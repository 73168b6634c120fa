package device

import (
	"errors"
	"testing"

	"github.com/nerrad567/ism7-bridge/internal/ism7/catalog"
	"github.com/nerrad567/ism7-bridge/internal/ism7/converter"
)

const testIP = "192.168.1.40"

const testCatalog = `
devices:
  - id: 1
    name: HG
    parameters: [11, 12, 13, 14, 15, 16]
  - id: 2
    name: Bedienmodul Raum
    parameters: [21]

parameters:
  - { ptid: 11, name: Temperatur, control_type: number }
  - { ptid: 12, name: Temperatur, control_type: number, writable: true }
  - { ptid: 13, name: Kesselleistung, control_type: number }
  - ptid: 14
    name: Betriebsart
    control_type: list
    writable: true
    options:
      - { value: 0, label: Aus }
      - { value: 1, label: Automatik }
  - { ptid: 15, name: Brennerstarts, control_type: number, writable: true }
  - { ptid: 16, name: Raumsoll, control_type: number, writable: true }
  - { ptid: 21, name: Außentemperatur, control_type: number }

converters:
  - { ctid: 11, family: numeric, type: SS10, telegram: 1 }
  - { ctid: 12, family: numeric, type: SS10, telegram: 2 }
  - { ctid: 13, family: numeric, type: US, telegram: 3 }
  - { ctid: 14, family: numeric, type: US, telegram: 4 }
  - { ctid: 15, family: numeric32, type: US, telegram_low: 5, telegram_high: 6 }
  - { ctid: 16, family: numeric, type: SS10, telegram: 7, service_read: 1, service_write: 2 }
  - { ctid: 21, family: numeric, type: SS10, telegram: 1 }

translations:
  Automatik: Automatic
  Betriebsart: Mode
`

func newTestRegistry(t *testing.T, configs []Config, opts Options) *Registry {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("catalog.Parse() error = %v", err)
	}
	r, err := NewRegistry(cat, configs, opts, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r
}

func hgRegistry(t *testing.T) *Registry {
	t.Helper()
	r := newTestRegistry(t, []Config{{ReadBusAddress: "0x08", Template: "HG"}}, Options{})
	if n, err := r.AddDevice(testIP, 0x08); err != nil || n != 1 {
		t.Fatalf("AddDevice() = %d, %v", n, err)
	}
	return r
}

func param(t *testing.T, r *Registry, ptid int) *RunningParameter {
	t.Helper()
	for _, d := range r.devices {
		for _, p := range d.Parameters {
			if p.PTID() == ptid {
				return p
			}
		}
	}
	t.Fatalf("parameter %d not found", ptid)
	return nil
}

func intPtr(v int) *int { return &v }

// ─── Naming and addresses ──────────────────────────────────────────

func TestMQTTName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Kesseltemperatur", "Kesseltemperatur"},
		{"Warmwasser Solltemperatur (°C)", "Warmwasser_Solltemperatur_C"},
		{"Außentemperatur", "Aussentemperatur"},
		{"Vorlauf Ölkessel", "Vorlauf_Oelkessel"},
		{"Kühlung/Heizung", "KuehlungHeizung"},
		{"BM-2", "BM-2"},
	}
	for _, tt := range tests {
		if got := MQTTName(tt.in); got != tt.want {
			t.Errorf("MQTTName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseBusAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    BusAddress
		wantErr bool
	}{
		{"0x35", 0x35, false},
		{"0X0a", 0x0A, false},
		{"08", 0x08, false},
		{"", 0, true},
		{"0x", 0, true},
		{"0x100", 0, true},
		{"zz", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBusAddress(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBusAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidBusAddress) {
			t.Errorf("ParseBusAddress(%q) error = %v, want ErrInvalidBusAddress", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseBusAddress(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if s := BusAddress(0x3).String(); s != "0x03" {
		t.Errorf("String() = %q, want 0x03", s)
	}
}

// ─── AddDevice ─────────────────────────────────────────────────────

func TestAddDeviceDerivesWriteAddress(t *testing.T) {
	r := newTestRegistry(t, []Config{
		{ReadBusAddress: "0x35", Template: "HG"},
		{ReadBusAddress: "0x08", WriteBusAddress: "0x10", Template: "1"},
	}, Options{})

	if _, err := r.AddDevice(testIP, 0x35); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if _, err := r.AddDevice(testIP, 0x08); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	devices := r.Devices()
	if len(devices) != 2 {
		t.Fatalf("Devices() = %d, want 2", len(devices))
	}
	if devices[0].WriteBusAddress != 0x30 {
		t.Errorf("derived write address = %s, want 0x30", devices[0].WriteBusAddress)
	}
	if devices[1].WriteBusAddress != 0x10 {
		t.Errorf("explicit write address = %s, want 0x10", devices[1].WriteBusAddress)
	}
	if devices[0].Topic != "Wolf/192.168.1.40/HG_0x35" {
		t.Errorf("Topic = %q", devices[0].Topic)
	}
}

func TestAddDeviceIsIdempotent(t *testing.T) {
	r := hgRegistry(t)
	n, err := r.AddDevice(testIP, 0x08)
	if err != nil || n != 0 {
		t.Errorf("second AddDevice() = %d, %v, want 0, nil", n, err)
	}
	if got := len(r.Devices()); got != 1 {
		t.Errorf("Devices() = %d, want 1", got)
	}
}

func TestAddDeviceUnconfiguredAddress(t *testing.T) {
	r := newTestRegistry(t, []Config{{ReadBusAddress: "0x08", Template: "HG"}}, Options{})
	n, err := r.AddDevice(testIP, 0x09)
	if err != nil || n != 0 {
		t.Errorf("AddDevice() = %d, %v, want 0, nil", n, err)
	}
}

func TestAddDeviceAllowList(t *testing.T) {
	r := newTestRegistry(t, []Config{{ReadBusAddress: "0x08", Template: "HG", Parameters: []int{13, 14}}}, Options{})
	if _, err := r.AddDevice(testIP, 0x08); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if got := r.Devices()[0].Parameters; got != 2 {
		t.Errorf("Parameters = %d, want 2", got)
	}
}

func TestNewRegistryErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"bad read address", Config{ReadBusAddress: "xyz", Template: "HG"}, ErrInvalidBusAddress},
		{"underflowing write address", Config{ReadBusAddress: "0x03", Template: "HG"}, ErrInvalidBusAddress},
		{"unknown template", Config{ReadBusAddress: "0x08", Template: "Solar"}, ErrUnknownTemplate},
		{"parameter outside template", Config{ReadBusAddress: "0x08", Template: "HG", Parameters: []int{21}}, ErrInvalidConfig},
	}

	cat, err := catalog.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("catalog.Parse() error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(cat, []Config{tt.cfg}, Options{}, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewRegistry() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTranslatedNames(t *testing.T) {
	r := newTestRegistry(t, []Config{{ReadBusAddress: "0x08", Template: "HG"}}, Options{Translate: true, TopicPrefix: "Heizung"})
	if _, err := r.AddDevice(testIP, 0x08); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	p := param(t, r, 14)
	if p.Name != "Mode" || p.MQTTName != "Mode" {
		t.Errorf("translated name = %q/%q, want Mode", p.Name, p.MQTTName)
	}
	if topic := r.Devices()[0].Topic; topic != "Heizung/192.168.1.40/HG_0x08" {
		t.Errorf("Topic = %q", topic)
	}
}

// ─── Duplicate names ───────────────────────────────────────────────

func TestDuplicateNames(t *testing.T) {
	r := hgRegistry(t)

	if !param(t, r, 11).IsDuplicate || !param(t, r, 12).IsDuplicate {
		t.Error("both Temperatur parameters must be flagged duplicate")
	}
	if param(t, r, 13).IsDuplicate {
		t.Error("unique parameter flagged duplicate")
	}

	r.ProcessRead(0x08, 1, nil, 0xD7, 0x00)
	r.ProcessRead(0x08, 2, nil, 0x64, 0x00)
	r.ProcessRead(0x08, 3, nil, 0x2A, 0x00)

	batch, err := r.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	topics := make(map[string]any)
	for _, dp := range batch.Datapoints {
		topics[dp.Topic] = dp.Value
	}
	base := "Wolf/192.168.1.40/HG_0x08/"
	if topics[base+"Temperatur/11"] != 21.5 {
		t.Errorf("Temperatur/11 = %v, want 21.5", topics[base+"Temperatur/11"])
	}
	if topics[base+"Temperatur/12"] != 10.0 {
		t.Errorf("Temperatur/12 = %v, want 10", topics[base+"Temperatur/12"])
	}
	if topics[base+"Kesselleistung"] != 42 {
		t.Errorf("Kesselleistung = %v, want 42", topics[base+"Kesselleistung"])
	}
	if _, ok := topics[base+"Temperatur"]; ok {
		t.Error("duplicate published without PTID segment")
	}

	if len(batch.Documents) != 1 {
		t.Fatalf("Documents = %d, want 1", len(batch.Documents))
	}
	nested, ok := batch.Documents[0].Values["Temperatur"].(map[string]any)
	if !ok || nested["11"] != 21.5 || nested["12"] != 10.0 {
		t.Errorf("document Temperatur = %v", batch.Documents[0].Values["Temperatur"])
	}

	// Writes need the PTID segment as well.
	writes, err := r.WriteRequest(batch.Documents[0].Topic, []string{"Temperatur"}, "20")
	if err != nil || len(writes) != 0 {
		t.Errorf("write without PTID = %v, %v, want none", writes, err)
	}
	writes, err = r.WriteRequest(batch.Documents[0].Topic, []string{"Temperatur", "11"}, "20")
	if err != nil || len(writes) != 0 {
		t.Errorf("write to read-only duplicate = %v, %v, want none", writes, err)
	}
	writes, err = r.WriteRequest(batch.Documents[0].Topic, []string{"Temperatur", "12"}, "20")
	if err != nil {
		t.Fatalf("WriteRequest() error = %v", err)
	}
	if len(writes) != 1 || writes[0].Telegram.ID != 2 || writes[0].Telegram.Word() != 200 {
		t.Errorf("WriteRequest() = %v, want telegram 2 = 200", writes)
	}
}

// ─── Routing ───────────────────────────────────────────────────────

func TestProcessReadServiceFilter(t *testing.T) {
	r := hgRegistry(t)
	p := param(t, r, 16)

	r.ProcessRead(0x08, 7, intPtr(9), 0x10, 0x00)
	if p.Converter.HasValue() {
		t.Error("mismatched service number was applied")
	}
	r.ProcessRead(0x08, 7, intPtr(1), 0x10, 0x00)
	if !p.Converter.HasValue() {
		t.Error("matching service number was not applied")
	}

	// Unqualified parameters skip qualified telegrams.
	r.ProcessRead(0x08, 3, intPtr(1), 0x01, 0x00)
	if param(t, r, 13).Converter.HasValue() {
		t.Error("qualified telegram applied to unqualified parameter")
	}
}

func TestProcessWriteUsesWriteAddress(t *testing.T) {
	r := hgRegistry(t)
	p := param(t, r, 13)

	r.ProcessWrite(0x08, 3, nil, 0x01, 0x00)
	if p.Converter.HasValue() {
		t.Error("write acknowledged on the read address was applied")
	}
	r.ProcessWrite(0x03, 3, nil, 0x01, 0x00)
	if !p.Converter.HasValue() {
		t.Error("write acknowledged on the write address was not applied")
	}

	r.ProcessWrite(0x03, 7, intPtr(1), 0x01, 0x00)
	if param(t, r, 16).Converter.HasValue() {
		t.Error("read service number accepted for a write")
	}
	r.ProcessWrite(0x03, 7, intPtr(2), 0x01, 0x00)
	if !param(t, r, 16).Converter.HasValue() {
		t.Error("write service number rejected")
	}
}

func TestReadRequests(t *testing.T) {
	r := hgRegistry(t)

	reqs := r.ReadRequests(0x08)
	ids := make([]int, 0, len(reqs))
	for _, q := range reqs {
		ids = append(ids, q.TelegramID)
		if q.BusAddress != 0x08 {
			t.Errorf("BusAddress = %s, want 0x08", q.BusAddress)
		}
	}
	want := []int{1, 2, 3, 4, 5, 6, 7}
	if len(ids) != len(want) {
		t.Fatalf("ReadRequests() ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ReadRequests() ids = %v, want %v", ids, want)
		}
	}
	if svc := reqs[6].Service; svc == nil || *svc != 1 {
		t.Errorf("telegram 7 service = %v, want 1", svc)
	}

	if got := r.ReadRequests(0x09); len(got) != 0 {
		t.Errorf("ReadRequests(unknown) = %v, want empty", got)
	}
}

// ─── Collect ───────────────────────────────────────────────────────

func TestCollectListParameter(t *testing.T) {
	r := hgRegistry(t)
	r.ProcessRead(0x08, 4, nil, 0x01, 0x00)

	batch, err := r.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	topics := make(map[string]any)
	for _, dp := range batch.Datapoints {
		topics[dp.Topic] = dp.Value
	}
	base := "Wolf/192.168.1.40/HG_0x08/Betriebsart"
	if topics[base+"/value"] != 1 || topics[base+"/text"] != "Automatik" {
		t.Errorf("datapoints = %v", topics)
	}
	node, ok := batch.Documents[0].Values["Betriebsart"].(map[string]any)
	if !ok || node["value"] != 1 || node["text"] != "Automatik" {
		t.Errorf("document Betriebsart = %v", batch.Documents[0].Values["Betriebsart"])
	}

	again, err := r.Collect()
	if err != nil || !again.Empty() {
		t.Errorf("second Collect() = %+v, %v, want empty", again, err)
	}
}

func TestCollectListValueWithoutLabel(t *testing.T) {
	r := hgRegistry(t)
	r.ProcessRead(0x08, 4, nil, 0x05, 0x00)

	batch, err := r.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	topics := make(map[string]any)
	for _, dp := range batch.Datapoints {
		topics[dp.Topic] = dp.Value
	}
	base := "Wolf/192.168.1.40/HG_0x08/Betriebsart"
	if _, ok := topics[base]; ok {
		t.Errorf("value published on bare topic %s", base)
	}
	if topics[base+"/value"] != 5 || topics[base+"/text"] != "5" {
		t.Errorf("datapoints = %v", topics)
	}
	node, ok := batch.Documents[0].Values["Betriebsart"].(map[string]any)
	if !ok || node["value"] != 5 || node["text"] != "5" {
		t.Errorf("document Betriebsart = %v", batch.Documents[0].Values["Betriebsart"])
	}
}

func TestCollectDecodeError(t *testing.T) {
	cat, err := catalog.Parse([]byte(`
parameters: [{ ptid: 1, name: Modus }]
converters: [{ ctid: 1, family: bitfield, type: Bit0to3, telegram: 9 }]
devices: [{ id: 1, name: X, parameters: [1] }]
`))
	if err != nil {
		t.Fatalf("catalog.Parse() error = %v", err)
	}
	r, err := NewRegistry(cat, []Config{{ReadBusAddress: "0x08", Template: "X"}}, Options{}, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if _, err := r.AddDevice(testIP, 0x08); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	r.ProcessRead(0x08, 9, nil, 0x01, 0x01)
	if _, err := r.Collect(); !errors.Is(err, converter.ErrInvariantViolation) {
		t.Errorf("Collect() error = %v, want ErrInvariantViolation", err)
	}
}

// ─── Write requests ────────────────────────────────────────────────

func TestWriteRequest(t *testing.T) {
	r := hgRegistry(t)
	topic := "Wolf/192.168.1.40/HG_0x08"

	tests := []struct {
		name      string
		topic     string
		path      []string
		value     string
		wantWords map[int]uint16
	}{
		{"raw list value", topic, []string{"Betriebsart"}, "1", map[int]uint16{4: 1}},
		{"list value segment", topic, []string{"Betriebsart", "value"}, "0", map[int]uint16{4: 0}},
		{"list label", topic, []string{"Betriebsart", "text"}, "Automatik", map[int]uint16{4: 1}},
		{"unknown label", topic, []string{"Betriebsart", "text"}, "Sommer", nil},
		{"two-word value", topic, []string{"Brennerstarts"}, "65537", map[int]uint16{5: 1, 6: 1}},
		{"read-only", topic, []string{"Kesselleistung"}, "1", nil},
		{"unknown parameter", topic, []string{"Vorlauf"}, "1", nil},
		{"unknown device", "Wolf/10.0.0.1/HG_0x08", []string{"Betriebsart"}, "1", nil},
		{"empty path", topic, nil, "1", nil},
		{"text on non-list", topic, []string{"Brennerstarts", "text"}, "1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writes, err := r.WriteRequest(tt.topic, tt.path, tt.value)
			if err != nil {
				t.Fatalf("WriteRequest() error = %v", err)
			}
			if len(writes) != len(tt.wantWords) {
				t.Fatalf("WriteRequest() = %v, want %d writes", writes, len(tt.wantWords))
			}
			for _, w := range writes {
				if w.BusAddress != 0x03 {
					t.Errorf("BusAddress = %s, want 0x03", w.BusAddress)
				}
				if want, ok := tt.wantWords[w.Telegram.ID]; !ok || w.Telegram.Word() != want {
					t.Errorf("write %v, want words %v", w.Telegram, tt.wantWords)
				}
			}
		})
	}
}

func TestWriteRequestParseError(t *testing.T) {
	r := hgRegistry(t)
	_, err := r.WriteRequest("Wolf/192.168.1.40/HG_0x08", []string{"Raumsoll"}, "warm")
	if !errors.Is(err, converter.ErrParse) {
		t.Errorf("WriteRequest() error = %v, want ErrParse", err)
	}
}

func TestWriteRequestCarriesWriteService(t *testing.T) {
	r := hgRegistry(t)
	writes, err := r.WriteRequest("Wolf/192.168.1.40/HG_0x08", []string{"Raumsoll"}, "21.5")
	if err != nil {
		t.Fatalf("WriteRequest() error = %v", err)
	}
	if len(writes) != 1 || writes[0].Service == nil || *writes[0].Service != 2 {
		t.Errorf("WriteRequest() = %+v, want service 2", writes)
	}
}

func TestWriteRequestJSON(t *testing.T) {
	r := hgRegistry(t)
	topic := "Wolf/192.168.1.40/HG_0x08"

	writes, err := r.WriteRequestJSON(topic, map[string]any{
		"Betriebsart": map[string]any{"text": "Aus"},
		"Temperatur":  map[string]any{"12": 19.5},
		"Raumsoll":    "20",
		"Unbekannt":   1.0,
	})
	if err != nil {
		t.Fatalf("WriteRequestJSON() error = %v", err)
	}

	got := make(map[int]uint16)
	for _, w := range writes {
		got[w.Telegram.ID] = w.Telegram.Word()
	}
	want := map[int]uint16{4: 0, 2: 195, 7: 200}
	if len(got) != len(want) {
		t.Fatalf("WriteRequestJSON() = %v, want %v", got, want)
	}
	for id, w := range want {
		if got[id] != w {
			t.Errorf("telegram %d = %d, want %d", id, got[id], w)
		}
	}
}

func TestWriteRequestTranslatedLabel(t *testing.T) {
	r := newTestRegistry(t, []Config{{ReadBusAddress: "0x08", Template: "HG"}}, Options{Translate: true})
	if _, err := r.AddDevice(testIP, 0x08); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	writes, err := r.WriteRequest("Wolf/192.168.1.40/HG_0x08", []string{"Mode", "text"}, "automatic")
	if err != nil {
		t.Fatalf("WriteRequest() error = %v", err)
	}
	if len(writes) != 1 || writes[0].Telegram.Word() != 1 {
		t.Errorf("WriteRequest() = %v, want telegram 4 = 1", writes)
	}
}
