package converter

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func mustNew(t *testing.T, tmpl Template) Converter {
	t.Helper()
	c, err := New(tmpl, nil)
	if err != nil {
		t.Fatalf("New(%+v) error = %v", tmpl, err)
	}
	return c
}

func intPtr(v int) *int { return &v }

// ─── Single numeric ────────────────────────────────────────────────

func TestNumericDecode(t *testing.T) {
	tests := []struct {
		kind      string
		low, high byte
		want      any
	}{
		{KindUS, 0xFF, 0xFF, 65535},
		{KindSS, 0xFF, 0xFF, -1},
		{KindSS10, 0xD7, 0x00, 21.5},
		{KindSS10, 0x85, 0xFF, -12.3},
		{KindUS10, 0xE8, 0x03, 100.0},
		{KindSS100, 0x83, 0xFF, -1.25},
		{KindSSPR, 0xFF, 0x00, 1.0},
		{KindUS4, 0x09, 0x00, 2.25},
		{KindIntDiv60, 0x5A, 0x00, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			c := mustNew(t, Template{Family: FamilyNumeric, Type: tt.kind, Telegram: 12})
			c.AddTelegram(12, tt.low, tt.high)
			if !c.HasValue() {
				t.Fatal("HasValue() = false after AddTelegram")
			}
			got, err := c.Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Value() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
			if c.HasValue() {
				t.Error("HasValue() = true after Value()")
			}
		})
	}
}

func TestNumericRoundTrip(t *testing.T) {
	tests := []struct {
		kind  string
		value string
		want  float64
		prec  float64
	}{
		{KindUS, "1234", 1234, 0},
		{KindSS, "-200", -200, 0},
		{KindSS10, "21.5", 21.5, 0.05},
		{KindSS10, "-12.3", -12.3, 0.05},
		{KindUS10, "55.5", 55.5, 0.05},
		{KindSS100, "-1.25", -1.25, 0.005},
		{KindUS4, "2.25", 2.25, 0.125},
		{KindIntDiv60, "1.5", 1.5, 1.0 / 120},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.value, func(t *testing.T) {
			c := mustNew(t, Template{Family: FamilyNumeric, Type: tt.kind, Telegram: 7})
			writes, err := c.Write(tt.value)
			if err != nil {
				t.Fatalf("Write(%q) error = %v", tt.value, err)
			}
			if len(writes) != 1 || writes[0].ID != 7 {
				t.Fatalf("Write(%q) = %v, want one telegram for id 7", tt.value, writes)
			}

			c.AddTelegram(writes[0].ID, writes[0].Low, writes[0].High)
			got, err := c.Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			var f float64
			switch v := got.(type) {
			case int:
				f = float64(v)
			case float64:
				f = v
			default:
				t.Fatalf("Value() type = %T", got)
			}
			if math.Abs(f-tt.want) > tt.prec {
				t.Errorf("round trip %q = %v, want %v", tt.value, f, tt.want)
			}
		})
	}
}

func TestSSPRAsymmetricScale(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyNumeric, Type: KindSSPR, Telegram: 3})

	writes, err := c.Write("1")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// 1 * 256
	if writes[0].Low != 0x00 || writes[0].High != 0x01 {
		t.Errorf("Write(1) = %v, want Low:0x00 High:0x01", writes[0])
	}

	// 255 / 255
	c.AddTelegram(3, 0xFF, 0x00)
	got, err := c.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if got != 1.0 {
		t.Errorf("Value() = %v, want 1", got)
	}

	// Writing back what was read does not reproduce the word.
	c.AddTelegram(3, writes[0].Low, writes[0].High)
	got, _ = c.Value()
	if f := got.(float64); math.Abs(f-256.0/255.0) > 1e-9 {
		t.Errorf("Value() = %v, want 256/255", f)
	}
}

func TestNumericWriteErrors(t *testing.T) {
	tests := []struct {
		name  string
		kind  string
		value string
		want  error
	}{
		{"not a number", KindSS10, "warm", ErrParse},
		{"empty", KindUS, "", ErrParse},
		{"signed overflow", KindSS, "40000", ErrParse},
		{"unsigned negative", KindUS, "-1", ErrParse},
		{"unknown kind", "XX9", "1", ErrUnsupportedConversionKind},
		{"bit field", KindBit0to3, "1", ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, Template{Family: FamilyNumeric, Type: tt.kind, Telegram: 1})
			_, err := c.Write(tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("Write(%q) error = %v, want %v", tt.value, err, tt.want)
			}
		})
	}
}

func TestNumericCommaDecimal(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyNumeric, Type: KindSS10, Telegram: 1})
	writes, err := c.Write("21,5")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if writes[0].Word() != 215 {
		t.Errorf("Write(21,5) word = %d, want 215", writes[0].Word())
	}
}

func TestUnknownKindFailsOnlyDecode(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyNumeric, Type: "XX9", Telegram: 1})
	c.AddTelegram(1, 0x01, 0x00)
	if _, err := c.Value(); !errors.Is(err, ErrUnsupportedConversionKind) {
		t.Errorf("Value() error = %v, want ErrUnsupportedConversionKind", err)
	}
}

func TestValueNotReady(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyNumeric, Type: KindUS, Telegram: 1})
	if _, err := c.Value(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Value() error = %v, want ErrNotReady", err)
	}
}

// ─── Bit fields ────────────────────────────────────────────────────

func TestBitFields(t *testing.T) {
	tests := []struct {
		kind      string
		low, high byte
		want      int
		wantErr   error
	}{
		{KindBit0to3, 0x3F, 0x00, 0xF, nil},
		{KindBit4to7, 0x3F, 0x00, 0x3, nil},
		{KindBit0to3, 0x3F, 0x01, 0, ErrInvariantViolation},
		{KindBit4to7, 0x00, 0x80, 0, ErrInvariantViolation},
	}

	for _, tt := range tests {
		c := mustNew(t, Template{Family: FamilyBitField, Type: tt.kind, Telegram: 9})
		c.AddTelegram(9, tt.low, tt.high)
		got, err := c.Value()
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s(0x%02X,0x%02X) error = %v, want %v", tt.kind, tt.low, tt.high, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s Value() error = %v", tt.kind, err)
		}
		if got != tt.want {
			t.Errorf("%s(0x%02X) = %v, want %v", tt.kind, tt.low, got, tt.want)
		}
	}
}

// ─── Binary, date, time ────────────────────────────────────────────

func TestBinaryFlag(t *testing.T) {
	tests := []struct {
		name      string
		on        *int
		low, high byte
		want      bool
	}{
		{"bit set, default on", nil, 0x08, 0x00, true},
		{"bit clear, default on", nil, 0xF7, 0xFF, false},
		{"bit clear, on=0", intPtr(0), 0x00, 0x00, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, Template{Family: FamilyBinary, Telegram: 4, Bit: 3, OnValue: tt.on})
			c.AddTelegram(4, tt.low, tt.high)
			got, err := c.Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Value() = %v, want %v", got, tt.want)
			}
			if _, err := c.Write("1"); !errors.Is(err, ErrUnsupported) {
				t.Errorf("Write() error = %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestBinaryFlagBitOutOfRange(t *testing.T) {
	_, err := New(Template{Family: FamilyBinary, Telegram: 4, Bit: 16}, nil)
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("New() error = %v, want ErrInvalidTemplate", err)
	}
}

func TestDate(t *testing.T) {
	// 2024-03-15: 24<<9 | 3<<5 | 15 = 0x306F
	c := mustNew(t, Template{Family: FamilyDate, Telegram: 20})
	c.AddTelegram(20, 0x6F, 0x30)
	got, err := c.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if got != "2024-03-15" {
		t.Errorf("Value() = %v, want 2024-03-15", got)
	}
	if _, err := c.Write("2024-03-15"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Write() error = %v, want ErrUnsupported", err)
	}
}

func TestTime(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyTime, Telegram: 21})
	c.AddTelegram(21, 5, 7)
	got, err := c.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if got != "07:05" {
		t.Errorf("Value() = %v, want 07:05", got)
	}
}

// ─── Numeric32 ─────────────────────────────────────────────────────

func TestNumeric32(t *testing.T) {
	orders := []struct {
		name  string
		first int
	}{
		{"low first", 30},
		{"high first", 31},
	}

	for _, o := range orders {
		t.Run(o.name, func(t *testing.T) {
			c := mustNew(t, Template{Family: FamilyNumeric32, Type: KindUS, TelegramLow: 30, TelegramHigh: 31})

			words := map[int][2]byte{30: {0x34, 0x12}, 31: {0x02, 0x00}}
			second := 30
			if o.first == 30 {
				second = 31
			}

			c.AddTelegram(o.first, words[o.first][0], words[o.first][1])
			if c.HasValue() {
				t.Fatal("HasValue() = true with one word")
			}
			c.AddTelegram(second, words[second][0], words[second][1])
			if !c.HasValue() {
				t.Fatal("HasValue() = false with both words")
			}

			got, err := c.Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if got != uint32(0x00021234) {
				t.Errorf("Value() = %v, want %d", got, 0x00021234)
			}

			if c.HasValue() {
				t.Error("HasValue() = true after Value()")
			}
			c.AddTelegram(30, 0x01, 0x00)
			if c.HasValue() {
				t.Error("HasValue() = true after refreshing only the low word")
			}
		})
	}
}

func TestNumeric32Write(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyNumeric32, Type: KindUS, TelegramLow: 30, TelegramHigh: 31})
	writes, err := c.Write("70000")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	want := []Telegram{{ID: 30, Low: 0x70, High: 0x11}, {ID: 31, Low: 0x01, High: 0x00}}
	if len(writes) != len(want) {
		t.Fatalf("Write() = %v, want %v", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("Write()[%d] = %v, want %v", i, writes[i], want[i])
		}
	}
}

func TestNumeric32SameTelegrams(t *testing.T) {
	_, err := New(Template{Family: FamilyNumeric32, Type: KindUS, TelegramLow: 5, TelegramHigh: 5}, nil)
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("New() error = %v, want ErrInvalidTemplate", err)
	}
}

// ─── Mixer ─────────────────────────────────────────────────────────

func TestMixer(t *testing.T) {
	tests := []struct {
		name        string
		open, close byte
		want        string
	}{
		{"open only", 1, 0, MixerOpened},
		{"close only", 0, 1, MixerClosed},
		{"neither", 0, 0, MixerIdle},
		{"both", 1, 1, MixerOpened},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustNew(t, Template{Family: FamilyMixer, Open: 40, Close: 41})
			c.AddTelegram(40, tt.open, 0)
			if c.HasValue() {
				t.Fatal("HasValue() = true before close word")
			}
			c.AddTelegram(41, tt.close, 0)
			got, err := c.Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Value() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMixerRetainsWords(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyMixer, Open: 40, Close: 41})
	c.AddTelegram(40, 0, 0)
	c.AddTelegram(41, 1, 0)
	if got, _ := c.Value(); got != MixerClosed {
		t.Fatalf("Value() = %v, want closed", got)
	}
	if c.HasValue() {
		t.Fatal("HasValue() = true after Value()")
	}

	c.AddTelegram(40, 1, 0)
	if !c.HasValue() {
		t.Fatal("HasValue() = false after refreshing one word")
	}
	if got, _ := c.Value(); got != MixerOpened {
		t.Errorf("Value() = %v, want opened", got)
	}
}

// ─── Multi-word ────────────────────────────────────────────────────

func TestSolarYield(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyMulti, Type: MultiSolarYield, Telegrams: []int{102, 100, 101}})

	if ids := c.TelegramIDs(); len(ids) != 3 || ids[0] != 100 || ids[2] != 102 {
		t.Fatalf("TelegramIDs() = %v, want [100 101 102]", ids)
	}

	c.AddTelegram(100, 5, 0)
	if !c.HasValue() {
		t.Fatal("HasValue() = false after first word")
	}
	c.AddTelegram(101, 2, 0)
	c.AddTelegram(102, 1, 0)

	got, err := c.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if got != int64(1_002_005) {
		t.Errorf("Value() = %v, want 1002005", got)
	}
	if c.HasValue() {
		t.Error("HasValue() = true after Value()")
	}

	c.AddTelegram(100, 6, 0)
	if got, _ := c.Value(); got != int64(1_002_006) {
		t.Errorf("Value() after refresh = %v, want 1002006", got)
	}

	if _, err := c.Write("1"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Write() error = %v, want ErrUnsupported", err)
	}
}

type countingLogger struct {
	mu    sync.Mutex
	count int
}

func (l *countingLogger) Debug(string, ...any) {
	l.mu.Lock()
	l.count++
	l.mu.Unlock()
}

func TestMultiPlaceholders(t *testing.T) {
	for _, variant := range []string{MultiDateTime, MultiTimeProgram, MultiText} {
		t.Run(variant, func(t *testing.T) {
			log := &countingLogger{}
			c, err := New(Template{Family: FamilyMulti, Type: variant, Telegrams: []int{1, 2}}, log)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !c.CanProcess(2) {
				t.Error("CanProcess(2) = false")
			}
			c.AddTelegram(1, 1, 1)
			c.AddTelegram(2, 1, 1)
			c.AddTelegram(3, 1, 1)
			if log.count != 2 {
				t.Errorf("logged %d updates, want 2", log.count)
			}
			if c.HasValue() {
				t.Error("HasValue() = true")
			}
			if _, err := c.Value(); !errors.Is(err, ErrNotImplemented) {
				t.Errorf("Value() error = %v, want ErrNotImplemented", err)
			}
			if _, err := c.Write("x"); !errors.Is(err, ErrNotImplemented) {
				t.Errorf("Write() error = %v, want ErrNotImplemented", err)
			}
		})
	}
}

// ─── Null, clone, families ─────────────────────────────────────────

func TestNull(t *testing.T) {
	c := mustNew(t, Template{Family: FamilyNull})
	if len(c.TelegramIDs()) != 0 || c.CanProcess(0) || c.HasValue() {
		t.Error("null converter declares telegrams or has a value")
	}
	if _, err := c.Value(); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Value() error = %v, want ErrNotImplemented", err)
	}
	if _, err := c.Write("1"); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Write() error = %v, want ErrNotImplemented", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	templates := []Template{
		{Family: FamilyNumeric, Type: KindUS, Telegram: 1},
		{Family: FamilyNumeric32, Type: KindUS, TelegramLow: 1, TelegramHigh: 2},
		{Family: FamilyMixer, Open: 1, Close: 2},
		{Family: FamilyMulti, Type: MultiSolarYield, Telegrams: []int{1, 2}},
	}

	for _, tmpl := range templates {
		t.Run(string(tmpl.Family), func(t *testing.T) {
			orig := mustNew(t, tmpl)
			clone := orig.Clone()
			for _, id := range orig.TelegramIDs() {
				orig.AddTelegram(id, 1, 0)
			}
			if !orig.HasValue() {
				t.Fatal("original HasValue() = false")
			}
			if clone.HasValue() {
				t.Error("clone shares state with original")
			}
		})
	}
}

func TestUnknownFamily(t *testing.T) {
	_, err := New(Template{CTID: 9, Family: "weekday"}, nil)
	if !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("New() error = %v, want ErrUnknownFamily", err)
	}
}
