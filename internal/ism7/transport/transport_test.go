package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	got := Encode(KeepAlive, []byte{0x00, 0x07})
	want := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x0F, 0x00, 0x07}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % X, want % X", got, want)
	}
}

func TestReaderPartialDelivery(t *testing.T) {
	frame := Encode(TgrBundleResp, []byte("<tbr"))
	if len(frame) != 10 {
		t.Fatalf("frame length = %d, want 10", len(frame))
	}

	var r Reader
	r.Feed(frame[:3])
	if _, ok, err := r.Next(); ok || err != nil {
		t.Fatalf("Next() after 3 bytes = %v, %v, want no frame", ok, err)
	}

	r.Feed(frame[3:])
	f, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, want frame", ok, err)
	}
	if f.Type != TgrBundleResp || string(f.Payload) != "<tbr" {
		t.Errorf("Next() = %v %q", f.Type, f.Payload)
	}

	if _, ok, _ := r.Next(); ok {
		t.Error("Next() returned a second frame")
	}
	if r.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", r.Buffered())
	}
}

func TestReaderMultipleFramesAndTrailingPartial(t *testing.T) {
	var stream []byte
	stream = append(stream, Encode(DirectLogonResp, []byte("a"))...)
	stream = append(stream, Encode(SystemconfigResp, []byte("bc"))...)
	tail := Encode(KeepAlive, []byte{0x00, 0x01})
	stream = append(stream, tail[:4]...)

	var r Reader
	r.Feed(stream)

	var got []Frame
	for {
		f, ok, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			break
		}
		got = append(got, f)
	}

	if len(got) != 2 || got[0].Type != DirectLogonResp || got[1].Type != SystemconfigResp {
		t.Fatalf("frames = %+v", got)
	}
	if r.Buffered() != 4 {
		t.Fatalf("Buffered() = %d, want 4", r.Buffered())
	}

	r.Feed(tail[4:])
	f, ok, err := r.Next()
	if err != nil || !ok || f.Type != KeepAlive || !bytes.Equal(f.Payload, []byte{0x00, 0x01}) {
		t.Errorf("Next() = %+v, %v, %v", f, ok, err)
	}
}

func TestReaderPayloadDoesNotAlias(t *testing.T) {
	var r Reader
	r.Feed(Encode(DirectLogonResp, []byte("xy")))
	f, _, _ := r.Next()
	r.Feed(Encode(DirectLogonResp, []byte("zz")))
	if string(f.Payload) != "xy" {
		t.Errorf("payload changed to %q after Feed", f.Payload)
	}
}

func TestReaderZeroLength(t *testing.T) {
	var r Reader
	r.Feed(Encode(TgrBundleResp, nil))
	f, ok, err := r.Next()
	if err != nil || !ok || len(f.Payload) != 0 {
		t.Errorf("Next() = %+v, %v, %v, want empty frame", f, ok, err)
	}
}

func TestReaderFramingError(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
	}{
		{"negative", []byte{0xFF, 0xFF, 0xFF, 0xFE, 0x00, 0x03}},
		{"absurd", []byte{0x10, 0x00, 0x00, 0x00, 0x00, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Reader
			r.Feed(tt.header)
			if _, _, err := r.Next(); !errors.Is(err, ErrFraming) {
				t.Errorf("Next() error = %v, want ErrFraming", err)
			}
		})
	}
}

func TestPayloadTypeString(t *testing.T) {
	if s := KeepAlive.String(); s != "KeepAlive" {
		t.Errorf("String() = %q", s)
	}
	if s := PayloadType(42).String(); s != "PayloadType(42)" {
		t.Errorf("String() = %q", s)
	}
}
