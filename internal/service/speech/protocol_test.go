package speech

import (
	"bytes"
	"compress/gzip"
	"testing"
)

func TestFrameEncoding(t *testing.T) {
	cases := []struct {
		name  string
		frame *Frame
	}{
		{name: "request", frame: NewRequestFrame([]byte(`{"text":"hi"}`))},
		{name: "sequenced audio", frame: &Frame{Type: AudioOnlyServerResponse, Flags: NegativeSequenceNumber, Sequence: -3, Payload: []byte{1, 2}}},
		{name: "session event", frame: &Frame{Type: FullServerResponse, Flags: WithEvent, Event: EventTypeSessionFinished, SessionID: "s-1", Payload: []byte("{}")}},
		{name: "connection event", frame: &Frame{Type: FullServerResponse, Flags: WithEvent, Event: EventTypeConnectionStarted, ConnectID: "c-1"}},
		{name: "error", frame: &Frame{Type: ErrorMessage, ErrorCode: 42, Payload: []byte("bad")}},
	}

	for _, tc := range cases {
		decoded, err := DecodeFrame(bytes.NewReader(EncodeFrame(tc.frame)))
		if err != nil {
			t.Fatalf("%s: DecodeFrame err: %v", tc.name, err)
		}
		if decoded.Type != tc.frame.Type || decoded.Sequence != tc.frame.Sequence || decoded.Event != tc.frame.Event {
			t.Fatalf("%s: header mismatch %+v", tc.name, decoded)
		}
		if decoded.SessionID != tc.frame.SessionID || decoded.ConnectID != tc.frame.ConnectID || decoded.ErrorCode != tc.frame.ErrorCode {
			t.Fatalf("%s: metadata mismatch %+v", tc.name, decoded)
		}
		if !bytes.Equal(decoded.Payload, tc.frame.Payload) {
			t.Fatalf("%s: payload mismatch %v", tc.name, decoded.Payload)
		}
	}
}

func TestFrameLast(t *testing.T) {
	if (&Frame{Flags: PositiveSequenceNumber}).Last() {
		t.Fatalf("positive sequence is not last")
	}
	if !(&Frame{Flags: NegativeSequenceNumber}).Last() || !(&Frame{Flags: LastPacketNoSequence}).Last() {
		t.Fatalf("expected last packet")
	}
}

func TestFrameBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write([]byte("compressed body"))
	_ = w.Close()

	f := &Frame{Compression: GzipCompression, Payload: buf.Bytes()}
	body, err := f.Body()
	if err != nil {
		t.Fatalf("Body err: %v", err)
	}
	if string(body) != "compressed body" {
		t.Fatalf("body = %q", body)
	}
}

func TestDecodeFrameRejectsUnknownVersion(t *testing.T) {
	if _, err := DecodeFrame(bytes.NewReader([]byte{0x21, 0x10, 0x10, 0x00})); err == nil {
		t.Fatalf("expected version error")
	}
}
