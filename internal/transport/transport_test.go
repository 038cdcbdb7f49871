// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
	"eeg/pkg/utils"
)

func TestBatchSink(t *testing.T) {
	mock := &utils.MockTransport{}
	sink := NewBatchSink(mock, 4)

	for i := range 10 {
		sink.Push(pipeline.Output{Timestamp: float64(i), Electrode: i % 2})
	}
	if got := len(mock.Sent()); got != 2 {
		t.Fatalf("sent %d batches, want 2", got)
	}
	sink.Flush()
	sink.Flush()

	sent := mock.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent %d batches after Flush, want 3", len(sent))
	}
	sizes := []int{4, 4, 2}
	next := 0.0
	for i, m := range sent {
		batch, ok := m.(Samples)
		if !ok || batch.Type != TypeSamples {
			t.Fatalf("message %d = %T, want Samples", i, m)
		}
		if len(batch.Outputs) != sizes[i] {
			t.Errorf("batch %d has %d outputs, want %d", i, len(batch.Outputs), sizes[i])
		}
		for _, o := range batch.Outputs {
			if o.Timestamp != next {
				t.Fatalf("batch %d out of order: t=%g, want %g", i, o.Timestamp, next)
			}
			next++
		}
	}
}

func TestNewHello(t *testing.T) {
	h := NewHello("abc", pipeline.DefaultConfig())
	if h.Type != TypeHello || h.Session != "abc" || h.SamplingFrequency != 256 {
		t.Errorf("hello = %+v", h)
	}
	if strings.Join(h.Channels, ",") != "TP9,AF7,AF8,TP10" {
		t.Errorf("channels = %v", h.Channels)
	}
}

func dial(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(wst)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func waitClients(t *testing.T, wst *WebSocketTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", wst.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketTransportJSON(t *testing.T) {
	wst, err := NewWebSocketTransport("", EncodingJSON, NewHello("session-1", pipeline.DefaultConfig()))
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dial(t, wst)

	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Errorf("hello frame type = %d, want text", kind)
	}
	var hello Hello
	if err := json.Unmarshal(data, &hello); err != nil || hello.Session != "session-1" {
		t.Fatalf("hello = %s (%v)", data, err)
	}
	waitClients(t, wst, 1)

	out := pipeline.Output{Timestamp: 12.5, Electrode: 2, Amplitude: -3.25, Mean: 0.5, RMS: 1.75}
	if err := wst.Send(Samples{Type: TypeSamples, Outputs: []pipeline.Output{out}}); err != nil {
		t.Fatal(err)
	}

	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading samples: %v", err)
	}
	if !strings.Contains(string(data), `"amp":-3.25`) {
		t.Errorf("samples frame %s missing amplitude", data)
	}
	var got Samples
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Outputs) != 1 || got.Outputs[0] != out {
		t.Errorf("received %+v, want %+v", got.Outputs, out)
	}
}

func TestWebSocketTransportMsgpack(t *testing.T) {
	wst, err := NewWebSocketTransport("", EncodingMsgpack, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dial(t, wst)
	waitClients(t, wst, 1)

	out := pipeline.Output{Timestamp: 3.90625, Electrode: 1, Amplitude: 7, Mean: 0.035, RMS: 0.5}
	wst.Send(Samples{Type: TypeSamples, Outputs: []pipeline.Output{out}})

	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("frame type = %d, want binary", kind)
	}
	var got Samples
	if err := msgpack.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeSamples || len(got.Outputs) != 1 || got.Outputs[0] != out {
		t.Errorf("received %+v", got)
	}
}

func TestWebSocketTransportClientLeaves(t *testing.T) {
	wst, _ := NewWebSocketTransport("", "", nil)
	defer wst.Close()

	conn := dial(t, wst)
	waitClients(t, wst, 1)
	conn.Close()
	waitClients(t, wst, 0)
}

func TestWebSocketTransportRejectsEncoding(t *testing.T) {
	if _, err := NewWebSocketTransport("", "protobuf", nil); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestBatchSinkResetDiscardsBuffered(t *testing.T) {
	mock := &utils.MockTransport{}
	sink := NewBatchSink(mock, 4)

	for i := range 3 {
		sink.Push(pipeline.Output{Timestamp: float64(i)})
	}
	sink.Reset()
	sink.Flush()
	if got := len(mock.Sent()); got != 0 {
		t.Fatalf("sent %d batches after Reset, want 0", got)
	}

	for i := range 4 {
		sink.Push(pipeline.Output{Timestamp: float64(100 + i)})
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d batches, want 1", len(sent))
	}
	batch := sent[0].(Samples)
	if len(batch.Outputs) != 4 || batch.Outputs[0].Timestamp != 100 {
		t.Errorf("batch after Reset = %+v", batch.Outputs)
	}
}

func TestBatchSinkLogsSendError(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	t.Cleanup(func() {
		applog.SetOutput(os.Stderr)
	})

	wst, _ := NewWebSocketTransport("", "", nil)
	wst.Close()
	sink := NewBatchSink(wst, 1)
	sink.Push(pipeline.Output{})

	if !strings.Contains(buf.String(), "BatchSink: Error sending 1 outputs") {
		t.Errorf("log = %q, want the send error", buf.String())
	}
}

func TestWebSocketTransportSendAfterClose(t *testing.T) {
	wst, _ := NewWebSocketTransport("", "", nil)
	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Send("late"); err == nil {
		t.Error("expected error sending on a closed transport")
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	lt.Send(Samples{Type: TypeSamples, Outputs: []pipeline.Output{{Electrode: 0}}})
	lt.Send(NewHello("s", pipeline.DefaultConfig()))
	if lt.Sent() != 2 {
		t.Errorf("Sent() = %d, want 2", lt.Sent())
	}
	if err := lt.Close(); err != nil {
		t.Error(err)
	}
}
