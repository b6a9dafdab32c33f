package server

import (
	"bytes"
	"errors"
	"testing"
)

// fakeTransport is a minimal in-memory Transport, grounded on the
// reference FakeSocket test harness: reads are served one queued chunk
// at a time (so handshake and frame code must tolerate arbitrary
// fragmentation), writes accumulate into a buffer for assertions.
type fakeTransport struct {
	reads   [][]byte
	readErr error

	written bytes.Buffer
}

func (f *fakeTransport) Read() ([]byte, error) {
	if len(f.reads) == 0 {
		if f.readErr != nil {
			return nil, f.readErr
		}
		return nil, errors.New("fake transport: no more reads queued")
	}
	chunk := f.reads[0]
	f.reads = f.reads[1:]
	return chunk, nil
}

func (f *fakeTransport) Write(b []byte) error {
	f.written.Write(b)
	return nil
}

// chunkedBytes splits b into one-byte reads, exercising the same
// byte-at-a-time tolerance the reference fake_write_chunked helper
// checks for.
func chunkedBytes(b []byte) [][]byte {
	out := make([][]byte, len(b))
	for i := range b {
		out[i] = []byte{b[i]}
	}
	return out
}

func TestConnSendsResponseOnAccept(t *testing.T) {
	handshake := "GET /chat HTTP/1.1\n" +
		"Host: server.example.com\n" +
		"Upgrade: websocket\n" +
		"Connection: Upgrade\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\n" +
		"Origin: http://example.com\n" +
		"Sec-WebSocket-Version: 13\n\n"

	ft := &fakeTransport{reads: chunkedBytes([]byte(handshake))}
	ft.readErr = errors.New("no more data")

	conn := NewConn(ft, nil, nil)
	err := conn.Serve(nil)
	if err == nil {
		t.Fatalf("expected Serve to return once the fake transport runs dry")
	}

	want := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n" +
		"\r\n"
	if ft.written.String() != want {
		t.Fatalf("response = %q, want %q", ft.written.String(), want)
	}
}

func TestConnRejectsInvalidHandshake(t *testing.T) {
	handshake := "GET /chat HTTP/1.1\n" +
		"Host: server.example.com\n" +
		"Upgrade: !!not-websockets!!\n" +
		"Connection: Upgrade\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\n" +
		"Origin: http://example.com\n" +
		"Sec-WebSocket-Version: 13\n\n"

	ft := &fakeTransport{reads: chunkedBytes([]byte(handshake))}

	conn := NewConn(ft, nil, nil)
	err := conn.Serve(nil)
	if err == nil {
		t.Fatalf("expected rejection error")
	}

	want := "HTTP/1.1 400 Bad Request\r\n\r\n"
	if ft.written.String() != want {
		t.Fatalf("response = %q, want %q", ft.written.String(), want)
	}
}

func TestConnClosesOnTransportErrorDuringHandshake(t *testing.T) {
	ft := &fakeTransport{
		reads:   chunkedBytes([]byte("GET /chat HTTP/1.1\n")),
		readErr: errors.New("boom"),
	}

	conn := NewConn(ft, nil, nil)
	err := conn.Serve(nil)
	if err == nil {
		t.Fatalf("expected a transport error")
	}
	if ft.written.Len() != 0 {
		t.Fatalf("no response should be written when the handshake never completes")
	}
}

func TestConnEchoesPingAsPong(t *testing.T) {
	handshake := "GET /chat HTTP/1.1\n" +
		"Host: server.example.com\n" +
		"Upgrade: websocket\n" +
		"Connection: Upgrade\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\n" +
		"Sec-WebSocket-Version: 13\n\n"

	ping := Frame{Fin: true, OpCode: OpPing, Payload: []byte("hi")}.Compose()

	ft := &fakeTransport{reads: chunkedBytes([]byte(handshake))}
	ft.reads = append(ft.reads, ping)
	ft.readErr = errors.New("no more frames")

	conn := NewConn(ft, nil, nil)
	_ = conn.Serve(nil)

	all := ft.written.Bytes()
	fp := NewFrameParser()
	// Skip past the handshake response bytes by locating the double
	// CRLF terminator, then parse whatever frame bytes follow.
	idx := bytes.Index(all, []byte("\r\n\r\n"))
	if idx < 0 {
		t.Fatalf("handshake response not found in written bytes")
	}
	frameBytes := all[idx+4:]
	fp, n := fp.Parse(frameBytes)
	if !fp.IsDone() || n != len(frameBytes) {
		t.Fatalf("expected a complete pong frame, done=%v n=%d len=%d", fp.IsDone(), n, len(frameBytes))
	}
	got := fp.Frame()
	if !got.OpCode.Equal(OpPong) {
		t.Fatalf("opcode = %v, want pong", got.OpCode)
	}
	if string(got.Payload) != "hi" {
		t.Fatalf("payload = %q, want %q", got.Payload, "hi")
	}
}

func TestConnDeliversReassembledMessage(t *testing.T) {
	handshake := "GET /chat HTTP/1.1\n" +
		"Host: server.example.com\n" +
		"Upgrade: websocket\n" +
		"Connection: Upgrade\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\n" +
		"Sec-WebSocket-Version: 13\n\n"

	textFrame := Frame{Fin: true, OpCode: OpText, Payload: []byte("hello")}.Compose()

	ft := &fakeTransport{reads: chunkedBytes([]byte(handshake))}
	ft.reads = append(ft.reads, textFrame)
	ft.readErr = errors.New("no more frames")

	var got []Message
	conn := NewConn(ft, nil, nil)
	_ = conn.Serve(func(m Message) { got = append(got, m) })

	if len(got) != 1 {
		t.Fatalf("expected exactly one delivered message, got %d", len(got))
	}
	if !got[0].IsText || got[0].Text != "hello" {
		t.Fatalf("message = %+v", got[0])
	}
}
