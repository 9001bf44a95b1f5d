package live

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/blivekit/blive/packet"
	"github.com/blivekit/blive/transport"
)

// pipeDialer hands the session one end of a net.Pipe and keeps the
// other end as the fake peer. It counts dials.
type pipeDialer struct {
	dials atomic.Int32
	peers chan net.Conn
}

func newPipeDialer() *pipeDialer {
	return &pipeDialer{peers: make(chan net.Conn, 4)}
}

func (d *pipeDialer) dial(endpoint string) (transport.Conn, error) {
	d.dials.Add(1)
	client, server := net.Pipe()
	d.peers <- server
	return client, nil
}

func (d *pipeDialer) peer(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-d.peers:
		return c
	case <-time.After(time.Second):
		t.Fatal("session never dialed")
		return nil
	}
}

// waitEvent polls the supervisor until an event arrives.
func waitEvent(t *testing.T, sv *Supervisor) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok := sv.Poll(); ok {
			return e
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no event before deadline")
	return nil
}

func waitState(t *testing.T, sv *Supervisor, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sv.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", sv.State(), want)
}

// readAuth consumes the auth frame the session writes on connect.
func readAuth(t *testing.T, peer net.Conn) []byte {
	t.Helper()
	f, err := packet.ReadFrame(peer)
	if err != nil {
		t.Fatalf("read auth frame: %v", err)
	}
	if f.Op != packet.OpAuth {
		t.Fatalf("first frame op = %v, want auth", f.Op)
	}
	return f.Body
}

func compressedFrame(t *testing.T, inner []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(inner); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	frame := packet.Encode(packet.OpMessage, buf.Bytes())
	binary.BigEndian.PutUint16(frame[6:8], uint16(packet.VersionCompressed))
	return frame
}

func TestSessionEndToEnd(t *testing.T) {
	dialer := newPipeDialer()
	sv := NewSupervisor(WithDialer(dialer.dial))

	auth := []byte(`{"roomid":42,"key":"opaque"}`)
	if err := sv.Start("wss://example.test/sub", auth); err != nil {
		t.Fatal(err)
	}
	peer := dialer.peer(t)
	defer peer.Close()

	if got := readAuth(t, peer); !bytes.Equal(got, auth) {
		t.Fatalf("auth body = %q, want %q", got, auth)
	}

	if _, err := peer.Write(packet.Encode(packet.OpAuthReply, []byte(`{"code":0}`))); err != nil {
		t.Fatal(err)
	}
	inner := append(
		packet.Encode(packet.OpMessage, []byte(`{"cmd":"X","data":1}`)),
		packet.Encode(packet.OpMessage, []byte(`{"cmd":"Y","data":2}`))...,
	)
	if _, err := peer.Write(compressedFrame(t, inner)); err != nil {
		t.Fatal(err)
	}

	if _, ok := waitEvent(t, sv).(ConnectedEvent); !ok {
		t.Fatal("expected ConnectedEvent first")
	}
	if _, ok := waitEvent(t, sv).(TraceEvent); !ok {
		t.Fatal("expected TraceEvent for the auth reply")
	}
	msg, ok := waitEvent(t, sv).(MessageEvent)
	if !ok || msg.Cmd != "X" {
		t.Fatalf("event = %#v, want message X", msg)
	}
	if msg.Payload != `{"cmd":"X","data":1}` {
		t.Fatalf("payload = %q", msg.Payload)
	}
	msg, ok = waitEvent(t, sv).(MessageEvent)
	if !ok || msg.Cmd != "Y" {
		t.Fatalf("event = %#v, want message Y", msg)
	}

	peer.Close()
	if _, ok := waitEvent(t, sv).(DisconnectedEvent); !ok {
		t.Fatal("expected DisconnectedEvent after peer close")
	}
	waitState(t, sv, StateClosed)
}

func TestSessionMalformedMessageDropped(t *testing.T) {
	dialer := newPipeDialer()
	sv := NewSupervisor(WithDialer(dialer.dial))
	if err := sv.Start("wss://example.test/sub", nil); err != nil {
		t.Fatal(err)
	}
	peer := dialer.peer(t)
	defer peer.Close()
	readAuth(t, peer)

	// A body that is not UTF-8, then invalid JSON, then a record
	// without a cmd tag, then a good one.
	peer.Write(packet.Encode(packet.OpMessage, []byte{0xff, 0xfe}))
	peer.Write(packet.Encode(packet.OpMessage, []byte("not json")))
	peer.Write(packet.Encode(packet.OpMessage, []byte(`{"data":1}`)))
	peer.Write(packet.Encode(packet.OpMessage, []byte(`{"cmd":"GOOD"}`)))

	if _, ok := waitEvent(t, sv).(ConnectedEvent); !ok {
		t.Fatal("expected ConnectedEvent first")
	}
	if _, ok := waitEvent(t, sv).(TraceEvent); !ok {
		t.Fatal("expected TraceEvent for the non-UTF-8 body")
	}
	if _, ok := waitEvent(t, sv).(TraceEvent); !ok {
		t.Fatal("expected TraceEvent for invalid JSON")
	}
	if _, ok := waitEvent(t, sv).(TraceEvent); !ok {
		t.Fatal("expected TraceEvent for missing cmd")
	}
	msg, ok := waitEvent(t, sv).(MessageEvent)
	if !ok || msg.Cmd != "GOOD" {
		t.Fatalf("event = %#v, want message GOOD", msg)
	}
	if sv.State() != StateOpen {
		t.Fatalf("state = %v, session must survive dropped messages", sv.State())
	}
}

func TestSessionUnknownOpTraced(t *testing.T) {
	dialer := newPipeDialer()
	sv := NewSupervisor(WithDialer(dialer.dial))
	if err := sv.Start("wss://example.test/sub", nil); err != nil {
		t.Fatal(err)
	}
	peer := dialer.peer(t)
	defer peer.Close()
	readAuth(t, peer)
	peer.Write(packet.Encode(packet.Op(9999), []byte("future")))

	if _, ok := waitEvent(t, sv).(ConnectedEvent); !ok {
		t.Fatal("expected ConnectedEvent first")
	}
	if _, ok := waitEvent(t, sv).(TraceEvent); !ok {
		t.Fatal("expected TraceEvent for the unknown op")
	}
	if sv.State() != StateOpen {
		t.Fatalf("state = %v", sv.State())
	}
}

func TestSessionCorruptStreamFails(t *testing.T) {
	dialer := newPipeDialer()
	sv := NewSupervisor(WithDialer(dialer.dial))
	if err := sv.Start("wss://example.test/sub", nil); err != nil {
		t.Fatal(err)
	}
	peer := dialer.peer(t)
	defer peer.Close()
	readAuth(t, peer)

	// Header with an impossible header length corrupts the stream.
	bad := packet.Encode(packet.OpMessage, []byte("x"))
	binary.BigEndian.PutUint16(bad[4:6], 1)
	peer.Write(bad)

	if _, ok := waitEvent(t, sv).(ConnectedEvent); !ok {
		t.Fatal("expected ConnectedEvent first")
	}
	ev, ok := waitEvent(t, sv).(ErrorEvent)
	if !ok {
		t.Fatalf("event = %#v, want ErrorEvent", ev)
	}
	if !errors.Is(ev.Err, packet.ErrTruncatedHeader) {
		t.Fatalf("err = %v", ev.Err)
	}
	waitState(t, sv, StateClosed)
}

func TestSessionConnectFailure(t *testing.T) {
	sv := NewSupervisor(WithDialer(func(string) (transport.Conn, error) {
		return nil, errors.New("refused")
	}))
	if err := sv.Start("wss://example.test/sub", nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := waitEvent(t, sv).(ErrorEvent); !ok {
		t.Fatal("expected ErrorEvent on connect failure")
	}
	waitState(t, sv, StateClosed)
}

func TestSessionStop(t *testing.T) {
	dialer := newPipeDialer()
	sv := NewSupervisor(WithDialer(dialer.dial))
	if err := sv.Start("wss://example.test/sub", nil); err != nil {
		t.Fatal(err)
	}
	peer := dialer.peer(t)
	defer peer.Close()
	readAuth(t, peer)

	if _, ok := waitEvent(t, sv).(ConnectedEvent); !ok {
		t.Fatal("expected ConnectedEvent first")
	}
	sv.Stop()
	if _, ok := waitEvent(t, sv).(DisconnectedEvent); !ok {
		t.Fatal("expected DisconnectedEvent after Stop")
	}
	waitState(t, sv, StateClosed)

	// A closed session frees the slot for a fresh start.
	if err := sv.Start("wss://example.test/sub", nil); err != nil {
		t.Fatal(err)
	}
	dialer.peer(t).Close()
}

func TestSessionStopDuringConnect(t *testing.T) {
	// A Stop racing the dial must not trip the race detector on the
	// transport handoff, and the session must still reach Closed.
	for i := 0; i < 200; i++ {
		dialer := newPipeDialer()
		sv := NewSupervisor(WithDialer(dialer.dial))
		if err := sv.Start("wss://example.test/sub", nil); err != nil {
			t.Fatal(err)
		}
		done := make(chan struct{})
		go func() {
			sv.Stop()
			close(done)
		}()
		peer := dialer.peer(t)
		peer.Close()
		<-done
		waitState(t, sv, StateClosed)
	}
}

func TestSupervisorAlreadyRunning(t *testing.T) {
	dialer := newPipeDialer()
	sv := NewSupervisor(WithDialer(dialer.dial))
	if err := sv.Start("wss://example.test/sub", nil); err != nil {
		t.Fatal(err)
	}
	if err := sv.Start("wss://example.test/sub", nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start err = %v, want ErrAlreadyRunning", err)
	}
	peer := dialer.peer(t)
	defer peer.Close()
	readAuth(t, peer)
	if n := dialer.dials.Load(); n != 1 {
		t.Fatalf("dialed %d times, want 1", n)
	}
}

func TestSupervisorIdleState(t *testing.T) {
	sv := NewSupervisor()
	if sv.State() != StateIdle {
		t.Fatalf("state = %v, want idle", sv.State())
	}
	if _, ok := sv.Poll(); ok {
		t.Fatal("idle supervisor must have no events")
	}
}

func TestStateString(t *testing.T) {
	if StateAwaitingAuthAck.String() != "awaiting-auth-ack" {
		t.Error(StateAwaitingAuthAck.String())
	}
	if State(99).String() != "state(99)" {
		t.Error(State(99).String())
	}
}
