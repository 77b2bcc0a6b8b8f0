package wlclient

import (
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"
)

// serveSocket listens on a unix socket and hands back the server side of the
// first accepted connection.
func serveSocket(t *testing.T, path string) <-chan net.Conn {
	t.Helper()
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		ch <- c
	}()
	return ch
}

func TestDamageBufferCarriesRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wl.sock")
	accepted := serveSocket(t, path)

	d, err := Connect(path)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer d.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("no connection accepted")
	}
	defer server.Close()

	s := &Surface{display: d, id: d.allocID()}
	if err := s.DamageBuffer(2, 3, 40, 30); err != nil {
		t.Fatalf("DamageBuffer: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Connect buffers wl_display.get_registry (12 bytes) ahead of the
	// damage request.
	buf := make([]byte, 12+24)
	server.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	msg := buf[12:]

	if got := binary.LittleEndian.Uint32(msg[0:4]); got != s.ID() {
		t.Errorf("object = %d, want %d", got, s.ID())
	}
	sizeOp := binary.LittleEndian.Uint32(msg[4:8])
	if op := uint16(sizeOp & 0xFFFF); op != opSurfaceDamageBuffer {
		t.Errorf("opcode = %d, want %d", op, opSurfaceDamageBuffer)
	}
	if size := sizeOp >> 16; size != 24 {
		t.Errorf("size = %d, want 24", size)
	}
	want := []int32{2, 3, 40, 30}
	for i, v := range want {
		if got := int32(binary.LittleEndian.Uint32(msg[8+4*i:])); got != v {
			t.Errorf("arg %d = %d, want %d", i, got, v)
		}
	}
}
