package wlclient

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Errors returned by the client.
var (
	// ErrClosed marks a fatal loss of the compositor connection: protocol
	// error, broken pipe, or explicit close.
	ErrClosed = errors.New("wlclient: connection closed")

	// ErrNoGlobal is returned when a required global was never advertised.
	ErrNoGlobal = errors.New("wlclient: global not advertised")
)

const (
	displayID = 1

	// wl_display requests.
	opDisplaySync        = 0
	opDisplayGetRegistry = 1

	// wl_display events.
	evDisplayError    = 0
	evDisplayDeleteID = 1

	// Queue depth for raw messages between the read pump and the dispatcher.
	pendingDepth = 256
)

// message is one raw wire message plus any file descriptors received with it.
type message struct {
	object uint32
	opcode uint16
	body   []byte
	fds    []int
}

// eventHandler consumes events for one object. Handlers run on the goroutine
// that calls DispatchPending.
type eventHandler func(opcode uint16, body []byte, fds []int)

// Display is one connection to a Wayland compositor.
type Display struct {
	conn *net.UnixConn
	fd   int

	sendMu sync.Mutex
	outBuf []byte

	objMu    sync.Mutex
	nextID   uint32
	handlers map[uint32]eventHandler

	registry *Registry

	pending chan message
	ready   chan struct{}

	errMu   sync.Mutex
	readErr error
}

// SocketPath resolves the Wayland socket location from the environment.
func SocketPath() (string, error) {
	name := os.Getenv("WAYLAND_DISPLAY")
	if name == "" {
		name = "wayland-0"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	runDir := os.Getenv("XDG_RUNTIME_DIR")
	if runDir == "" {
		return "", errors.New("wlclient: XDG_RUNTIME_DIR not set")
	}
	return filepath.Join(runDir, name), nil
}

// Connect dials the Wayland socket and starts the read pump. An empty path
// uses the environment ($WAYLAND_DISPLAY under $XDG_RUNTIME_DIR).
func Connect(path string) (*Display, error) {
	if path == "" {
		var err error
		if path, err = SocketPath(); err != nil {
			return nil, err
		}
	}

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("wlclient: connect %s: %w", path, err)
	}

	file, err := conn.File()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("wlclient: socket fd: %w", err)
	}

	d := &Display{
		conn:     conn,
		fd:       int(file.Fd()),
		nextID:   2, // 1 is wl_display
		handlers: make(map[uint32]eventHandler),
		pending:  make(chan message, pendingDepth),
		ready:    make(chan struct{}, 1),
	}
	d.register(displayID, d.handleDisplayEvent)

	d.registry = newRegistry(d)
	if err := d.registry.announce(); err != nil {
		conn.Close()
		return nil, err
	}

	go d.readPump()
	return d, nil
}

// Close shuts the connection down. Pending events are discarded.
func (d *Display) Close() error {
	d.setReadErr(ErrClosed)
	return d.conn.Close()
}

// Registry returns the global registry for this connection.
func (d *Display) Registry() *Registry { return d.registry }

// Ready signals when protocol events are queued for dispatch. The event loop
// selects on this alongside its other sources.
func (d *Display) Ready() <-chan struct{} { return d.ready }

// allocID hands out the next client-side object id.
func (d *Display) allocID() uint32 {
	d.objMu.Lock()
	defer d.objMu.Unlock()
	id := d.nextID
	d.nextID++
	return id
}

// register installs the event handler for an object id.
func (d *Display) register(id uint32, h eventHandler) {
	d.objMu.Lock()
	d.handlers[id] = h
	d.objMu.Unlock()
}

func (d *Display) unregister(id uint32) {
	d.objMu.Lock()
	delete(d.handlers, id)
	d.objMu.Unlock()
}

func (d *Display) lookup(id uint32) eventHandler {
	d.objMu.Lock()
	defer d.objMu.Unlock()
	return d.handlers[id]
}

// sendRequest marshals and queues one request. Requests carrying file
// descriptors force an immediate flush because the descriptors ride the same
// sendmsg as their message bytes.
func (d *Display) sendRequest(object uint32, opcode uint16, fds []int, args ...any) error {
	body, err := marshalArgs(args)
	if err != nil {
		return fmt.Errorf("wlclient: marshal request %d.%d: %w", object, opcode, err)
	}

	size := 8 + len(body)
	if size > 0xFFFF {
		return fmt.Errorf("wlclient: request too large: %d bytes", size)
	}

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], object)
	binary.LittleEndian.PutUint32(header[4:8], uint32(size)<<16|uint32(opcode))

	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.outBuf = append(d.outBuf, header[:]...)
	d.outBuf = append(d.outBuf, body...)

	if len(fds) > 0 {
		return d.flushLocked(fds)
	}
	if len(d.outBuf) >= 4096 {
		return d.flushLocked(nil)
	}
	return nil
}

// Flush writes all buffered requests to the compositor.
func (d *Display) Flush() error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	return d.flushLocked(nil)
}

func (d *Display) flushLocked(fds []int) error {
	if len(d.outBuf) == 0 && len(fds) == 0 {
		return nil
	}
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	_, _, err := d.conn.WriteMsgUnix(d.outBuf, oob, nil)
	d.outBuf = d.outBuf[:0]
	if err != nil {
		if IsFatal(err) {
			d.setReadErr(fmt.Errorf("%w: %v", ErrClosed, err))
		}
		return fmt.Errorf("wlclient: flush: %w", err)
	}
	return nil
}

// readPump runs on its own goroutine, moving raw messages from the socket
// into the pending queue. It never invokes handlers.
func (d *Display) readPump() {
	var header [8]byte
	oob := make([]byte, unix.CmsgSpace(4*8))

	for {
		fds, err := d.readFull(header[:], oob)
		if err != nil {
			d.setReadErr(fmt.Errorf("%w: %v", ErrClosed, err))
			d.signal()
			return
		}

		object := binary.LittleEndian.Uint32(header[0:4])
		sizeOp := binary.LittleEndian.Uint32(header[4:8])
		size := int(sizeOp >> 16)
		opcode := uint16(sizeOp & 0xFFFF)

		var body []byte
		if size > 8 {
			body = make([]byte, size-8)
			moreFds, err := d.readFull(body, oob)
			if err != nil {
				closeAll(fds)
				d.setReadErr(fmt.Errorf("%w: %v", ErrClosed, err))
				d.signal()
				return
			}
			fds = append(fds, moreFds...)
		}

		d.pending <- message{object: object, opcode: opcode, body: body, fds: fds}
		d.signal()
	}
}

// readFull reads exactly len(buf) bytes, collecting any SCM_RIGHTS
// descriptors that arrive with them.
func (d *Display) readFull(buf, oob []byte) ([]int, error) {
	var fds []int
	read := 0
	for read < len(buf) {
		n, oobn, _, _, err := d.conn.ReadMsgUnix(buf[read:], oob)
		if err != nil {
			return fds, err
		}
		if n == 0 && oobn == 0 {
			return fds, io.EOF
		}
		read += n
		if oobn > 0 {
			cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
			if err == nil {
				for _, c := range cmsgs {
					if got, err := unix.ParseUnixRights(&c); err == nil {
						fds = append(fds, got...)
					}
				}
			}
		}
	}
	return fds, nil
}

func (d *Display) signal() {
	select {
	case d.ready <- struct{}{}:
	default:
	}
}

func (d *Display) setReadErr(err error) {
	d.errMu.Lock()
	if d.readErr == nil {
		d.readErr = err
	}
	d.errMu.Unlock()
}

// Err returns the fatal connection error, if any.
func (d *Display) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.readErr
}

// DispatchPending drains queued events, running handlers on the calling
// goroutine. Returns the fatal connection error once the queue is empty and
// the connection is gone.
func (d *Display) DispatchPending() error {
	for {
		select {
		case msg := <-d.pending:
			d.dispatch(msg)
		default:
			return d.Err()
		}
	}
}

func (d *Display) dispatch(msg message) {
	h := d.lookup(msg.object)
	if h == nil {
		closeAll(msg.fds)
		return
	}
	h(msg.opcode, msg.body, msg.fds)
}

func (d *Display) handleDisplayEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	switch opcode {
	case evDisplayError:
		r := newReader(body)
		object := r.uint32()
		code := r.uint32()
		text := r.string()
		d.setReadErr(fmt.Errorf("%w: protocol error on object %d, code %d: %s",
			ErrClosed, object, code, text))
	case evDisplayDeleteID:
		r := newReader(body)
		d.unregister(r.uint32())
	}
}

// Roundtrip sends wl_display.sync and dispatches events until the
// compositor's reply callback fires, guaranteeing all prior requests have
// been processed.
func (d *Display) Roundtrip(ctx context.Context) error {
	done := make(chan struct{})
	cbID := d.allocID()
	d.register(cbID, func(opcode uint16, _ []byte, fds []int) {
		closeAll(fds)
		if opcode == 0 { // wl_callback.done
			d.unregister(cbID)
			close(done)
		}
	})

	if err := d.sendRequest(displayID, opDisplaySync, nil, cbID); err != nil {
		d.unregister(cbID)
		return err
	}
	if err := d.Flush(); err != nil {
		d.unregister(cbID)
		return err
	}

	for {
		if err := d.DispatchPending(); err != nil {
			return err
		}
		select {
		case <-done:
			return nil
		default:
		}
		select {
		case <-done:
			return nil
		case <-d.ready:
		case <-ctx.Done():
			d.unregister(cbID)
			return ctx.Err()
		}
	}
}

// IsFatal classifies a connection error: broken pipe, reset, or EOF mean the
// compositor is gone; anything else is treated as retryable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EPIPE, unix.ECONNRESET, unix.EBADF:
			return true
		}
	}
	return false
}

func closeAll(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}
