package wlclient

import (
	"fmt"
	"image"

	"golang.org/x/sys/unix"
)

// wl_shm pixel formats.
const (
	FormatARGB8888 = 0
	FormatXRGB8888 = 1
)

const (
	opShmCreatePool = 0

	opShmPoolCreateBuffer = 0
	opShmPoolDestroy      = 1

	opBufferDestroy = 0
	evBufferRelease = 0
)

// Shm wraps a bound wl_shm global.
type Shm struct {
	display *Display
	id      uint32
}

// BindShm binds the wl_shm global.
func BindShm(d *Display) (*Shm, error) {
	id, err := d.Registry().Bind("wl_shm", 1)
	if err != nil {
		return nil, err
	}
	s := &Shm{display: d, id: id}
	// The format events carry no state we need; XRGB8888 support is
	// mandatory per the protocol.
	d.register(id, func(opcode uint16, body []byte, fds []int) {
		closeAll(fds)
	})
	return s, nil
}

// Buffer is a wl_buffer backed by memfd-mapped shared memory. The Pix
// slice aliases the mapping, so writes are visible to the compositor
// once the buffer is attached and committed.
type Buffer struct {
	display *Display
	poolID  uint32
	id      uint32

	data   []byte
	Pix    []byte
	Width  int
	Height int
	Stride int

	busy bool
}

// NewBuffer allocates a single-buffer pool of the given size. Each buffer
// gets its own pool; the pool is destroyed immediately after the buffer is
// created, which the protocol permits.
func (s *Shm) NewBuffer(width, height int, format uint32) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wlclient: invalid buffer size %dx%d", width, height)
	}
	stride := width * 4
	size := stride * height

	fd, err := unix.MemfdCreate("wl-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("wlclient: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wlclient: ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wlclient: mmap: %w", err)
	}

	poolID := s.display.allocID()
	if err := s.display.sendRequest(s.id, opShmCreatePool, []int{fd}, poolID, uint32(size)); err != nil {
		unix.Munmap(data)
		unix.Close(fd)
		return nil, err
	}
	// The compositor duplicated the fd during create_pool.
	unix.Close(fd)

	b := &Buffer{
		display: s.display,
		poolID:  poolID,
		data:    data,
		Pix:     data,
		Width:   width,
		Height:  height,
		Stride:  stride,
	}
	b.id = s.display.allocID()
	err = s.display.sendRequest(poolID, opShmPoolCreateBuffer, nil,
		b.id, uint32(0), uint32(width), uint32(height), uint32(stride), format)
	if err != nil {
		unix.Munmap(data)
		return nil, err
	}
	s.display.register(b.id, b.handleEvent)

	if err := s.display.sendRequest(poolID, opShmPoolDestroy, nil); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) handleEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	if opcode == evBufferRelease {
		b.busy = false
	}
}

// ID returns the wl_buffer object id for attach requests.
func (b *Buffer) ID() uint32 { return b.id }

// Busy reports whether the compositor still holds the buffer. Only valid
// on the dispatching goroutine.
func (b *Buffer) Busy() bool { return b.busy }

// MarkBusy records that the buffer was attached and committed.
func (b *Buffer) MarkBusy() { b.busy = true }

// DrawRGBA copies an RGBA image into the buffer, converting to the
// little-endian XRGB layout wl_shm expects (B, G, R, X in memory).
func (b *Buffer) DrawRGBA(src *image.RGBA) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w > b.Width {
		w = b.Width
	}
	if h > b.Height {
		h = b.Height
	}
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		drow := b.Pix[y*b.Stride : y*b.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			drow[x+0] = srow[x+2]
			drow[x+1] = srow[x+1]
			drow[x+2] = srow[x+0]
			drow[x+3] = 0xff
		}
	}
}

// Destroy releases the buffer object and its mapping.
func (b *Buffer) Destroy() {
	if b.id != 0 {
		b.display.sendRequest(b.id, opBufferDestroy, nil)
		b.display.unregister(b.id)
		b.id = 0
	}
	if b.data != nil {
		unix.Munmap(b.data)
		b.data = nil
		b.Pix = nil
	}
}
