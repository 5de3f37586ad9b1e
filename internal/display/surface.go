// Package display implements C1, the Display Surface: acquiring a
// KMS-capable device, a connected output, a mode, and a dumb
// framebuffer, plus the shadow buffer and the wholesale shadow-to-
// framebuffer copy the rasterizer presents through.
package display

import (
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Sentinel error kinds for surface initialization failures.
var (
	ErrNoDevice    = fmt.Errorf("display: no usable KMS device found")
	ErrNoConnector = fmt.Errorf("display: no connected connector with modes")
	ErrNoCrtc      = fmt.Errorf("display: no CRTC available for connector")
	ErrAllocFailed = fmt.Errorf("display: dumb buffer allocation failed")
)

// Mode is the subset of a DRM mode the surface needs: pixel geometry
// plus the opaque kernel descriptor required to reprogram a CRTC.
type Mode struct {
	Width, Height int
	raw           modeInfo
}

// Stats exposes the surface's pixel geometry to the rasterizer.
type Stats struct {
	Width, Height, Stride int
}

// Surface owns the full kernel-handle chain of C1: device fd,
// connector/CRTC ids, the programmed mode, the original CRTC snapshot,
// the dumb buffer handle, its framebuffer id, the mapped front region,
// and the owned shadow (back) region of identical layout.
type Surface struct {
	log *slog.Logger

	fd          int
	connectorID uint32
	crtcID      uint32
	mode        Mode

	origCrtc modeCrtc
	haveOrig bool

	bufHandle uint32
	fbID      uint32
	size      uint32
	stride    uint32

	front []byte // mmap'd kernel framebuffer
	back  []byte // host-memory shadow, same layout as front

	programmed bool
}

// Probe scans /dev/dri/card0..63 for the first device reporting at
// least one connector and one CRTC.
func Probe(log *slog.Logger) (*Surface, error) {
	for card := 0; card < 64; card++ {
		path := fmt.Sprintf("/dev/dri/card%d", card)
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}

		res, err := getResources(fd)
		if err != nil || res.countConns == 0 || res.countCrtcs == 0 {
			unix.Close(fd)
			continue
		}

		s := &Surface{log: log, fd: fd}
		if err := s.selectConnectorAndCrtc(res); err != nil {
			unix.Close(fd)
			continue
		}

		log.Info("probed KMS device", "path", path, "width", s.mode.Width, "height", s.mode.Height)
		return s, nil
	}
	return nil, ErrNoDevice
}

func getResources(fd int) (modeCardRes, error) {
	var res modeCardRes
	if err := ioctl(fd, ioctlGetResources, unsafe.Pointer(&res)); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Surface) selectConnectorAndCrtc(res modeCardRes) error {
	connIDs := make([]uint32, res.countConns)
	crtcIDs := make([]uint32, res.countCrtcs)
	res2 := res
	res2.connectorIDPtr = uint64(uintptr(unsafe.Pointer(&connIDs[0])))
	res2.crtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcIDs[0])))
	if err := ioctl(s.fd, ioctlGetResources, unsafe.Pointer(&res2)); err != nil {
		return err
	}

	for _, id := range connIDs {
		conn, modes, err := getConnector(s.fd, id)
		if err != nil || conn.connection != connectedState || len(modes) == 0 {
			continue
		}

		s.connectorID = id
		s.mode = Mode{Width: int(modes[0].HDisplay), Height: int(modes[0].VDisplay), raw: modes[0]}

		if crtc, ok := crtcForEncoder(s.fd, conn.encoderID); ok {
			s.crtcID = crtc
		} else if len(crtcIDs) > 0 {
			s.crtcID = crtcIDs[0]
		} else {
			return ErrNoCrtc
		}
		return nil
	}
	return ErrNoConnector
}

func getConnector(fd int, id uint32) (modeGetConnector, []modeInfo, error) {
	conn := modeGetConnector{connectorID: id}
	if err := ioctl(fd, ioctlGetConnector, unsafe.Pointer(&conn)); err != nil {
		return conn, nil, err
	}
	if conn.countModes == 0 {
		return conn, nil, nil
	}

	modes := make([]modeInfo, conn.countModes)
	conn2 := conn
	conn2.modesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
	if err := ioctl(fd, ioctlGetConnector, unsafe.Pointer(&conn2)); err != nil {
		return conn, nil, err
	}
	return conn2, modes, nil
}

func crtcForEncoder(fd int, encoderID uint32) (uint32, bool) {
	if encoderID == 0 {
		return 0, false
	}
	enc := modeGetEncoder{encoderID: encoderID}
	if err := ioctl(fd, ioctlGetEncoder, unsafe.Pointer(&enc)); err != nil {
		return 0, false
	}
	return enc.crtcID, true
}

// Snapshot captures the CRTC's current configuration verbatim, before
// anything is programmed, so Release can restore it.
func (s *Surface) Snapshot() error {
	s.origCrtc = modeCrtc{crtcID: s.crtcID}
	if err := ioctl(s.fd, ioctlGetCrtc, unsafe.Pointer(&s.origCrtc)); err != nil {
		return fmt.Errorf("display: snapshot CRTC: %w", err)
	}
	s.haveOrig = true
	return nil
}

// CreateBuffers requests a 32bpp dumb buffer sized to the selected
// mode, registers it as a framebuffer, maps it, and allocates the
// shadow region of identical layout.
func (s *Surface) CreateBuffers() error {
	create := modeCreateDumb{
		width:  uint32(s.mode.Width),
		height: uint32(s.mode.Height),
		bpp:    32,
	}
	if err := ioctl(s.fd, ioctlCreateDumb, unsafe.Pointer(&create)); err != nil {
		return fmt.Errorf("%w: create dumb buffer: %v", ErrAllocFailed, err)
	}
	s.bufHandle = create.handle
	s.stride = create.pitch
	s.size = uint32(create.size)

	fbCmd := modeFBCmd{
		width:  uint32(s.mode.Width),
		height: uint32(s.mode.Height),
		bpp:    32,
		depth:  24,
		pitch:  s.stride,
		handle: s.bufHandle,
	}
	if err := ioctl(s.fd, ioctlAddFB, unsafe.Pointer(&fbCmd)); err != nil {
		return fmt.Errorf("%w: add framebuffer: %v", ErrAllocFailed, err)
	}
	s.fbID = fbCmd.fbID

	mapReq := modeMapDumb{handle: s.bufHandle}
	if err := ioctl(s.fd, ioctlMapDumb, unsafe.Pointer(&mapReq)); err != nil {
		return fmt.Errorf("%w: map dumb buffer: %v", ErrAllocFailed, err)
	}

	front, err := unix.Mmap(s.fd, int64(mapReq.offset), int(s.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("%w: mmap: %v", ErrAllocFailed, err)
	}
	s.front = front
	s.back = make([]byte, s.size)

	if int(s.size) != int(s.stride)*s.mode.Height {
		return fmt.Errorf("%w: size invariant violated", ErrAllocFailed)
	}
	return nil
}

// Program points the selected CRTC at the new framebuffer and mode.
func (s *Surface) Program() error {
	crtc := modeCrtc{
		setConnectorsPtr: uint64(uintptr(unsafe.Pointer(&s.connectorID))),
		countConnectors:  1,
		crtcID:           s.crtcID,
		fbID:             s.fbID,
		modeValid:        1,
		mode:             s.mode.raw,
	}
	if err := ioctl(s.fd, ioctlSetCrtc, unsafe.Pointer(&crtc)); err != nil {
		return fmt.Errorf("display: program CRTC: %w", err)
	}
	s.programmed = true
	return nil
}

// Back returns the shadow buffer, exclusively mutated by the
// rasterizer and exclusively read by Present.
func (s *Surface) Back() []byte { return s.back }

// Stats reports the surface's pixel geometry.
func (s *Surface) Stats() Stats {
	return Stats{Width: s.mode.Width, Height: s.mode.Height, Stride: int(s.stride)}
}

// Present copies the shadow buffer wholesale into the mapped
// framebuffer. Synchronous, no vsync fence — tearing is tolerated.
func (s *Surface) Present() {
	copy(s.front, s.back)
}

// Release restores the captured CRTC, unmaps, destroys the
// framebuffer and dumb buffer, and closes the device, each step
// best-effort.
func (s *Surface) Release() {
	if s.haveOrig {
		restore := s.origCrtc
		restore.setConnectorsPtr = uint64(uintptr(unsafe.Pointer(&s.connectorID)))
		restore.countConnectors = 1
		if err := ioctl(s.fd, ioctlSetCrtc, unsafe.Pointer(&restore)); err != nil {
			s.log.Warn("restore original CRTC failed", "error", err)
		}
	}
	if s.front != nil {
		if err := unix.Munmap(s.front); err != nil {
			s.log.Warn("unmap framebuffer failed", "error", err)
		}
	}
	if s.fbID != 0 {
		if err := ioctl(s.fd, ioctlRmFB, unsafe.Pointer(&s.fbID)); err != nil {
			s.log.Warn("remove framebuffer failed", "error", err)
		}
	}
	if s.bufHandle != 0 {
		d := modeDestroyDumb{handle: s.bufHandle}
		if err := ioctl(s.fd, ioctlDestroyDumb, unsafe.Pointer(&d)); err != nil {
			s.log.Warn("destroy dumb buffer failed", "error", err)
		}
	}
	if err := unix.Close(s.fd); err != nil {
		s.log.Warn("close device failed", "error", err)
	}
}

// SetMaster and DropMaster implement the graphics master-ship half of
// the VT arbiter's handshake: the kernel hands master-ship
// between the console-owning process and whatever VT is foreground.
func (s *Surface) SetMaster() error {
	return ioctl(s.fd, ioctlSetMaster, nil)
}

func (s *Surface) DropMaster() error {
	return ioctl(s.fd, ioctlDropMaster, nil)
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
