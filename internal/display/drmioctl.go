package display

import "unsafe"

// DRM ioctl request codes and wire structs, transcribed from the
// kernel's <drm/drm.h> / <drm/drm_mode.h> uAPI, the same sequence
// libdrm's drmIoctl wrapper drives, reproduced here with raw
// unix.Syscall(SYS_IOCTL, ...) since no vetted pure-Go DRM binding is
// available (see DESIGN.md).
const (
	drmIoctlBase = 0x64 // 'd'

	nrGetResources = 0xA0
	nrGetCrtc      = 0xA1
	nrSetCrtc      = 0xA2
	nrGetEncoder   = 0xA6
	nrGetConnector = 0xA7
	nrAddFB        = 0xAE
	nrRmFB         = 0xAF
	nrCreateDumb   = 0xB2
	nrMapDumb      = 0xB3
	nrDestroyDumb  = 0xB4

	nrSetMaster  = 0x1e
	nrDropMaster = 0x1f
)

func iowr(nr, size uintptr) uintptr {
	const dirReadWrite = 3
	return dirReadWrite<<30 | size<<16 | drmIoctlBase<<8 | nr
}

func ioNoArg(nr uintptr) uintptr {
	return drmIoctlBase<<8 | nr
}

var (
	ioctlGetResources = iowr(nrGetResources, unsafe.Sizeof(modeCardRes{}))
	ioctlGetCrtc      = iowr(nrGetCrtc, unsafe.Sizeof(modeCrtc{}))
	ioctlSetCrtc      = iowr(nrSetCrtc, unsafe.Sizeof(modeCrtc{}))
	ioctlGetEncoder   = iowr(nrGetEncoder, unsafe.Sizeof(modeGetEncoder{}))
	ioctlGetConnector = iowr(nrGetConnector, unsafe.Sizeof(modeGetConnector{}))
	ioctlAddFB        = iowr(nrAddFB, unsafe.Sizeof(modeFBCmd{}))
	ioctlRmFB         = iowr(nrRmFB, unsafe.Sizeof(uint32(0)))
	ioctlCreateDumb   = iowr(nrCreateDumb, unsafe.Sizeof(modeCreateDumb{}))
	ioctlMapDumb      = iowr(nrMapDumb, unsafe.Sizeof(modeMapDumb{}))
	ioctlDestroyDumb  = iowr(nrDestroyDumb, unsafe.Sizeof(modeDestroyDumb{}))

	ioctlSetMaster  = ioNoArg(nrSetMaster)
	ioctlDropMaster = ioNoArg(nrDropMaster)
)

const (
	connectedState = 1 // DRM_MODE_CONNECTED
)

type modeCardRes struct {
	fbIDPtr        uint64
	crtcIDPtr      uint64
	connectorIDPtr uint64
	encoderIDPtr   uint64
	countFBs       uint32
	countCrtcs     uint32
	countConns     uint32
	countEncoders  uint32
	minWidth       uint32
	maxWidth       uint32
	minHeight      uint32
	maxHeight      uint32
}

type modeInfo struct {
	Clock                                        uint32
	HDisplay, HSyncStart, HSyncEnd, HTotal, HSkew uint16
	VDisplay, VSyncStart, VSyncEnd, VTotal, VScan uint16
	VRefresh                                      uint32
	Flags                                         uint32
	Type                                          uint32
	Name                                          [32]byte
}

type modeGetConnector struct {
	encodersPtr    uint64
	modesPtr       uint64
	propsPtr       uint64
	propValuesPtr  uint64
	countModes     uint32
	countProps     uint32
	countEncoders  uint32
	encoderID      uint32
	connectorID    uint32
	connectorType  uint32
	connTypeID     uint32
	connection     uint32
	mmWidth        uint32
	mmHeight       uint32
	subpixel       uint32
	pad            uint32
}

type modeGetEncoder struct {
	encoderID      uint32
	encoderType    uint32
	crtcID         uint32
	possibleCrtcs  uint32
	possibleClones uint32
}

type modeCrtc struct {
	setConnectorsPtr uint64
	countConnectors  uint32
	crtcID           uint32
	fbID             uint32
	x, y             uint32
	gammaSize        uint32
	modeValid        uint32
	mode             modeInfo
}

type modeCreateDumb struct {
	height uint32
	width  uint32
	bpp    uint32
	flags  uint32
	handle uint32
	pitch  uint32
	size   uint64
}

type modeMapDumb struct {
	handle uint32
	pad    uint32
	offset uint64
}

type modeDestroyDumb struct {
	handle uint32
}

type modeFBCmd struct {
	fbID   uint32
	width  uint32
	height uint32
	pitch  uint32
	bpp    uint32
	depth  uint32
	handle uint32
}
