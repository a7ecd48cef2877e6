package uvcan

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"
)

var (
	dllFuncs = map[string]**syscall.Proc{
		"can_test":    &procTest,
		"can_init":    &procInit,
		"can_exit":    &procExit,
		"can_start":   &procStart,
		"can_reset":   &procReset,
		"can_write":   &procWrite,
		"can_read":    &procRead,
		"can_status":  &procStatus,
		"can_busload": &procBusload,
		"can_bitrate": &procBitrate,
		"can_version": &procVersion,
	}
	LoadErr  error
	loadOnce sync.Once
)

var (
	procTest    *syscall.Proc
	procInit    *syscall.Proc
	procExit    *syscall.Proc
	procStart   *syscall.Proc
	procReset   *syscall.Proc
	procWrite   *syscall.Proc
	procRead    *syscall.Proc
	procStatus  *syscall.Proc
	procBusload *syscall.Proc
	procBitrate *syscall.Proc
	procVersion *syscall.Proc
)

// Load resolves the driver DLL and its can_... entry points. An empty
// name loads the default library for this machine. Only the first
// call does anything.
func Load(library string) error {
	loadOnce.Do(func() {
		if library == "" {
			library = DefaultLibrary()
		}
		dll, err := syscall.LoadDLL(library)
		if err != nil {
			LoadErr = err
			return
		}
		for funcName, procPtr := range dllFuncs {
			proc, err := dll.FindProc(funcName)
			if err != nil {
				LoadErr = fmt.Errorf("failed to find procedure %s: %w", funcName, err)
				dll.Release()
				return
			}
			*procPtr = proc
		}
	})
	return LoadErr
}

// Test probes whether a channel is present and free without claiming
// it. The result is one of the CANBRD_ states.
func Test(channel int32, mode Mode) (int, error) {
	var result int32
	r1, _, _ := procTest.Call(uintptr(channel), uintptr(mode), 0, uintptr(unsafe.Pointer(&result)))
	return int(result), NewError(int32(r1))
}

// Init claims a channel and returns the handle for all further calls.
func Init(channel int32, mode Mode) (Handle, error) {
	r1, _, _ := procInit.Call(uintptr(channel), uintptr(mode), 0)
	return Handle(int32(r1)), NewError(int32(r1))
}

// Exit tears the channel down and invalidates the handle.
func (h Handle) Exit() error {
	r1, _, _ := procExit.Call(uintptr(h))
	return NewError(int32(r1))
}

// Start brings the controller online with the given bitrate.
func (h Handle) Start(bitrate *Bitrate) error {
	r1, _, _ := procStart.Call(uintptr(h), uintptr(unsafe.Pointer(bitrate)))
	return NewError(int32(r1))
}

// Reset takes the controller offline, the handle stays valid.
func (h Handle) Reset() error {
	r1, _, _ := procReset.Call(uintptr(h))
	return NewError(int32(r1))
}

// Write queues one message for transmission, waiting up to timeout
// milliseconds for queue space.
func (h Handle) Write(msg *Message, timeout uint16) error {
	r1, _, _ := procWrite.Call(uintptr(h), uintptr(unsafe.Pointer(msg)), uintptr(timeout))
	return NewError(int32(r1))
}

// Read fetches one message from the receive queue, waiting up to
// timeout milliseconds. CANREAD_INFINITE waits forever.
func (h Handle) Read(msg *Message, timeout uint16) error {
	r1, _, _ := procRead.Call(uintptr(h), uintptr(unsafe.Pointer(msg)), uintptr(timeout))
	return NewError(int32(r1))
}

// Status reads the controller status register.
func (h Handle) Status() (Status, error) {
	var status uint8
	r1, _, _ := procStatus.Call(uintptr(h), uintptr(unsafe.Pointer(&status)))
	return Status(status), NewError(int32(r1))
}

// Busload reads the current bus load in percent together with the
// status register.
func (h Handle) Busload() (uint8, Status, error) {
	var load uint8
	var status uint8
	r1, _, _ := procBusload.Call(uintptr(h), uintptr(unsafe.Pointer(&load)), uintptr(unsafe.Pointer(&status)))
	return load, Status(status), NewError(int32(r1))
}

// BitrateInfo reads the active bitrate settings and the resolved
// transmission rate. speed may be nil.
func (h Handle) BitrateInfo(bitrate *Bitrate, speed *Speed) error {
	var sp uintptr
	if speed != nil {
		sp = uintptr(unsafe.Pointer(speed))
	}
	r1, _, _ := procBitrate.Call(uintptr(h), uintptr(unsafe.Pointer(bitrate)), sp)
	return NewError(int32(r1))
}

// Version reports the driver version string.
func Version() string {
	r1, _, _ := procVersion.Call()
	if r1 == 0 {
		return ""
	}
	var out []byte
	for p := r1; ; p++ {
		b := *(*byte)(unsafe.Pointer(p))
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return string(out)
}
