//go:build linux

package pagemap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Raw userfaultfd(2) ioctl numbers and wire structs, ported from
// original_source/src/userfaultfd.rs and cross-checked against the
// teacher's own UFFDIO_COPY constant in internal/vm/uffd_linux.go.
const (
	uffdioAPI      = 0xc018aa3f
	uffdioRegister = 0xc020aa00
	uffdioCopy     = 0xc028aa03

	uffdAPI                   = 0xAA
	uffdioRegisterModeMissing = 0x1

	uffdEventPagefault = 0x12

	uffdMsgSize = 32
)

// uffdioAPIStruct matches struct uffdio_api from linux/userfaultfd.h.
type uffdioAPIStruct struct {
	api      uint64
	features uint64
	ioctls   uint64
}

var _ [24]byte = [unsafe.Sizeof(uffdioAPIStruct{})]byte{}

// uffdioRegisterStruct matches struct uffdio_register.
type uffdioRegisterStruct struct {
	start  uint64
	length uint64
	mode   uint64
	ioctls uint64
}

var _ [32]byte = [unsafe.Sizeof(uffdioRegisterStruct{})]byte{}

// uffdioCopyStruct matches struct uffdio_copy (40 bytes).
type uffdioCopyStruct struct {
	dst  uint64
	src  uint64
	len  uint64
	mode uint64
	copy int64
}

var _ [40]byte = [unsafe.Sizeof(uffdioCopyStruct{})]byte{}

// uffdMsg matches struct uffd_msg (32 bytes, packed).
type uffdMsg struct {
	event     uint8
	reserved1 uint8
	reserved2 uint16
	reserved3 uint32
	flags     uint64
	address   uint64
	padding   uint64
}

var _ [32]byte = [unsafe.Sizeof(uffdMsg{})]byte{}

// probeUffd reports whether userfaultfd(2) is usable on this system.
func probeUffd() bool {
	fd, _, errno := unix.Syscall(unix.SYS_USERFAULTFD, uintptr(unix.O_CLOEXEC|unix.O_NONBLOCK), 0, 0)
	if errno != 0 {
		return false
	}
	unix.Close(int(fd))
	return true
}

// openUffd creates a userfaultfd and completes the UFFDIO_API handshake.
func openUffd() (int, error) {
	fd, _, errno := unix.Syscall(unix.SYS_USERFAULTFD, uintptr(unix.O_CLOEXEC|unix.O_NONBLOCK), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	ufd := int(fd)

	api := uffdioAPIStruct{api: uffdAPI}
	if err := ioctl(ufd, uffdioAPI, unsafe.Pointer(&api)); err != nil {
		unix.Close(ufd)
		return -1, err
	}
	return ufd, nil
}

// registerRange registers [addr, addr+length) for missing-page faults.
func registerRange(ufd int, addr uintptr, length uintptr) error {
	reg := uffdioRegisterStruct{
		start:  uint64(addr),
		length: uint64(length),
		mode:   uffdioRegisterModeMissing,
	}
	return ioctl(ufd, uffdioRegister, unsafe.Pointer(&reg))
}

// copyPage installs src (length bytes) at dst via UFFDIO_COPY. Retries on
// EAGAIN; treats EEXIST as success (the page is already installed, a
// benign race with another fault in the same range — see uffd_linux.go in
// the teacher repo and the comment in original_source/userfaultfd.rs).
func copyPage(ufd int, dst, src uintptr, length uint64) error {
	cp := uffdioCopyStruct{dst: uint64(dst), src: uint64(src), len: length}
	for {
		err := ioctl(ufd, uffdioCopy, unsafe.Pointer(&cp))
		if err == nil {
			return nil
		}
		if err == unix.EAGAIN {
			continue
		}
		if err == unix.EEXIST {
			return nil
		}
		return err
	}
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// readFaultMsg blocks (via poll, 100ms timeout so callers can check a
// context for cancellation at least 10x/sec) until one uffd_msg is
// available, or returns ok=false on timeout. Retries EINTR/EAGAIN on both
// poll and read, exactly as the teacher's lazyFaultHandlerV2 does.
func readFaultMsg(ufd int) (msg uffdMsg, ok bool, err error) {
	fds := []unix.PollFd{{Fd: int32(ufd), Events: unix.POLLIN}}
	n, perr := unix.Poll(fds, 100)
	if perr != nil {
		if perr == unix.EINTR || perr == unix.EAGAIN {
			return uffdMsg{}, false, nil
		}
		return uffdMsg{}, false, perr
	}
	if n == 0 {
		return uffdMsg{}, false, nil
	}

	var buf [uffdMsgSize]byte
	for {
		nr, rerr := unix.Read(ufd, buf[:])
		if rerr != nil {
			if rerr == unix.EAGAIN || rerr == unix.EINTR {
				return uffdMsg{}, false, nil
			}
			return uffdMsg{}, false, rerr
		}
		if nr == 0 {
			return uffdMsg{}, false, nil
		}
		if nr != uffdMsgSize {
			continue
		}
		break
	}

	msg = *(*uffdMsg)(unsafe.Pointer(&buf[0]))
	if msg.event != uffdEventPagefault {
		return uffdMsg{}, false, nil
	}
	return msg, true, nil
}
