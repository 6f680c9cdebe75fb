package hostio

import "golang.org/x/sys/unix"

// TCGETS/TCSETS are the ioctl request numbers unix.IoctlGetTermios and
// unix.IoctlSetTermios expect on Linux.
const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)
