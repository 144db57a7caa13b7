//go:build !(linux && arm64)

package driver

// SystemDriver is the platform Vulkan loader.
const SystemDriver = "libvulkan.so.1"

// Supported is always false: drivers are not swappable on this platform.
func Supported() bool { return false }

type nopOpener struct{}

func platformOpener() Opener { return nopOpener{} }

func (nopOpener) Open(string) (uintptr, error) { return 0, ErrUnsupported }

func (nopOpener) Close(uintptr) error { return nil }
