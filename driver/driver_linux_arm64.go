//go:build linux && arm64

package driver

import (
	"os"

	"github.com/ebitengine/purego"
)

// SystemDriver is the platform Vulkan loader.
const SystemDriver = "libvulkan.so.1"

// kgslPath is the Adreno kernel graphics device; its presence means the GPU
// accepts user-supplied drivers.
const kgslPath = "/dev/kgsl-3d0"

// Supported reports whether custom drivers can be loaded on this device.
func Supported() bool {
	_, err := os.Stat(kgslPath)
	return err == nil
}

type dlOpener struct{}

func platformOpener() Opener { return dlOpener{} }

func (dlOpener) Open(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

func (dlOpener) Close(lib uintptr) error {
	return purego.Dlclose(lib)
}
