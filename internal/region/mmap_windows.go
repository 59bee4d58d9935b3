//go:build windows

package region

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Open maps the named record read-only. The plugin creates the mapping; if
// it does not exist yet an empty one is created in its place, the same way
// the plugin's reference readers attach.
func Open(name string, size int) (*Mapped, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%s: invalid size %d", name, size)
	}
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("mapping name %q: %w", name, err)
	}

	handle, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(size), namePtr)
	if handle == 0 {
		return nil, fmt.Errorf("open mapping %s: %w", name, err)
	}
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("open mapping %s: %w", name, err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("map view %s: %w", name, err)
	}

	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	unmap := func(b []byte) error {
		errView := windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&b[0])))
		errHandle := windows.CloseHandle(handle)
		return errors.Join(errView, errHandle)
	}
	return &Mapped{name: name, mem: mem, unmap: unmap}, nil
}
