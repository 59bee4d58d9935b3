//go:build unix

package region

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// shmDir is where the Wine/Proton bridge exposes the plugin's mappings.
var shmDir = "/dev/shm"

// Open maps the named record read-only. size is the expected record size;
// smaller files are mapped as-is and read short.
func Open(name string, size int) (*Mapped, error) {
	path := filepath.Join(shmDir, name)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotAttached)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	length := int(info.Size())
	if size > 0 && length > size {
		length = size
	}
	if length < 8 {
		return nil, fmt.Errorf("%s too small (%d bytes): %w", path, length, ErrNotAttached)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &Mapped{name: name, mem: mem, unmap: unix.Munmap}, nil
}
