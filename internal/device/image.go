package device

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

var (
	// ErrOutOfRange is returned for sector ranges past the end of the image
	ErrOutOfRange = errors.New("device: sector range out of range")

	// ErrUnaligned is returned when a buffer is not a whole number of sectors
	ErrUnaligned = errors.New("device: buffer is not sector aligned")
)

// Image provides sector addressed access to a raw disk or partition image
type Image struct {
	file       *os.File
	size       int64
	sectorSize int
	writable   bool
	id         uuid.UUID // Identifies this open image in logs
}

// Open opens a disk image. Trailing bytes that do not fill a whole sector are
// not addressable.
func Open(path string, sectorSize int, writable bool) (*Image, error) {
	if sectorSize <= 0 {
		return nil, fmt.Errorf("device: invalid sector size %d", sectorSize)
	}

	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
	}

	file, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}
	if !stat.Mode().IsRegular() && stat.Mode()&os.ModeDevice == 0 {
		file.Close()
		return nil, fmt.Errorf("device: %s is neither a file nor a device", path)
	}

	return &Image{
		file:       file,
		size:       stat.Size(),
		sectorSize: sectorSize,
		writable:   writable,
		id:         uuid.New(),
	}, nil
}

// Create creates a zero filled image of the given number of sectors, replacing
// any existing file, and opens it for writing
func Create(path string, sectorSize int, sectors uint64) (*Image, error) {
	if sectorSize <= 0 {
		return nil, fmt.Errorf("device: invalid sector size %d", sectorSize)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create image file: %w", err)
	}

	size := int64(sectors) * int64(sectorSize)
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to size image file: %w", err)
	}

	return &Image{
		file:       file,
		size:       size,
		sectorSize: sectorSize,
		writable:   true,
		id:         uuid.New(),
	}, nil
}

// ID returns the identifier of this open image
func (i *Image) ID() uuid.UUID {
	return i.id
}

// Name returns the path the image was opened with
func (i *Image) Name() string {
	return i.file.Name()
}

// SectorSize returns the sector size in bytes
func (i *Image) SectorSize() int {
	return i.sectorSize
}

// Sectors returns the number of addressable sectors
func (i *Image) Sectors() uint64 {
	return uint64(i.size / int64(i.sectorSize))
}

// span validates a transfer of buf starting at sector first and returns its
// byte offset
func (i *Image) span(first uint64, buf []byte) (int64, error) {
	if len(buf) == 0 || len(buf)%i.sectorSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes with %d byte sectors", ErrUnaligned, len(buf), i.sectorSize)
	}

	count := uint64(len(buf) / i.sectorSize)
	total := i.Sectors()
	if first >= total || count > total-first {
		return 0, fmt.Errorf("%w: sectors [%d, %d) of %d", ErrOutOfRange, first, first+count, total)
	}

	return int64(first) * int64(i.sectorSize), nil
}

// ReadSectors fills buf with whole sectors starting at sector first
func (i *Image) ReadSectors(first uint64, buf []byte) error {
	off, err := i.span(first, buf)
	if err != nil {
		return err
	}

	if _, err := i.file.ReadAt(buf, off); err != nil {
		return fmt.Errorf("failed to read sectors at %d: %w", first, err)
	}
	return nil
}

// WriteSectors writes whole sectors from buf starting at sector first
func (i *Image) WriteSectors(first uint64, buf []byte) error {
	if !i.writable {
		return fmt.Errorf("device: %s is opened read-only", i.file.Name())
	}

	off, err := i.span(first, buf)
	if err != nil {
		return err
	}

	if _, err := i.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("failed to write sectors at %d: %w", first, err)
	}
	return nil
}

// Sync flushes written sectors to stable storage
func (i *Image) Sync() error {
	if !i.writable {
		return nil
	}
	return i.file.Sync()
}

// Close closes the image file
func (i *Image) Close() error {
	if i.file != nil {
		return i.file.Close()
	}
	return nil
}
