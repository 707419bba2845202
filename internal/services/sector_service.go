package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/op/go-logging.v1"

	"github.com/GeorgyFirsov/bcm-lib/internal/config"
	"github.com/GeorgyFirsov/bcm-lib/internal/device"
	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cmc"
	"github.com/GeorgyFirsov/bcm-lib/pkg/dec"
	"github.com/GeorgyFirsov/bcm-lib/pkg/heh"
	"github.com/GeorgyFirsov/bcm-lib/pkg/xts"
)

// ErrInvalidRequest is returned for requests that cannot be served
var ErrInvalidRequest = errors.New("services: invalid request")

// SectorRequest selects the sectors of an image to transform and the
// coordinates they are transformed under
type SectorRequest struct {
	Partition        uint64
	PartitionCounter uint64
	FirstSector      uint64
	SectorCounter    uint64
	Sectors          uint64 // 0 means up to the end of the image
}

// SectorResult summarizes a completed transform
type SectorResult struct {
	ImageID  uuid.UUID
	KeyID    uuid.UUID
	Cipher   string
	Mode     string
	Sectors  uint64
	Duration time.Duration
}

// KeyInfo describes a DEC key derived from a master key
type KeyInfo struct {
	ID      uuid.UUID
	Cipher  string
	Version uint16
	KeySize int
}

// SectorService encrypts and decrypts sector ranges of disk images in place
type SectorService struct {
	cfg    *config.Config
	cipher cipher.Cipher
	log    *logging.Logger
}

// sectorTransform transforms a single sector in place
type sectorTransform func(ctx context.Context, sector uint64, buf []byte) error

// tweakableCipher is a sector mode keyed once and tweaked by the sector
// number, as XTS, CMC and HEH are
type tweakableCipher interface {
	Encrypt(dst, src []byte, tweak uint64) error
	Decrypt(dst, src []byte, tweak uint64) error
	Reset()
}

// NewSectorService creates a sector service for the configured cipher and mode
func NewSectorService(cfg *config.Config, log *logging.Logger) (*SectorService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := cipher.Lookup(cfg.Cipher)
	if err != nil {
		return nil, err
	}

	return &SectorService{cfg: cfg, cipher: c, log: log}, nil
}

// Encrypt encrypts the requested sectors of img in place
func (s *SectorService) Encrypt(ctx context.Context, img *device.Image, master []byte, req SectorRequest) (*SectorResult, error) {
	return s.run(ctx, img, master, req, true)
}

// Decrypt decrypts the requested sectors of img in place
func (s *SectorService) Decrypt(ctx context.Context, img *device.Image, master []byte, req SectorRequest) (*SectorResult, error) {
	return s.run(ctx, img, master, req, false)
}

// DescribeKey derives the DEC key for master and reports its public properties
func (s *SectorService) DescribeKey(master []byte) (*KeyInfo, error) {
	key, err := dec.InitializeKey(s.cipher, master)
	if err != nil {
		return nil, err
	}
	defer key.Reset()

	return &KeyInfo{
		ID:      key.ID(),
		Cipher:  key.CipherName(),
		Version: key.Version(),
		KeySize: key.KeySize(),
	}, nil
}

func (s *SectorService) run(ctx context.Context, img *device.Image, master []byte, req SectorRequest, encrypt bool) (*SectorResult, error) {
	if img.SectorSize() != s.cfg.SectorSize {
		return nil, fmt.Errorf("%w: image sector size %d, configured %d", ErrInvalidRequest, img.SectorSize(), s.cfg.SectorSize)
	}

	count := req.Sectors
	if count == 0 {
		if req.FirstSector >= img.Sectors() {
			return nil, fmt.Errorf("%w: first sector %d of %d", device.ErrOutOfRange, req.FirstSector, img.Sectors())
		}
		count = img.Sectors() - req.FirstSector
	}
	if req.FirstSector >= img.Sectors() || count > img.Sectors()-req.FirstSector {
		return nil, fmt.Errorf("%w: sectors [%d, %d) of %d", device.ErrOutOfRange, req.FirstSector, req.FirstSector+count, img.Sectors())
	}

	var (
		transform sectorTransform
		keyID     uuid.UUID
		release   func()
		err       error
	)
	switch strings.ToLower(s.cfg.Mode) {
	case config.ModeDEC:
		transform, keyID, release, err = s.decTransform(master, req, encrypt)
	case config.ModeXTS, config.ModeCMC, config.ModeHEH:
		transform, keyID, release, err = s.tweakTransform(master, encrypt)
	default:
		err = fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, s.cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	defer release()

	op := "decrypt"
	if encrypt {
		op = "encrypt"
	}
	s.log.Noticef("%s %d sectors of %s (image %s) from sector %d, %s/%s, key %s",
		op, count, img.Name(), img.ID(), req.FirstSector, s.cfg.Mode, s.cipher.Name(), keyID)

	start := time.Now()
	buf := make([]byte, img.SectorSize())
	defer secure.Zero(buf)

	for i := uint64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s stopped after %d sectors: %w", op, i, err)
		}

		sector := req.FirstSector + i
		if err := img.ReadSectors(sector, buf); err != nil {
			return nil, err
		}
		if err := transform(ctx, sector, buf); err != nil {
			return nil, fmt.Errorf("failed to %s sector %d: %w", op, sector, err)
		}
		if err := img.WriteSectors(sector, buf); err != nil {
			return nil, err
		}
		s.log.Debugf("%s sector %d", op, sector)
	}

	if err := img.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync image: %w", err)
	}

	result := &SectorResult{
		ImageID:  img.ID(),
		KeyID:    keyID,
		Cipher:   s.cipher.Name(),
		Mode:     strings.ToLower(s.cfg.Mode),
		Sectors:  count,
		Duration: time.Since(start),
	}
	s.log.Infof("%s of %d sectors done in %s", op, count, result.Duration)

	return result, nil
}

// decTransform derives the DEC key once and transforms every sector as one
// transfer at its own coordinate
func (s *SectorService) decTransform(master []byte, req SectorRequest, encrypt bool) (sectorTransform, uuid.UUID, func(), error) {
	key, err := dec.InitializeKey(s.cipher, master)
	if err != nil {
		return nil, uuid.Nil, nil, err
	}

	blocks, err := dec.SectorBlocks(uint64(s.cfg.SectorSize), s.cipher)
	if err != nil {
		key.Reset()
		return nil, uuid.Nil, nil, err
	}

	perform := dec.DecryptPerform
	if encrypt {
		perform = dec.EncryptPerform
	}

	transform := func(ctx context.Context, sector uint64, buf []byte) error {
		at := dec.Coordinate{
			Partition:        req.Partition,
			PartitionCounter: req.PartitionCounter,
			Sector:           sector,
			SectorCounter:    req.SectorCounter,
		}
		return perform(s.cipher, key, at, buf, buf, blocks,
			dec.WithContext(ctx), dec.WithWorkers(s.cfg.Workers))
	}

	return transform, key.ID(), key.Reset, nil
}

// newTweakableCipher keys the configured tweakable mode with master. XTS and
// CMC split master into equal data and tweak keys, HEH takes it whole.
func (s *SectorService) newTweakableCipher(master []byte) (tweakableCipher, error) {
	mode := strings.ToLower(s.cfg.Mode)
	if mode == config.ModeHEH {
		return heh.New(s.cipher, master)
	}

	if len(master)%2 != 0 {
		return nil, fmt.Errorf("%w: %s needs two keys of equal size, got %d bytes", ErrInvalidRequest, mode, len(master))
	}
	half := len(master) / 2
	if mode == config.ModeCMC {
		return cmc.New(s.cipher, master[:half], master[half:])
	}
	return xts.New(s.cipher, master[:half], master[half:])
}

// tweakTransform transforms every sector with the sector number as the tweak;
// partition coordinates do not apply.
func (s *SectorService) tweakTransform(master []byte, encrypt bool) (sectorTransform, uuid.UUID, func(), error) {
	c, err := s.newTweakableCipher(master)
	if err != nil {
		return nil, uuid.Nil, nil, err
	}

	transform := func(_ context.Context, sector uint64, buf []byte) error {
		if encrypt {
			return c.Encrypt(buf, buf, sector)
		}
		return c.Decrypt(buf, buf, sector)
	}

	// These keys carry no derivation MAC to identify them by
	return transform, uuid.Nil, c.Reset, nil
}
