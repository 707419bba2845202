package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgyFirsov/bcm-lib/internal/config"
	"github.com/GeorgyFirsov/bcm-lib/internal/device"
	"github.com/GeorgyFirsov/bcm-lib/internal/log"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cmc"
	"github.com/GeorgyFirsov/bcm-lib/pkg/dec"
	"github.com/GeorgyFirsov/bcm-lib/pkg/heh"
)

const testSectorSize = 512

func testConfig(cipherName, mode string) *config.Config {
	return &config.Config{
		Cipher:     cipherName,
		Mode:       mode,
		SectorSize: testSectorSize,
		Workers:    2,
		Log:        config.LogConfig{Level: "DEBUG"},
	}
}

func newTestService(t *testing.T, cfg *config.Config) (*SectorService, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	backend, err := log.NewWriter(&out, cfg.Log.Level)
	require.NoError(t, err)

	svc, err := NewSectorService(cfg, backend.GetLogger("services"))
	require.NoError(t, err)
	return svc, &out
}

func testImage(t *testing.T, sectors int) (*device.Image, []byte) {
	t.Helper()

	data := make([]byte, sectors*testSectorSize)
	for i := range data {
		data[i] = byte(i % 251)
	}

	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, data, 0600))

	img, err := device.Open(path, testSectorSize, true)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })

	return img, data
}

func readAll(t *testing.T, img *device.Image) []byte {
	t.Helper()
	buf := make([]byte, int(img.Sectors())*img.SectorSize())
	require.NoError(t, img.ReadSectors(0, buf))
	return buf
}

func master(n int) []byte {
	return bytes.Repeat([]byte{0x3c}, n)
}

func TestSectorServiceRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cipher string
		mode   string
		keyLen int
	}{
		{"dec kuznyechik", "kuznyechik", config.ModeDEC, 32},
		{"dec magma", "magma", config.ModeDEC, 32},
		{"dec aes", "aes", config.ModeDEC, 16},
		{"xts aes-256", "aes", config.ModeXTS, 64},
		{"xts kuznyechik", "kuznyechik", config.ModeXTS, 64},
		{"cmc aes-128", "aes", config.ModeCMC, 32},
		{"cmc kuznyechik", "kuznyechik", config.ModeCMC, 64},
		{"heh aes-bitsliced", "aes-bitsliced", config.ModeHEH, 32},
		{"heh kuznyechik", "kuznyechik", config.ModeHEH, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, testConfig(tt.cipher, tt.mode))
			img, plain := testImage(t, 8)
			req := SectorRequest{Partition: 1, PartitionCounter: 2, SectorCounter: 3}

			res, err := svc.Encrypt(context.Background(), img, master(tt.keyLen), req)
			require.NoError(t, err)
			assert.Equal(t, uint64(8), res.Sectors)
			assert.Equal(t, tt.mode, res.Mode)
			assert.Equal(t, img.ID(), res.ImageID)

			encrypted := readAll(t, img)
			for s := 0; s < 8; s++ {
				off := s * testSectorSize
				assert.NotEqual(t, plain[off:off+testSectorSize], encrypted[off:off+testSectorSize], "sector %d", s)
			}

			_, err = svc.Decrypt(context.Background(), img, master(tt.keyLen), req)
			require.NoError(t, err)
			assert.Equal(t, plain, readAll(t, img))
		})
	}
}

func TestSectorServiceMatchesEngine(t *testing.T) {
	svc, _ := newTestService(t, testConfig("kuznyechik", config.ModeDEC))
	img, plain := testImage(t, 4)
	req := SectorRequest{Partition: 9, PartitionCounter: 1, FirstSector: 1, SectorCounter: 5, Sectors: 2}

	_, err := svc.Encrypt(context.Background(), img, master(32), req)
	require.NoError(t, err)
	got := readAll(t, img)

	want := bytes.Clone(plain)
	for sector := uint64(1); sector < 3; sector++ {
		off := int(sector) * testSectorSize
		at := dec.Coordinate{Partition: 9, PartitionCounter: 1, Sector: sector, SectorCounter: 5}
		buf := want[off : off+testSectorSize]
		require.NoError(t, dec.Encrypt(cipher.Kuznyechik(), master(32), at, buf, buf, testSectorSize/16))
	}

	assert.Equal(t, want, got)
	assert.Equal(t, plain[:testSectorSize], got[:testSectorSize], "sectors outside the range are untouched")
	assert.Equal(t, plain[3*testSectorSize:], got[3*testSectorSize:], "sectors outside the range are untouched")
}

func TestSectorServiceWideBlockModesTweakBySector(t *testing.T) {
	key := master(32)
	cmcCipher, err := cmc.New(cipher.AES(), key[:16], key[16:])
	require.NoError(t, err)
	defer cmcCipher.Reset()
	hehCipher, err := heh.New(cipher.Kuznyechik(), key)
	require.NoError(t, err)
	defer hehCipher.Reset()

	tests := []struct {
		cipher  string
		mode    string
		encrypt func(dst, src []byte, tweak uint64) error
	}{
		{"aes", config.ModeCMC, cmcCipher.Encrypt},
		{"kuznyechik", config.ModeHEH, hehCipher.Encrypt},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			svc, _ := newTestService(t, testConfig(tt.cipher, tt.mode))
			img, plain := testImage(t, 4)
			req := SectorRequest{Partition: 9, FirstSector: 1, Sectors: 2}

			res, err := svc.Encrypt(context.Background(), img, key, req)
			require.NoError(t, err)
			assert.Equal(t, uuid.Nil, res.KeyID)

			want := bytes.Clone(plain)
			for sector := uint64(1); sector < 3; sector++ {
				off := int(sector) * testSectorSize
				buf := want[off : off+testSectorSize]
				require.NoError(t, tt.encrypt(buf, buf, sector))
			}
			assert.Equal(t, want, readAll(t, img))
		})
	}
}

func TestSectorServiceLogs(t *testing.T) {
	svc, out := newTestService(t, testConfig("kuznyechik", config.ModeDEC))
	img, _ := testImage(t, 2)

	res, err := svc.Encrypt(context.Background(), img, master(32), SectorRequest{})
	require.NoError(t, err)

	info, err := svc.DescribeKey(master(32))
	require.NoError(t, err)
	assert.Equal(t, info.ID, res.KeyID)

	logged := out.String()
	assert.Contains(t, logged, "NOTI services: encrypt 2 sectors")
	assert.Contains(t, logged, res.KeyID.String())
	assert.Contains(t, logged, "DEBU services: encrypt sector 1")
	assert.NotContains(t, logged, string(master(32)))
}

func TestSectorServiceErrors(t *testing.T) {
	svc, _ := newTestService(t, testConfig("kuznyechik", config.ModeDEC))
	img, plain := testImage(t, 4)
	ctx := context.Background()

	_, err := svc.Encrypt(ctx, img, master(32), SectorRequest{FirstSector: 4})
	assert.ErrorIs(t, err, device.ErrOutOfRange)

	_, err = svc.Encrypt(ctx, img, master(32), SectorRequest{FirstSector: 2, Sectors: 3})
	assert.ErrorIs(t, err, device.ErrOutOfRange)

	_, err = svc.Encrypt(ctx, img, master(16), SectorRequest{})
	assert.ErrorIs(t, err, dec.ErrInvalidKeyLength)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Encrypt(cancelled, img, master(32), SectorRequest{})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, plain, readAll(t, img), "failed requests must not modify the image")

	other, err := device.Create(filepath.Join(t.TempDir(), "big.img"), 4096, 1)
	require.NoError(t, err)
	defer other.Close()
	_, err = svc.Encrypt(ctx, other, master(32), SectorRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	for _, mode := range []string{config.ModeXTS, config.ModeCMC} {
		split, _ := newTestService(t, testConfig("aes", mode))
		_, err = split.Encrypt(ctx, img, master(33), SectorRequest{})
		assert.ErrorIs(t, err, ErrInvalidRequest, mode)
	}

	hehSvc, _ := newTestService(t, testConfig("aes", config.ModeHEH))
	_, err = hehSvc.Encrypt(ctx, img, master(20), SectorRequest{})
	assert.ErrorIs(t, err, heh.ErrInvalidKeySize)
}

func TestNewSectorServiceRejectsInvalidConfig(t *testing.T) {
	backend, err := log.NewWriter(&bytes.Buffer{}, "INFO")
	require.NoError(t, err)

	_, err = NewSectorService(testConfig("des", config.ModeDEC), backend.GetLogger("services"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDescribeKey(t *testing.T) {
	svc, _ := newTestService(t, testConfig("magma", config.ModeDEC))

	info, err := svc.DescribeKey(master(32))
	require.NoError(t, err)
	assert.Equal(t, "magma", info.Cipher)
	assert.Equal(t, dec.FormatVersion, info.Version)
	assert.Equal(t, 32, info.KeySize)
	assert.NotEqual(t, uuid.Nil, info.ID)

	_, err = svc.DescribeKey(master(8))
	assert.ErrorIs(t, err, dec.ErrInvalidKeyLength)
}
