package cmd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GeorgyFirsov/bcm-lib/internal/device"
	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/internal/services"
)

// transformOptions holds the flags of the encrypt and decrypt commands
type transformOptions struct {
	keyFile   string
	keyFormat string

	// Coordinates
	partition        uint64
	partitionCounter uint64
	firstSector      uint64
	sectorCounter    uint64
	sectors          uint64

	// Overrides of the configuration file
	cipher  string
	mode    string
	workers int
}

func newTransformCommand(a *app, encrypt bool) *cobra.Command {
	opts := &transformOptions{}

	verb, past := "decrypt", "decrypted"
	if encrypt {
		verb, past = "encrypt", "encrypted"
	}

	cmd := &cobra.Command{
		Use:   verb + " <image>",
		Short: fmt.Sprintf("%s a range of sectors of an image in place", capitalize(verb)),
		Long: fmt.Sprintf(`%s a range of sectors of a raw disk or partition image in place.

Every sector is transformed at its own coordinate, made of the partition
number, the partition counter, the sector number and the sector counter.
Decryption must use the coordinates that were used for encryption.

Examples:
  # %s a whole image with the configured cipher
  bcm %s disk.img --key-file master.key

  # %s sectors 2048 to 4095 of partition 1 with Magma
  bcm %s disk.img --key-file master.key --cipher magma \
      --partition 1 --first-sector 2048 --sectors 2048`,
			capitalize(verb), capitalize(verb), verb, capitalize(verb), verb),

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, a, opts, args[0], encrypt, past)
		},
	}

	cmd.Flags().StringVarP(&opts.keyFile, "key-file", "k", "", "file holding the master key")
	cmd.Flags().StringVar(&opts.keyFormat, "key-format", keyFormatHex, "encoding of the key file (hex, raw)")
	cmd.Flags().Uint64Var(&opts.partition, "partition", 0, "partition number")
	cmd.Flags().Uint64Var(&opts.partitionCounter, "partition-counter", 0, "partition counter")
	cmd.Flags().Uint64Var(&opts.firstSector, "first-sector", 0, "first sector to transform")
	cmd.Flags().Uint64Var(&opts.sectorCounter, "sector-counter", 0, "sector counter")
	cmd.Flags().Uint64Var(&opts.sectors, "sectors", 0, "number of sectors, 0 for all up to the end of the image")
	cmd.Flags().StringVar(&opts.cipher, "cipher", "", "block cipher, overrides the configuration")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "sector mode (dec, xts, cmc, heh), overrides the configuration")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "worker goroutines per sector, overrides the configuration")

	cmd.MarkFlagRequired("key-file")

	return cmd
}

func runTransform(cmd *cobra.Command, a *app, opts *transformOptions, path string, encrypt bool, past string) error {
	cfg := *a.cfg
	if cmd.Flags().Changed("cipher") {
		cfg.Cipher = opts.cipher
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = opts.mode
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = opts.workers
	}

	svc, err := services.NewSectorService(&cfg, a.backend.GetLogger("services"))
	if err != nil {
		return err
	}

	master, err := readKeyFile(opts.keyFile, opts.keyFormat)
	if err != nil {
		return err
	}
	defer secure.Zero(master)

	img, err := device.Open(path, cfg.SectorSize, true)
	if err != nil {
		return err
	}
	defer img.Close()

	req := services.SectorRequest{
		Partition:        opts.partition,
		PartitionCounter: opts.partitionCounter,
		FirstSector:      opts.firstSector,
		SectorCounter:    opts.sectorCounter,
		Sectors:          opts.sectors,
	}

	transform := svc.Decrypt
	if encrypt {
		transform = svc.Encrypt
	}

	res, err := transform(cmd.Context(), img, master, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %d sectors of %s with %s/%s in %s\n",
		past, res.Sectors, path, res.Mode, res.Cipher, res.Duration)
	return nil
}

// Key file encodings.
const (
	keyFormatHex = "hex"
	keyFormatRaw = "raw"
)

// readKeyFile returns the master key stored in path. A hex key file may be
// surrounded by whitespace and must decode completely; a raw key file is
// taken byte for byte.
func readKeyFile(path, format string) ([]byte, error) {
	if format != keyFormatHex && format != keyFormatRaw {
		return nil, fmt.Errorf("unknown key format %q, want %s or %s", format, keyFormatHex, keyFormatRaw)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if format == keyFormatRaw {
		if len(data) == 0 {
			return nil, fmt.Errorf("key file %s is empty", path)
		}
		return data, nil
	}
	defer secure.Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("key file %s is empty", path)
	}

	decoded := make([]byte, hex.DecodedLen(len(trimmed)))
	if _, err := hex.Decode(decoded, trimmed); err != nil {
		secure.Zero(decoded)
		return nil, fmt.Errorf("key file %s is not hex encoded, use --key-format raw for binary keys: %w", path, err)
	}
	return decoded, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
