package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/op/go-logging.v1"

	"github.com/GeorgyFirsov/bcm-lib/internal/config"
	"github.com/GeorgyFirsov/bcm-lib/internal/log"
)

// app carries the state shared by the subcommands of one invocation
type app struct {
	// Global flags
	cfgFile string
	verbose bool

	cfg     *config.Config
	backend *log.Backend
	log     *logging.Logger
}

// NewRootCommand builds the bcm command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "bcm",
		Short: "Sector encryption tool for disk and partition images",
		Long: `bcm encrypts and decrypts sector ranges of raw disk or partition images
in place, using the DEC, XTS, CMC or HEH sector modes over AES, Kuznyechik
or Magma.

Master keys are read from hex encoded key files, or from binary ones with
--key-format raw.

Commands:
  encrypt     Encrypt a range of sectors
  decrypt     Decrypt a range of sectors
  key-info    Show the identifier of a derived key
  ciphers     List the available block ciphers`,
		Version:           "0.1.0-dev",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.backend != nil {
				return a.backend.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: bcm-config.yaml in ., $HOME/.bcm or /etc/bcm)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newTransformCommand(a, true),
		newTransformCommand(a, false),
		newKeyInfoCommand(a),
		newCiphersCommand(),
	)

	return rootCmd
}

// setup loads the configuration and starts logging before any subcommand runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "DEBUG"
	}

	backend, err := log.New(cfg.Log.File, cfg.Log.Level, cfg.Log.Disable)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.backend = backend
	a.log = backend.GetLogger("bcm")
	a.log.Debugf("configuration: cipher %s, mode %s, sector size %d, workers %d",
		cfg.Cipher, cfg.Mode, cfg.SectorSize, cfg.Workers)

	return nil
}

// Execute runs the bcm command line, cancelling work on interrupt.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
