package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GeorgyFirsov/bcm-lib/internal/secure"
	"github.com/GeorgyFirsov/bcm-lib/internal/services"
)

func newKeyInfoCommand(a *app) *cobra.Command {
	var (
		keyFile    string
		keyFormat  string
		cipherName string
	)

	cmd := &cobra.Command{
		Use:   "key-info",
		Short: "Show the identifier of the DEC key derived from a master key",
		Long: `Derive the DEC working key from a master key and print its public
identifier, cipher and format version. The identifier is what bcm logs
instead of key material, so it can be used to match log entries to keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if cmd.Flags().Changed("cipher") {
				cfg.Cipher = cipherName
			}

			svc, err := services.NewSectorService(&cfg, a.backend.GetLogger("services"))
			if err != nil {
				return err
			}

			master, err := readKeyFile(keyFile, keyFormat)
			if err != nil {
				return err
			}
			defer secure.Zero(master)

			info, err := svc.DescribeKey(master)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:       %s\n", info.ID)
			fmt.Fprintf(out, "cipher:   %s\n", info.Cipher)
			fmt.Fprintf(out, "version:  %d\n", info.Version)
			fmt.Fprintf(out, "key size: %d bytes\n", info.KeySize)
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyFile, "key-file", "k", "", "file holding the master key")
	cmd.Flags().StringVar(&keyFormat, "key-format", keyFormatHex, "encoding of the key file (hex, raw)")
	cmd.Flags().StringVar(&cipherName, "cipher", "", "block cipher, overrides the configuration")
	cmd.MarkFlagRequired("key-file")

	return cmd
}
