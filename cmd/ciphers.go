package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

func newCiphersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ciphers",
		Short: "List the available block ciphers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBLOCK\tKEY SIZES")

			for _, name := range cipher.Names() {
				c, err := cipher.Lookup(name)
				if err != nil {
					return err
				}

				sizes := make([]string, 0, len(c.KeySizes()))
				for _, n := range c.KeySizes() {
					sizes = append(sizes, fmt.Sprint(n))
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", c.Name(), c.BlockSize(), strings.Join(sizes, ", "))
			}

			return w.Flush()
		},
	}
}
