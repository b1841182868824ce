package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
)

func newPayloadCmd(a *app) *cobra.Command {
	var (
		ff     fieldFlags
		asHTML bool
	)
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Print the configuration payload of a field",
		Long: `payload prints the JSON configuration a field embeds in its placeholder.
With --html the placeholder markup itself is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			f, err := ff.field(cmd, a, cat.Func())
			if err != nil {
				return err
			}

			if asHTML {
				var buf bytes.Buffer
				if err := f.Placeholder(reg).Render(cmd.Context(), &buf); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), buf.String())
				return err
			}

			p, err := f.Payload(reg)
			if err != nil {
				return err
			}
			out, err := p.Encode()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	ff.register(cmd.Flags())
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the placeholder element instead of the payload")
	return cmd
}
