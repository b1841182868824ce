package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/hxselect/internal/tui"
	"github.com/pthm/hxselect/widget"
)

var errCanceled = errors.New("selection canceled")

func newPickCmd(a *app) *cobra.Command {
	var ff fieldFlags
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Pick values in the terminal and print the submitted value",
		Long: `pick runs a select widget in the terminal. Type to search, enter to
select, ctrl+x to remove the last value and ctrl+s to finish. The value a
form would submit is printed to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry()
			if err != nil {
				return err
			}
			defer reg.Dispose()

			cat, err := a.catalog()
			if err != nil {
				return err
			}
			f, err := ff.field(cmd, a, cat.Func())
			if err != nil {
				return err
			}
			p, err := f.Payload(reg)
			if err != nil {
				return err
			}

			w, err := widget.New(p, reg.Searcher(p), reg.WidgetOptions()...)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Hydrate(ctx); err != nil {
				a.logger.Warn("initial value lookup failed", zap.Error(err))
			}

			res, err := tui.Run(ctx, w, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if res.Canceled {
				return errCanceled
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Value)
			return err
		},
	}
	ff.register(cmd.Flags())
	return cmd
}
