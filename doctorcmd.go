package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"blinkos/doctor"
	"blinkos/shutdown"
)

var errChecksFailed = errors.New("some checks failed")

func newDoctorCmd(g *globalFlags) *cobra.Command {
	var noWait, deliver bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks for the store, hotkey, keystroke output and clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.config, "", "")
			if err != nil {
				return err
			}
			ctx, stop := shutdown.Context(context.Background())
			defer stop()
			opts := doctor.Options{
				Interactive: !noWait && term.IsTerminal(int(os.Stdin.Fd())),
				Deliver:     deliver,
			}
			if code := doctor.Run(ctx, cmd.OutOrStdout(), cfg, opts); code != 0 {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "skip the hotkey press test")
	cmd.Flags().BoolVar(&deliver, "deliver", false, "send a harmless key through the keystroke backend")
	return cmd
}
