package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blinkos/calibration"
	"blinkos/config"
	"blinkos/store"
)

// openStore opens the on-disk store named by cfg, creating its directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	dir, err := cfg.StoreDir()
	if err != nil {
		return nil, fmt.Errorf("locating store: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	kv, err := store.Open(store.Options{Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", dir, err)
	}
	return kv, nil
}

// withRepo loads the config, opens the profile repository and runs fn.
func withRepo(g *globalFlags, fn func(ctx context.Context, repo *calibration.Repository) error) error {
	cfg, err := loadConfig(g.config, "", "")
	if err != nil {
		return err
	}
	kv, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	return fn(context.Background(), calibration.NewRepository(kv))
}

func newProfileCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage stored calibration profiles",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles, newest first; * marks the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepo(g, func(ctx context.Context, repo *calibration.Repository) error {
				profiles, listErr := repo.List(ctx)
				active, _ := repo.ActiveID(ctx)
				printProfiles(cmd.OutOrStdout(), profiles, active)
				if listErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unreadable profiles skipped: %v\n", listErr)
				}
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export <id> <file|->",
		Short: "Write a profile record to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(g, func(ctx context.Context, repo *calibration.Repository) error {
				p, err := repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				data, err := calibration.Encode(p)
				if err != nil {
					return err
				}
				if args[1] == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(args[1], data, 0o644)
			})
		},
	}

	var activate bool
	imp := &cobra.Command{
		Use:   "import <file|->",
		Short: "Store a profile record exported earlier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			p, err := calibration.Decode(data)
			if err != nil {
				return err
			}
			return withRepo(g, func(ctx context.Context, repo *calibration.Repository) error {
				if err := repo.Save(ctx, p); err != nil {
					return err
				}
				if activate {
					if err := repo.SetActive(ctx, p.ID); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", p.ID)
				return nil
			})
		},
	}
	imp.Flags().BoolVar(&activate, "use", false, "make the imported profile active")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(g, func(ctx context.Context, repo *calibration.Repository) error {
				if _, err := repo.Get(ctx, args[0]); err != nil {
					return err
				}
				return repo.Delete(ctx, args[0])
			})
		},
	}

	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Make a profile active for the next run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(g, func(ctx context.Context, repo *calibration.Repository) error {
				if _, err := repo.Get(ctx, args[0]); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("no profile %s (see 'blinkos profile list')", args[0])
					}
					return err
				}
				return repo.SetActive(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(list, export, imp, del, use)
	return cmd
}

func printProfiles(w io.Writer, profiles []*calibration.Profile, active string) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "no profiles; calibrate from 'blinkos run' (c, then space per point)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tCREATED\tSCREEN\tRMS PX")
	for _, p := range profiles {
		mark := ""
		if p.ID == active {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d\t%.1f\n",
			mark, p.ID, p.CreatedAt.Format("2006-01-02 15:04"), p.ScreenW, p.ScreenH, p.RMSPixels)
	}
	tw.Flush()
}
