package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"weft/internal/ic"
	"weft/internal/icfile"
	"weft/internal/opt"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Validate IC programs and their passed-in lists",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
		if err != nil {
			return fmt.Errorf("failed to get quiet flag: %w", err)
		}
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			if err := checkFile(path); err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s:\n%v\n", path, err)
				continue
			}
			if !quiet {
				fmt.Fprintf(out, "ok %s\n", path)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed checks", failed, len(args))
		}
		return nil
	},
}

// checkFile reports validation defects and stale or missing passed-in
// entries together.
func checkFile(path string) error {
	p, err := icfile.Read(path)
	if err != nil {
		return err
	}
	return errors.Join(ic.Validate(p), opt.CheckPassing(p))
}
