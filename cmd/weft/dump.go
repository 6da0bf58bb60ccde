package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"weft/internal/ic"
	"weft/internal/icfile"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] FILE...",
	Short: "Print IC programs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		format = strings.ToLower(format)
		if format != "text" && format != "json" {
			return fmt.Errorf("unsupported format %q (must be text or json)", format)
		}
		useColor, err := colorEnabled(cmd, os.Stdout)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, path := range args {
			p, err := icfile.Read(path)
			if err != nil {
				return err
			}
			if format == "json" {
				if err := icfile.Encode(out, p, icfile.FormatJSON); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				continue
			}
			if len(args) > 1 {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "# %s\n", path)
			}
			if err := ic.Dump(out, p, ic.DumpOptions{Color: useColor}); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().String("format", "text", "output format (text|json)")
}
