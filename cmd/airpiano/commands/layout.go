package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/airpiano/internal/keyboard"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the key rectangles of the configured keyboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("octaves") {
			cfg.Keyboard.Octaves, _ = cmd.Flags().GetInt("octaves")
			if err := cfg.Validate(); err != nil {
				return newPrinter(cmd).Error("Invalid option", err.Error(), nil)
			}
		}

		layout := keyboard.Build(cfg.Keyboard.Layout())
		p := newPrinter(cmd)
		p.Heading("%d octaves, %d keys, bounds %v\n", layout.Octaves(), layout.Notes(), layout.Bounds())

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NOTE\tNAME\tKIND\tRECT")
		for n := 0; n < layout.Notes(); n++ {
			k, _ := layout.Key(n)
			fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", k.Note, keyboard.NoteName(k.Note, cfg.Keyboard.BaseOctave), k.Kind, k.Rect)
		}
		return w.Flush()
	},
}

func init() {
	layoutCmd.Flags().Int("octaves", 0, "number of octaves")
	rootCmd.AddCommand(layoutCmd)
}
