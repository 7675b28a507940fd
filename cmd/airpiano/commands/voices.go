package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/airpiano/internal/config"
	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/store"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Manage voice banks",
	Long: `A voice bank maps keyboard notes to sample files (sample engine) or MIDI
keys such as "midi:60" (midi engine). Notes a bank leaves out keep their
default voice.`,
}

var voicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List voice banks",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, st *store.Store, args []string) error {
		banks, err := st.Banks().List()
		if err != nil {
			return err
		}
		p := newPrinter(cmd)
		if len(banks) == 0 {
			p.Info("No voice banks. Import one with: airpiano voices import <name> <dir>\n")
			return nil
		}

		active, _ := st.Settings().Get(store.SettingActiveBank)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tNAME\tENGINE\tDESCRIPTION")
		for _, b := range banks {
			mark := ""
			if b.Name == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, b.Name, b.Engine, b.Description)
		}
		return w.Flush()
	}),
}

var voicesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the samples of a voice bank",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, st *store.Store, args []string) error {
		b, err := getBank(cmd, st, args[0])
		if err != nil {
			return err
		}

		p := newPrinter(cmd)
		p.Heading("%s (%s)\n", b.Name, b.Engine)
		notes := make([]int, 0, len(b.Samples))
		for n := range b.Samples {
			notes = append(notes, n)
		}
		sort.Ints(notes)
		for _, n := range notes {
			p.Info("  %-4s %s\n", keyboard.NoteName(n, cfg.Keyboard.BaseOctave), b.Samples[n])
		}
		return nil
	}),
}

var voicesImportCmd = &cobra.Command{
	Use:   "import <name> <dir|file.json>",
	Short: "Create a voice bank from a tones directory or a JSON note map",
	Long: `Create a voice bank.

From a directory, every note takes the first existing file among
<name><octave>.wav (for example C#5.wav) and <name>.wav (C#.wav).

From a JSON file, the object maps note indexes to paths:
  {"0": "midi:60", "1": "midi:61"}`,
	Args: cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, st *store.Store, args []string) error {
		p := newPrinter(cmd)
		name, src := args[0], args[1]

		engine, _ := cmd.Flags().GetString("engine")
		description, _ := cmd.Flags().GetString("description")

		notes := keyboard.Build(cfg.Keyboard.Layout()).Notes()
		samples, err := readSamples(src, notes, cfg.Keyboard.BaseOctave)
		if err != nil {
			return p.Error("Failed to read voices", err.Error(), nil)
		}
		if len(samples) == 0 {
			return p.Error("No voices found", fmt.Sprintf("%s has no usable samples.", src), []string{
				"Name files after their pitch, for example C.wav or C#4.wav",
			})
		}

		b := &store.Bank{Name: name, Engine: engine, Description: description, Samples: samples}
		if err := st.Banks().Create(b); err != nil {
			if _, getErr := st.Banks().GetByName(name); getErr == nil {
				return p.Error("Voice bank already exists", fmt.Sprintf("A bank named '%s' already exists.", name), []string{
					fmt.Sprintf("Delete it first with: airpiano voices delete %s", name),
				})
			}
			return err
		}

		p.Success("Imported %s with %d of %d notes\n", name, len(samples), notes)
		return nil
	}),
}

var voicesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a voice bank",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, st *store.Store, args []string) error {
		b, err := getBank(cmd, st, args[0])
		if err != nil {
			return err
		}
		if err := st.Banks().Delete(b.ID); err != nil {
			return err
		}
		if active, err := st.Settings().Get(store.SettingActiveBank); err == nil && active == b.Name {
			if err := st.Settings().Delete(store.SettingActiveBank); err != nil {
				return err
			}
		}
		newPrinter(cmd).Success("Deleted %s\n", b.Name)
		return nil
	}),
}

var voicesUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a voice bank the default for play",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, cfg *config.Config, st *store.Store, args []string) error {
		b, err := getBank(cmd, st, args[0])
		if err != nil {
			return err
		}
		if err := st.Settings().Set(store.SettingActiveBank, b.Name); err != nil {
			return err
		}

		p := newPrinter(cmd)
		p.Success("Using %s\n", b.Name)
		if b.Engine != cfg.Voice.Engine {
			p.Warning("%s is a %s bank but voice.engine is %s\n", b.Name, b.Engine, cfg.Voice.Engine)
		}
		return nil
	}),
}

func init() {
	voicesImportCmd.Flags().String("engine", store.BankEngineSample, "engine the bank is for: sample or midi")
	voicesImportCmd.Flags().String("description", "", "bank description")

	voicesCmd.AddCommand(voicesListCmd, voicesShowCmd, voicesImportCmd, voicesDeleteCmd, voicesUseCmd)
	rootCmd.AddCommand(voicesCmd)
}

type storeRunE func(cmd *cobra.Command, cfg *config.Config, st *store.Store, args []string) error

// withStore loads the configuration and opens the store around fn.
func withStore(fn storeRunE) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(cmd, cfg, st, args)
	}
}

func getBank(cmd *cobra.Command, st *store.Store, name string) (*store.Bank, error) {
	b, err := st.Banks().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newPrinter(cmd).Error("Voice bank not found", fmt.Sprintf("No bank named '%s'.", name), []string{
			"List banks with: airpiano voices list",
		})
	}
	return b, err
}

// readSamples builds a note map from a tones directory or a JSON file.
func readSamples(src string, notes, baseOctave int) (map[int]string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		var samples map[int]string
		if err := json.Unmarshal(data, &samples); err != nil {
			return nil, fmt.Errorf("parse %s: %w", src, err)
		}
		for n := range samples {
			if n < 0 || n >= notes {
				return nil, fmt.Errorf("note %d is outside the %d-key keyboard", n, notes)
			}
		}
		return samples, nil
	}

	dir, err := filepath.Abs(src)
	if err != nil {
		return nil, err
	}
	samples := make(map[int]string)
	for n := 0; n < notes; n++ {
		for _, name := range []string{keyboard.NoteName(n, baseOctave), keyboard.PitchClass(n)} {
			path := filepath.Join(dir, name+".wav")
			if _, err := os.Stat(path); err == nil {
				samples[n] = path
				break
			}
		}
	}
	return samples, nil
}
