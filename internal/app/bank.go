package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/ayusman/airpiano/internal/config"
	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/store"
)

// MIDIBank returns the bank that maps every note to its MIDI key.
func MIDIBank(notes, baseOctave int) map[int]string {
	bank := make(map[int]string, notes)
	for n := 0; n < notes; n++ {
		bank[n] = fmt.Sprintf("midi:%d", (baseOctave+1)*12+n)
	}
	return bank
}

// TonesBank returns the bank that plays dir/<pitch class>.wav for every
// note, reusing the same twelve files in each octave.
func TonesBank(dir string, notes int) map[int]string {
	bank := make(map[int]string, notes)
	for n := 0; n < notes; n++ {
		bank[n] = filepath.Join(dir, keyboard.PitchClass(n)+".wav")
	}
	return bank
}

// resolveBank returns the default bank for the configured engine with the
// samples of the named bank laid over it. The name comes from voice.bank,
// or from the active bank setting when voice.bank is empty.
func (a *App) resolveBank() (map[int]string, error) {
	notes := a.layout.Notes()
	v := a.settings.Voice

	var bank map[int]string
	if v.Engine == config.EngineSample {
		bank = TonesBank(v.TonesDir, notes)
	} else {
		bank = MIDIBank(notes, a.settings.Keyboard.BaseOctave)
	}

	name := v.Bank
	if name == "" && a.store != nil {
		active, err := a.store.Settings().Get(store.SettingActiveBank)
		switch {
		case err == nil:
			name = active
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("read active bank: %w", err)
		}
	}
	if name == "" {
		return bank, nil
	}
	if a.store == nil {
		return nil, fmt.Errorf("voice bank %q requested without a store", name)
	}

	b, err := a.store.Banks().GetByName(name)
	if err != nil {
		return nil, fmt.Errorf("load voice bank %q: %w", name, err)
	}
	if b.Engine != v.Engine && v.Engine != config.EngineMock {
		log.Printf("Voice bank %s is for the %s engine, playing it on %s", b.Name, b.Engine, v.Engine)
	}
	for note, path := range b.Samples {
		if note >= 0 && note < notes {
			bank[note] = path
		}
	}
	log.Printf("Using voice bank %s (%d samples)", b.Name, len(b.Samples))
	return bank, nil
}
