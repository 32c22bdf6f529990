package calibration

import (
	"fmt"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	keyGain   = "gain"
	keyOffset = "offset"
)

// Save writes the installed calibration as a key=value record.
func (u *Unit) Save(path string) error {
	st := u.State()
	if !st.Calibrated() {
		return ErrNotCalibrated
	}

	k := koanf.New(".")
	_ = k.Set(keyGain, strconv.FormatFloat(st.Gain.V, 'g', -1, 64))
	_ = k.Set(keyOffset, strconv.FormatFloat(st.Offset.V, 'g', -1, 64))

	data, err := k.Marshal(dotenv.Parser())
	if err != nil {
		return fmt.Errorf("marshal calibration record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write calibration record %s: %w", path, err)
	}
	return nil
}

// Load reads a key=value record written by Save and installs it.
func (u *Unit) Load(path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), dotenv.Parser()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, path, err)
	}

	gain, err := parseKey(k, keyGain)
	if err != nil {
		return err
	}
	offset, err := parseKey(k, keyOffset)
	if err != nil {
		return err
	}
	if err := u.Install(gain, offset); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

func parseKey(k *koanf.Koanf, key string) (float64, error) {
	if !k.Exists(key) {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidRecord, key)
	}
	v, err := strconv.ParseFloat(k.String(key), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, key, err)
	}
	return v, nil
}
