package lqa

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

var magic = [10]byte{'P', 'C', 'A', 'L', 'E', '_', 'L', 'Q', 'A', 0}

const persistVersion = 1

func putFloat64(w io.Writer, v float64) error {
	return binary.Write(w, binary.LittleEndian, math.Float64bits(v))
}

func getFloat64(r io.Reader) (float64, error) {
	var bits uint64
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// SaveToFile writes the database's configuration and all entries to path
// in the binary format documented in spec.md §4.12/§6: 10-byte magic
// "PCALE_LQA\0", u32 version, the config block, a u32 entry count, then
// each entry's fields in a fixed order.
func (d *Database) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lqa: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("lqa: write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(persistVersion)); err != nil {
		return fmt.Errorf("lqa: write version: %w", err)
	}

	if err := putFloat64(w, d.cfg.Decay); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, d.cfg.MaxAgeMs); err != nil {
		return err
	}
	if err := putFloat64(w, d.cfg.WeightSNR); err != nil {
		return err
	}
	if err := putFloat64(w, d.cfg.WeightSuccess); err != nil {
		return err
	}
	if err := putFloat64(w, d.cfg.WeightRecency); err != nil {
		return err
	}

	entries := d.GetAllEntries()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := writeEntry(w, e); err != nil {
			return fmt.Errorf("lqa: write entry: %w", err)
		}
	}

	return w.Flush()
}

func writeEntry(w io.Writer, e *Entry) error {
	if err := binary.Write(w, binary.LittleEndian, e.Key.FrequencyHz); err != nil {
		return err
	}
	name := []byte(e.Key.Station)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(name))); err != nil {
		return err
	}
	if _, err := w.Write(name); err != nil {
		return err
	}
	for _, v := range []float64{e.SNRDb, e.BER, e.SINADDb} {
		if err := putFloat64(w, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, e.FECErrors); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.TotalWords); err != nil {
		return err
	}
	for _, v := range []float64{e.MultipathScore, e.NoiseFloorDbm} {
		if err := putFloat64(w, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, e.LastSoundingMs); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.LastContactMs); err != nil {
		return err
	}
	if err := putFloat64(w, e.Score); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, e.SampleCount)
}

// LoadFromFile replaces the database's contents with those in path,
// validating the magic header first.
func (d *Database) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("lqa: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var gotMagic [10]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return fmt.Errorf("lqa: read magic: %w", err)
	}
	if gotMagic != magic {
		return fmt.Errorf("lqa: bad magic in %s", path)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("lqa: read version: %w", err)
	}
	if version != persistVersion {
		return fmt.Errorf("lqa: unsupported version %d", version)
	}

	var cfg Config
	if cfg.Decay, err = getFloat64(r); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &cfg.MaxAgeMs); err != nil {
		return err
	}
	if cfg.WeightSNR, err = getFloat64(r); err != nil {
		return err
	}
	if cfg.WeightSuccess, err = getFloat64(r); err != nil {
		return err
	}
	if cfg.WeightRecency, err = getFloat64(r); err != nil {
		return err
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("lqa: read entry count: %w", err)
	}

	entries := make(map[Key]*Entry, count)
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(r)
		if err != nil {
			return fmt.Errorf("lqa: read entry %d: %w", i, err)
		}
		entries[e.Key] = e
	}

	d.cfg = cfg
	d.entries = entries
	return nil
}

func readEntry(r io.Reader) (*Entry, error) {
	var e Entry
	if err := binary.Read(r, binary.LittleEndian, &e.Key.FrequencyHz); err != nil {
		return nil, err
	}
	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}
	e.Key.Station = string(name)

	var err error
	if e.SNRDb, err = getFloat64(r); err != nil {
		return nil, err
	}
	if e.BER, err = getFloat64(r); err != nil {
		return nil, err
	}
	if e.SINADDb, err = getFloat64(r); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.FECErrors); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.TotalWords); err != nil {
		return nil, err
	}
	if e.MultipathScore, err = getFloat64(r); err != nil {
		return nil, err
	}
	if e.NoiseFloorDbm, err = getFloat64(r); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.LastSoundingMs); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.LastContactMs); err != nil {
		return nil, err
	}
	if e.Score, err = getFloat64(r); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.SampleCount); err != nil {
		return nil, err
	}
	return &e, nil
}

// ExportToCSV writes a human-readable CSV with the exact header and
// field order documented in spec.md §6.
func (d *Database) ExportToCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lqa: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := "Frequency(Hz),Station,SNR(dB),BER,SINAD(dB),FEC_Errors,Total_Words,Multipath,Noise_Floor(dBm),Last_Sounding_ms,Last_Contact_ms,Score,Samples\n"
	if _, err := w.WriteString(header); err != nil {
		return err
	}

	for _, e := range d.GetAllEntries() {
		line := fmt.Sprintf("%d,%s,%.2f,%.4f,%.2f,%d,%d,%.4f,%.2f,%d,%d,%.2f,%d\n",
			e.Key.FrequencyHz, e.Key.Station, e.SNRDb, e.BER, e.SINADDb,
			e.FECErrors, e.TotalWords, e.MultipathScore, e.NoiseFloorDbm,
			e.LastSoundingMs, e.LastContactMs, e.Score, e.SampleCount)
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}

	return w.Flush()
}
