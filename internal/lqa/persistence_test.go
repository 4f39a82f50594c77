package lqa

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	db := NewDatabase()
	db.UpdateEntry(2500000, "K6K", 22.5, 0.001, 1, 1000)
	db.UpdateEntry(2500000, "", 18.0, 0, 0, 2000)
	db.UpdateEntryExtended(3000000, "W1A", 15.0, 0.01, 12.0, 0.2, -95.0, 3, 5, 4000)

	dir := t.TempDir()
	path := filepath.Join(dir, "lqa.dat")

	if err := db.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded := NewDatabase()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if loaded.cfg != db.cfg {
		t.Errorf("config mismatch after round trip: got %+v, want %+v", loaded.cfg, db.cfg)
	}

	for key, want := range db.entries {
		got, ok := loaded.entries[key]
		if !ok {
			t.Fatalf("missing entry for %+v after round trip", key)
		}
		if *got != *want {
			t.Errorf("entry %+v mismatch: got %+v, want %+v", key, *got, *want)
		}
	}
	if len(loaded.entries) != len(db.entries) {
		t.Errorf("entry count mismatch: got %d, want %d", len(loaded.entries), len(db.entries))
	}
}

func TestLoadFromFile_RejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.dat")
	if err := os.WriteFile(path, []byte("not an lqa file at all"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	db := NewDatabase()
	if err := db.LoadFromFile(path); err == nil {
		t.Fatal("expected error loading file with bad magic")
	}
}

func TestExportToCSV_HeaderAndRow(t *testing.T) {
	db := NewDatabase()
	db.UpdateEntry(2500000, "K6K", 22.5, 0.001, 1, 1000)

	dir := t.TempDir()
	path := filepath.Join(dir, "lqa.csv")
	if err := db.ExportToCSV(path); err != nil {
		t.Fatalf("ExportToCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), lines)
	}

	wantHeader := "Frequency(Hz),Station,SNR(dB),BER,SINAD(dB),FEC_Errors,Total_Words,Multipath,Noise_Floor(dBm),Last_Sounding_ms,Last_Contact_ms,Score,Samples"
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}

	fields := strings.Split(lines[1], ",")
	if len(fields) != 13 {
		t.Fatalf("expected 13 CSV fields, got %d: %q", len(fields), lines[1])
	}
	if fields[0] != "2500000" || fields[1] != "K6K" {
		t.Errorf("unexpected leading fields: %q", lines[1])
	}
}
