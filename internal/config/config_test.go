package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
variables:
  - name: TMP_2m
    thresholds: [0, 10, 20]
    prob_bins: 10
    event_threshold: 20
  - name: APCP_6h
    thresholds: [0.254, 2.54, 6.35]
window:
  start: 2026-01-01T00:00:00Z
  end: 2026-01-08T00:00:00Z
  init_hours: [0, 12]
  lead_hours: [6, 12, 24]
chunk_rows: 32
workers: 8
checkpoint:
  path: /tmp/ckpt.db
  interval: 90s
obs:
  token: secret
output:
  db_path: /tmp/results.db
  kafka_brokers: [localhost:9092]
  kafka_topic: gridverify.metrics
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Variables) != 2 {
		t.Fatalf("len(Variables) = %d, want 2", len(cfg.Variables))
	}
	if cfg.Variables[0].Name != "TMP_2m" || cfg.Variables[0].ProbBins != 10 {
		t.Errorf("variable[0] = %+v", cfg.Variables[0])
	}
	if cfg.ChunkRows != 32 || cfg.Workers != 8 {
		t.Errorf("chunk_rows/workers = %d/%d", cfg.ChunkRows, cfg.Workers)
	}
	if cfg.Checkpoint.Interval.Std() != 90*time.Second {
		t.Errorf("checkpoint interval = %v", cfg.Checkpoint.Interval.Std())
	}
	if len(cfg.Window.InitHours) != 2 || cfg.Window.InitHours[1] != 12 {
		t.Errorf("init_hours = %v", cfg.Window.InitHours)
	}

	rc := cfg.RouterConfigs()
	vc, ok := rc["APCP_6h"]
	if !ok {
		t.Fatal("RouterConfigs missing APCP_6h")
	}
	if len(vc.Thresholds) != 3 || vc.ProbBins != 0 {
		t.Errorf("APCP_6h config = %+v", vc)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "variables:\n  - name: TMP_2m\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChunkRows != 64 {
		t.Errorf("default chunk_rows = %d, want 64", cfg.ChunkRows)
	}
	if cfg.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Workers)
	}
	if cfg.Checkpoint.Interval.Std() != 5*time.Minute {
		t.Errorf("default checkpoint interval = %v", cfg.Checkpoint.Interval.Std())
	}
	if cfg.Output.DBPath != "gridverify.db" {
		t.Errorf("default db_path = %q", cfg.Output.DBPath)
	}
}

func TestRegionsAndStations(t *testing.T) {
	dir := t.TempDir()
	regionsPath := filepath.Join(dir, "regions.yaml")
	stationsPath := filepath.Join(dir, "stations.yaml")

	regionsYAML := `
- id: ABC
  type: cwa
  name: Anywhere
  rings:
    - [{lat: 40, lon: -100}, {lat: 41, lon: -100}, {lat: 41, lon: -99}, {lat: 40, lon: -99}]
`
	stationsYAML := `
- id: KTST
  name: Test Field
  lat: 40.5
  lon: -99.5
`
	if err := os.WriteFile(regionsPath, []byte(regionsYAML), 0o644); err != nil {
		t.Fatalf("write regions: %v", err)
	}
	if err := os.WriteFile(stationsPath, []byte(stationsYAML), 0o644); err != nil {
		t.Fatalf("write stations: %v", err)
	}

	cfg := &Config{RegionsFile: regionsPath, StationsFile: stationsPath}
	regions, err := cfg.Regions()
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(regions) != 1 || regions[0].ID != "ABC" || len(regions[0].Rings[0]) != 4 {
		t.Errorf("regions = %+v", regions)
	}

	stations, err := cfg.Stations()
	if err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if len(stations) != 1 || stations[0].ID != "KTST" || stations[0].Lat != 40.5 {
		t.Errorf("stations = %+v", stations)
	}

	empty := &Config{}
	if r, err := empty.Regions(); err != nil || r != nil {
		t.Errorf("empty Regions = %v, %v", r, err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no variables", "workers: 2\n"},
		{"duplicate variable", "variables:\n  - name: TMP_2m\n  - name: TMP_2m\n"},
		{"unsorted thresholds", "variables:\n  - name: TMP_2m\n    thresholds: [10, 5]\n"},
		{"bad init hour", "variables:\n  - name: TMP_2m\nwindow:\n  init_hours: [24]\n"},
		{"bad duration", "variables:\n  - name: TMP_2m\ncheckpoint:\n  interval: soon\n"},
		{"window end before start", "variables:\n  - name: TMP_2m\nwindow:\n  start: 2026-01-08T00:00:00Z\n  end: 2026-01-01T00:00:00Z\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
