package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/lox/gridverify/internal/verify"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func populatedSet(t *testing.T) verify.Set {
	t.Helper()
	set := verify.Set{}
	cfg := verify.Config{Thresholds: []float64{2}, ProbBins: 5, EventThreshold: 2}

	gp := set.Get(verify.GridpointIdentity("TMP_2m", 3, 7, 41.2, -98.7), cfg)
	if _, _, err := gp.Update(
		[]float64{1, 3, math.NaN()},
		[]float64{2, 3, 4},
		[]float64{0.2, 0.9, 0.5},
		math.NaN(),
	); err != nil {
		t.Fatalf("Update: %v", err)
	}

	st := set.Get(verify.StationIdentity("TMP_2m", "KTST", "Test Field", 41.0, -98.0), verify.Config{})
	if _, _, err := st.Update([]float64{10}, []float64{12}, nil, math.NaN()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return set
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	set := populatedSet(t)
	completed := map[string]struct{}{"c1": {}, "c0": {}}

	seq, err := store.Save(ctx, set, completed)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}

	sn, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sn == nil {
		t.Fatal("Load returned nil snapshot")
	}
	if sn.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", sn.SchemaVersion, SchemaVersion)
	}

	restored, done := sn.Restore()
	if len(done) != 2 {
		t.Errorf("len(completed) = %d, want 2", len(done))
	}
	if _, ok := done["c0"]; !ok {
		t.Error("completed set missing c0")
	}
	if len(restored) != len(set) {
		t.Fatalf("len(restored) = %d, want %d", len(restored), len(set))
	}

	// Metrics must be identical field-for-field to the pre-save state.
	for id, orig := range set {
		got, ok := restored[id]
		if !ok {
			t.Fatalf("restored set missing %v", id)
		}
		wantM, gotM := orig.ComputeMetrics(), got.ComputeMetrics()
		if wantM.SampleCount != gotM.SampleCount || wantM.MissingCount != gotM.MissingCount {
			t.Errorf("%v: counts differ: %+v vs %+v", id, wantM, gotM)
		}
		if wantM.MAE != gotM.MAE || wantM.Bias != gotM.Bias || wantM.RMSE != gotM.RMSE || wantM.BiasRatio != gotM.BiasRatio {
			t.Errorf("%v: continuous metrics differ: %+v vs %+v", id, wantM, gotM)
		}
		if wantM.BrierScore != gotM.BrierScore || wantM.BrierSkillScore != gotM.BrierSkillScore {
			t.Errorf("%v: brier metrics differ", id)
		}
		for i := range wantM.Thresholds {
			if wantM.Thresholds[i] != gotM.Thresholds[i] {
				t.Errorf("%v: threshold metrics %d differ: %+v vs %+v", id, i, wantM.Thresholds[i], gotM.Thresholds[i])
			}
		}
	}
}

func TestLoadNoCheckpoint(t *testing.T) {
	store := setupTestStore(t)
	sn, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sn != nil {
		t.Errorf("snapshot = %+v, want nil", sn)
	}
}

func TestSaveReplacesAndSequenceIncreases(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	set := populatedSet(t)

	if _, err := store.Save(ctx, set, map[string]struct{}{"c0": {}}); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	seq, err := store.Save(ctx, set, map[string]struct{}{"c0": {}, "c1": {}})
	if err != nil {
		t.Fatalf("Save 2: %v", err)
	}
	if seq != 2 {
		t.Errorf("sequence = %d, want 2", seq)
	}

	sn, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sn.Sequence != 2 {
		t.Errorf("loaded sequence = %d, want 2", sn.Sequence)
	}
	if len(sn.CompletedChunkIDs) != 2 {
		t.Errorf("len(CompletedChunkIDs) = %d, want 2", len(sn.CompletedChunkIDs))
	}
}

func TestLoadCorruptPayload(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := store.Save(context.Background(), populatedSet(t), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := db.Exec(`UPDATE checkpoints SET payload = ?`, []byte(`{"tampered":true}`)); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrCheckpointCorrupt) {
		t.Errorf("err = %v, want ErrCheckpointCorrupt", err)
	}
}

func TestLoadUnsupportedSchemaVersion(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := store.Save(context.Background(), populatedSet(t), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Rewrite both payload and checksum so only the version check can fail.
	var payload []byte
	if err := db.QueryRow(`SELECT payload FROM checkpoints`).Scan(&payload); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if _, err := db.Exec(`UPDATE checkpoints SET schema_version = 99`); err != nil {
		t.Fatalf("bump version: %v", err)
	}

	// Checksum still matches, version does not.
	sn, err := store.Load(context.Background())
	if !errors.Is(err, ErrCheckpointCorrupt) {
		t.Errorf("err = %v (snapshot %+v), want ErrCheckpointCorrupt", err, sn)
	}
}
