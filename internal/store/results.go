// Package store persists derived verification metrics to SQLite for querying
// and dashboarding. Sufficient statistics live in the checkpoint store; this
// package only sees final, computed results.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/gridverify/internal/verify"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// BeginRun records the start of a verification run and returns its row id.
func (s *Store) BeginRun(startedAt, windowStart, windowEnd time.Time, configJSON string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO verification_runs (started_at, window_start, window_end, config_json)
		VALUES (?, ?, ?, ?)
	`, startedAt.UTC(), windowStart.UTC(), windowEnd.UTC(), configJSON)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) FinishRun(runID int64, finishedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE verification_runs SET finished_at = ? WHERE id = ?`, finishedAt.UTC(), runID)
	return err
}

// WriteMetrics persists one accumulator's derived metrics under a run.
// Undefined metric values map to NULL columns, never to zero.
func (s *Store) WriteMetrics(runID int64, id verify.Identity, m verify.Metrics) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	kind := id.Kind.String()
	key := id.EntityKey()

	if _, err := tx.Exec(`
		INSERT INTO continuous_metrics (run_id, entity_kind, entity_key, variable, sample_count, missing_count, mae, bias, rmse, bias_ratio, mean_forecast, mean_obs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, entity_kind, entity_key, variable) DO UPDATE SET
			sample_count = excluded.sample_count,
			missing_count = excluded.missing_count,
			mae = excluded.mae,
			bias = excluded.bias,
			rmse = excluded.rmse,
			bias_ratio = excluded.bias_ratio,
			mean_forecast = excluded.mean_forecast,
			mean_obs = excluded.mean_obs
	`, runID, kind, key, id.Variable, m.SampleCount, m.MissingCount,
		nullable(m.MAE), nullable(m.Bias), nullable(m.RMSE), nullable(m.BiasRatio),
		nullable(m.MeanForecast), nullable(m.MeanObs)); err != nil {
		return fmt.Errorf("insert continuous metrics: %w", err)
	}

	for _, tm := range m.Thresholds {
		if _, err := tx.Exec(`
			INSERT INTO categorical_metrics (run_id, entity_kind, entity_key, variable, threshold, hits, misses, false_alarms, correct_negatives, hit_rate, false_alarm_ratio, csi)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, entity_kind, entity_key, variable, threshold) DO UPDATE SET
				hits = excluded.hits,
				misses = excluded.misses,
				false_alarms = excluded.false_alarms,
				correct_negatives = excluded.correct_negatives,
				hit_rate = excluded.hit_rate,
				false_alarm_ratio = excluded.false_alarm_ratio,
				csi = excluded.csi
		`, runID, kind, key, id.Variable, tm.Threshold,
			tm.Table.Hits, tm.Table.Misses, tm.Table.FalseAlarms, tm.Table.CorrectNegatives,
			nullable(tm.HitRate), nullable(tm.FAR), nullable(tm.CSI)); err != nil {
			return fmt.Errorf("insert categorical metrics at %g: %w", tm.Threshold, err)
		}
	}

	if m.BrierScore.Valid || len(m.Reliability) > 0 {
		if _, err := tx.Exec(`
			INSERT INTO probabilistic_metrics (run_id, entity_kind, entity_key, variable, brier_score, brier_skill_score, crpss)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, entity_kind, entity_key, variable) DO UPDATE SET
				brier_score = excluded.brier_score,
				brier_skill_score = excluded.brier_skill_score,
				crpss = excluded.crpss
		`, runID, kind, key, id.Variable,
			nullable(m.BrierScore), nullable(m.BrierSkillScore), nullable(m.CRPSS)); err != nil {
			return fmt.Errorf("insert probabilistic metrics: %w", err)
		}

		for _, rp := range m.Reliability {
			if _, err := tx.Exec(`
				INSERT INTO reliability_points (run_id, entity_kind, entity_key, variable, bin_center, mean_forecast_prob, observed_frequency, bin_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(run_id, entity_kind, entity_key, variable, bin_center) DO UPDATE SET
					mean_forecast_prob = excluded.mean_forecast_prob,
					observed_frequency = excluded.observed_frequency,
					bin_count = excluded.bin_count
			`, runID, kind, key, id.Variable, rp.BinCenter,
				nullable(rp.ForecastProb), nullable(rp.ObservedFreq), rp.Count); err != nil {
				return fmt.Errorf("insert reliability point at %g: %w", rp.BinCenter, err)
			}
		}
	}

	return tx.Commit()
}

// ContinuousRow is one entity's continuous scores read back from storage.
type ContinuousRow struct {
	EntityKind   string
	EntityKey    string
	Variable     string
	SampleCount  int64
	MissingCount int64
	MAE          sql.NullFloat64
	Bias         sql.NullFloat64
	RMSE         sql.NullFloat64
	BiasRatio    sql.NullFloat64
	MeanForecast sql.NullFloat64
	MeanObs      sql.NullFloat64
}

func (s *Store) ContinuousMetrics(runID int64, variable string) ([]ContinuousRow, error) {
	rows, err := s.db.Query(`
		SELECT entity_kind, entity_key, variable, sample_count, missing_count, mae, bias, rmse, bias_ratio, mean_forecast, mean_obs
		FROM continuous_metrics
		WHERE run_id = ? AND variable = ?
		ORDER BY entity_kind, entity_key
	`, runID, variable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ContinuousRow
	for rows.Next() {
		var r ContinuousRow
		if err := rows.Scan(&r.EntityKind, &r.EntityKey, &r.Variable, &r.SampleCount, &r.MissingCount,
			&r.MAE, &r.Bias, &r.RMSE, &r.BiasRatio, &r.MeanForecast, &r.MeanObs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(v verify.Value) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Float64, Valid: v.Valid}
}
