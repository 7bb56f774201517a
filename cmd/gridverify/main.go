package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/gridverify/internal/checkpoint"
	"github.com/lox/gridverify/internal/config"
	"github.com/lox/gridverify/internal/inventory"
	"github.com/lox/gridverify/internal/obs"
	"github.com/lox/gridverify/internal/publish"
	"github.com/lox/gridverify/internal/qc"
	"github.com/lox/gridverify/internal/router"
	"github.com/lox/gridverify/internal/runner"
	"github.com/lox/gridverify/internal/spatial"
	"github.com/lox/gridverify/internal/store"
	"github.com/lox/gridverify/internal/temporal"
)

type cli struct {
	Config string `short:"c" default:"gridverify.yaml" env:"GRIDVERIFY_CONFIG" help:"Run configuration file."`

	Run       runCmd       `cmd:"" help:"Verify a chunk file, checkpointing as it goes."`
	Resume    resumeCmd    `cmd:"" help:"Resume an interrupted run from its checkpoint."`
	Inventory inventoryCmd `cmd:"" help:"List available and missing forecast cycles upstream."`
	Stations  stationsCmd  `cmd:"" help:"Fetch station observations for the run window and report quality."`
}

type runCmd struct {
	Chunks string `arg:"" help:"JSON-lines chunk file to process."`
	Fresh  bool   `help:"Discard any existing checkpoint and start over."`
}

type resumeCmd struct {
	Chunks string `arg:"" help:"JSON-lines chunk file to process."`
}

type inventoryCmd struct {
	Date string `arg:"" help:"Forecast date (YYYYMMDD)."`
}

type stationsCmd struct {
	Variable string `arg:"" help:"Variable to fetch (e.g. TMP_2m)."`
	ObsVar   string `default:"air_temp" help:"Upstream observation variable name."`
	Token    string `env:"GRIDVERIFY_OBS_TOKEN" help:"Observation API token (overrides config)."`
}

func main() {
	var c cli
	k := kong.Parse(&c,
		kong.Name("gridverify"),
		kong.Description("Gridded forecast verification: accumulate, merge, score."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	cfg, err := config.Load(c.Config)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch k.Command() {
	case "run <chunks>":
		err = c.Run.run(ctx, cfg)
	case "resume <chunks>":
		err = c.Resume.run(ctx, cfg)
	case "inventory <date>":
		err = c.Inventory.run(cfg)
	case "stations <variable>":
		err = c.Stations.run(cfg)
	default:
		err = fmt.Errorf("unknown command %q", k.Command())
	}
	if err != nil {
		log.Fatal(err)
	}
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	return db, nil
}

func (r *runCmd) run(ctx context.Context, cfg *config.Config) error {
	if r.Fresh {
		if err := os.Remove(cfg.Checkpoint.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove checkpoint: %w", err)
		}
	}
	return executeRun(ctx, cfg, r.Chunks, false)
}

func (r *resumeCmd) run(ctx context.Context, cfg *config.Config) error {
	return executeRun(ctx, cfg, r.Chunks, true)
}

func executeRun(ctx context.Context, cfg *config.Config, chunks string, requireCheckpoint bool) error {
	ckptDB, err := openDB(cfg.Checkpoint.Path)
	if err != nil {
		return err
	}
	defer ckptDB.Close()
	ckpt := checkpoint.New(ckptDB)
	if err := ckpt.Migrate(); err != nil {
		return fmt.Errorf("migrate checkpoint db: %w", err)
	}
	if requireCheckpoint {
		sn, err := ckpt.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if sn == nil {
			return fmt.Errorf("no checkpoint at %s to resume from", cfg.Checkpoint.Path)
		}
	}

	resultsDB, err := openDB(cfg.Output.DBPath)
	if err != nil {
		return err
	}
	defer resultsDB.Close()
	results := store.New(resultsDB)
	if err := results.Migrate(); err != nil {
		return fmt.Errorf("migrate results db: %w", err)
	}

	regions, err := cfg.Regions()
	if err != nil {
		return err
	}
	stations, err := cfg.Stations()
	if err != nil {
		return err
	}
	grid := spatial.RegularGrid(cfg.Grid.NI, cfg.Grid.NJ, cfg.Grid.Lat0, cfg.Grid.Lon0, cfg.Grid.DLat, cfg.Grid.DLon)
	idx := spatial.BuildIndex(grid, regions, stations)

	rt := router.New(idx, cfg.RouterConfigs())
	run := runner.New(rt, runner.Options{
		Checkpoints:        ckpt,
		Workers:            cfg.Workers,
		CheckpointInterval: cfg.Checkpoint.Interval.Std(),
	})

	src, err := runner.NewFileSource(chunks)
	if err != nil {
		return err
	}
	defer src.Close()

	started := time.Now().UTC()
	res, err := run.Run(ctx, src)
	if err != nil {
		return err
	}
	if sc := src.Stations(); len(sc) > 0 {
		if err := run.RunStations(ctx, res, sc); err != nil {
			return err
		}
	}
	log.Printf("run: %d chunks processed, %d skipped, %d accepted / %d rejected pairs, %d accumulators",
		res.ChunksProcessed, res.ChunksSkipped, res.Accepted, res.Rejected, len(res.Set))

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	runID, err := results.BeginRun(started, cfg.Window.Start, cfg.Window.End, string(cfgJSON))
	if err != nil {
		return err
	}
	for id, acc := range res.Set {
		if err := results.WriteMetrics(runID, id, acc.ComputeMetrics()); err != nil {
			return fmt.Errorf("write metrics for %s: %w", id.EntityKey(), err)
		}
	}
	if err := results.FinishRun(runID, time.Now().UTC()); err != nil {
		return err
	}
	log.Printf("run %d: metrics written to %s", runID, cfg.Output.DBPath)

	if len(cfg.Output.KafkaBrokers) > 0 {
		pub := publish.NewPublisher(cfg.Output.KafkaBrokers, cfg.Output.KafkaTopic)
		defer pub.Close()
		if err := pub.PublishSet(ctx, runID, res.Set, time.Now().UTC()); err != nil {
			return fmt.Errorf("publish metrics: %w", err)
		}
		log.Printf("run %d: %d metric records published to %s", runID, len(res.Set), cfg.Output.KafkaTopic)
	}
	return nil
}

func (i *inventoryCmd) run(cfg *config.Config) error {
	date, err := time.Parse("20060102", i.Date)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}

	client := inventory.NewClient(cfg.Inventory.Host, cfg.Inventory.Root)
	// Single-day window: the last same-day init is 23z.
	window := temporal.Window{
		Start:     date,
		End:       date.Add(23 * time.Hour),
		InitHours: cfg.Window.InitHours,
		LeadHours: cfg.Window.LeadHours,
	}

	var all []inventory.CycleFile
	for _, initHour := range cfg.Window.InitHours {
		files, err := client.ListCycle(date, initHour)
		if err != nil {
			return fmt.Errorf("list %s t%02dz: %w", i.Date, initHour, err)
		}
		fmt.Printf("%s t%02dz: %d files\n", i.Date, initHour, len(files))
		all = append(all, files...)
	}
	for _, c := range inventory.MissingCycles(all, window.Cycles()) {
		fmt.Printf("missing: %s\n", c)
	}
	return nil
}

func (s *stationsCmd) run(cfg *config.Config) error {
	token := s.Token
	if token == "" {
		token = cfg.Obs.Token
	}
	if token == "" {
		return fmt.Errorf("no observation API token configured")
	}

	stations, err := cfg.Stations()
	if err != nil {
		return err
	}
	if len(stations) == 0 {
		return fmt.Errorf("no stations configured")
	}
	ids := make([]string, len(stations))
	for i, st := range stations {
		ids[i] = st.ID
	}

	client := obs.NewClient(token)
	if cfg.Obs.BaseURL != "" {
		client = obs.NewClientWithBaseURL(token, cfg.Obs.BaseURL)
	}
	series, err := client.FetchTimeseries(ids, s.ObsVar, cfg.Window.Start, cfg.Window.End)
	if err != nil {
		return err
	}

	for _, sr := range series {
		report := qc.CheckBatch(s.Variable, sr.Values)
		fmt.Printf("%s: %d obs, completeness %.1f%%\n", sr.Station.ID, report.Total, report.Completeness()*100)
		for _, w := range report.Warnings(0.8) {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	return nil
}
