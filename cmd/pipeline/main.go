// Command pipeline runs a small demonstration pipeline: words are
// uppercased and tagged with their length across partitions, with results
// collected in memory or in a SQL results table.
//
// Configuration is read from the environment:
//
//	FITTING_LOG_LEVEL       zerolog level (default: info)
//	FITTING_METRICS_ADDR    metrics listen address ("" disables)
//	FITTING_PARTITIONS      number of partitions (default: 4)
//	FITTING_DRAIN_TIMEOUT   per-stage drain timeout (default: 0, wait forever)
//	FITTING_RESULTS_DSN     SQL DSN for the results sink ("" keeps results in memory)
//	FITTING_RESULTS_DIALECT postgres, mysql or sqlite (default: postgres)
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/builder"
	"github.com/pipewright/fitting/metrics"
	"github.com/pipewright/fitting/sink/memory"
	"github.com/pipewright/fitting/sink/sqlsink"
	"github.com/pipewright/fitting/vnode"
)

// upcase emits the uppercased form of each word.
type upcase struct {
	env *fitting.Env
}

func (m *upcase) Init(env *fitting.Env) error { m.env = env; return nil }

func (m *upcase) Process(input any) error {
	return m.env.Emit(strings.ToUpper(input.(string)))
}

func (m *upcase) Done() error { return nil }

// lengths tags each word with its length.
type lengths struct {
	env *fitting.Env
}

func (m *lengths) Init(env *fitting.Env) error { m.env = env; return nil }

func (m *lengths) Process(input any) error {
	word := input.(string)
	return m.env.Emit(fmt.Sprintf("%s=%d", word, len(word)))
}

func (m *lengths) Done() error { return nil }

// driverName maps a sink dialect to its database/sql driver.
func driverName(dialect sqlsink.Dialect) string {
	if dialect == sqlsink.DialectSQLite {
		return "sqlite3"
	}
	return string(dialect)
}

func main() {
	v := viper.New()
	v.SetEnvPrefix("FITTING")
	v.AutomaticEnv()
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("PARTITIONS", 4)
	v.SetDefault("DRAIN_TIMEOUT", time.Duration(0))
	v.SetDefault("RESULTS_DSN", "")
	v.SetDefault("RESULTS_DIALECT", string(sqlsink.DialectPostgres))

	level, err := zerolog.ParseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	partitions := v.GetInt("PARTITIONS")
	if partitions < 1 {
		partitions = 1
	}

	var metricsServer *metrics.Server
	if addr := v.GetString("METRICS_ADDR"); addr != "" {
		metricsServer = metrics.NewServer(addr)
		metricsServer.Start()
		log.Info().Str("addr", addr).Msg("metrics server started")
	}

	// Results go to a SQL table when a DSN is configured, otherwise to an
	// in-memory sink.
	var (
		pipeSink fitting.Sink
		memSink  *memory.Sink
		sqlStore *sqlsink.Store
	)
	if dsn := v.GetString("RESULTS_DSN"); dsn != "" {
		dialect := sqlsink.Dialect(v.GetString("RESULTS_DIALECT"))
		db, err := sql.Open(driverName(dialect), dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open results database")
		}
		defer func() { _ = db.Close() }()

		sqlStore, err = sqlsink.NewWithConfig(db, sqlsink.Config{Dialect: dialect})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure results sink")
		}
		pipeSink = sqlStore
		log.Info().Str("dialect", string(dialect)).Msg("using SQL results sink")
	} else {
		memSink = memory.New()
		pipeSink = memSink
	}

	reg := fitting.NewRegistry()
	reg.Register("upcase", func() fitting.Module { return &upcase{} })
	reg.Register("lengths", func() fitting.Module { return &lengths{} })

	byLength := fitting.PartitionBy(func(output any) fitting.PartitionID {
		return fitting.PartitionID(len(output.(string)) % partitions)
	})

	p, err := builder.New(builder.Config{
		Name: "words",
		Specs: []fitting.Spec{
			{Name: "upcase", ModuleID: "upcase", Partfun: byLength},
			{Name: "lengths", ModuleID: "lengths", Partfun: fitting.Follow()},
		},
		Sink: pipeSink,
		Options: fitting.Options{
			Registry:     reg,
			Logger:       log,
			DrainTimeout: v.GetDuration("DRAIN_TIMEOUT"),
		},
		Metrics: metrics.NewCollector("words"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal, destroying pipeline")
		p.Destroy()
		cancel()
	}()

	vn := vnode.New(vnode.Config{
		Name:      "local",
		Logger:    log,
		QueueWarn: 1024,
	})

	words := []string{"pipe", "fitting", "worker", "partition", "archive", "sink"}
	for _, word := range words {
		if err := p.Inject(vn, word); err != nil {
			log.Fatal().Err(err).Msg("failed to inject input")
		}
	}
	p.EOI()

	if err := p.Wait(ctx); err != nil {
		log.Fatal().Err(err).Msg("pipeline failed")
	}
	p.Finish()

	switch {
	case memSink != nil:
		for _, out := range memSink.Outputs() {
			fmt.Println(out)
		}
		log.Info().Int("results", len(memSink.Outputs())).Msg("pipeline completed")
	case sqlStore != nil:
		results, err := sqlStore.Results(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read results")
		}
		for _, r := range results {
			if !r.EOI {
				fmt.Println(r.Output)
			}
		}
		log.Info().Int("rows", len(results)).Msg("pipeline completed")
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}
