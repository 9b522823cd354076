// ddblocal runs a local DynamoDB-compatible server.
//
// # Usage
//
//	ddblocal --port 8000
//
// Point any AWS SDK at it with a custom endpoint:
//
//	aws dynamodb list-tables --endpoint-url http://localhost:8000
//
// Tables can be pre-created from yaml schema files:
//
//	ddblocal --schema './schema_*.yaml'
//
// # Flags
//
//	-port int
//	    	HTTP port to listen on (default 8000)
//	-engine string
//	    	storage engine: btree or badger (default "btree")
//	-schema string
//	    	glob pattern for table schema yaml files to preload
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acksell/ddblocal/ddbstore"
	"github.com/acksell/ddblocal/internal/logging"
	"github.com/acksell/ddblocal/schema"
	"github.com/acksell/ddblocal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ddblocal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	var (
		port          = flag.Int("port", cfg.Port, "HTTP port to listen on")
		engine        = flag.String("engine", cfg.Engine, "storage engine: btree or badger")
		schemaPattern = flag.String("schema", cfg.Schema, "glob pattern for table schema yaml files to preload")
		logLevel      = flag.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
		logFormat     = flag.String("log-format", cfg.LogFormat, "log format: console or json")
		logFile       = flag.String("log-file", cfg.LogFile, "rotated log file path (empty to disable)")
	)
	flag.Parse()

	log, err := logging.New(logging.Config{
		Level:  *logLevel,
		Format: *logFormat,
		File:   *logFile,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	var opts []ddbstore.Option
	switch *engine {
	case "btree":
	case "badger":
		opts = append(opts, ddbstore.WithBadgerEngine())
	default:
		return fmt.Errorf("unknown engine %q (want btree or badger)", *engine)
	}
	store, err := ddbstore.NewStore(opts...)
	if err != nil {
		return err
	}
	defer store.Close()

	if *schemaPattern != "" {
		if err := preloadTables(store, *schemaPattern, log); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv := server.New(store, log, registry)

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", *port),
		Handler:     srv.Router(),
		ReadTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr), zap.String("engine", *engine))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return <-errCh
}

func preloadTables(store *ddbstore.Store, pattern string, log *zap.Logger) error {
	s, err := schema.Load(pattern)
	if err != nil {
		return err
	}
	for _, tbl := range s.Tables {
		in, err := tbl.CreateTableInput()
		if err != nil {
			return err
		}
		if _, err := store.CreateTable(context.Background(), in); err != nil {
			return fmt.Errorf("preload table %q: %w", tbl.Name, err)
		}
		log.Info("created table from schema", zap.String("table", tbl.Name))
	}
	return nil
}
