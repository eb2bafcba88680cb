package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	configs "github.com/cloudpasture/shepherd/pkg/configs/backend"
	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	dbschema "github.com/cloudpasture/shepherd/pkg/db/postgres/schema"
	approvalpg "github.com/cloudpasture/shepherd/pkg/domain/approval/db/postgres"
	clusterpg "github.com/cloudpasture/shepherd/pkg/domain/cluster/db/postgres"
	jobpg "github.com/cloudpasture/shepherd/pkg/domain/job/db/postgres"
	recordpg "github.com/cloudpasture/shepherd/pkg/domain/record/db/postgres"
	"github.com/cloudpasture/shepherd/pkg/domain/schema/cache"
	sizepg "github.com/cloudpasture/shepherd/pkg/domain/size/db/postgres"
	"github.com/cloudpasture/shepherd/pkg/utils/filewatch"
)

func main() {

	pconfig := flag.String(
		"config", os.Getenv("SHEPHERD_BACKEND_CONFIG"), "path to config file",
	)
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	conf, err := configs.LoadBackendConfig(*pconfig)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}

	pool, err := kpool.New(ctx, conf.Shepherd().Database())
	if err != nil {
		log.Fatalf("can not connect to database: %s", err)
	}
	defer pool.Close()
	if err := dbschema.Apply(ctx, pool); err != nil {
		log.Fatalf("can not apply database schema: %s", err)
	}

	schemas, err := cache.New(
		&cache.HTTPFetcher{BaseURL: conf.Shepherd().SchemaEndpoint()},
	)
	if err != nil {
		log.Fatalf("can not load embedded schemas: %s", err)
	}

	records := recordpg.New(pool)
	server := BuildServer(
		stores{
			records: records,
			approvals: approvalpg.New(
				pool,
				approvalpg.WithRecords(records),
				approvalpg.WithJobs(jobpg.New(pool)),
			),
			sizes:    sizepg.New(pool),
			clusters: clusterpg.New(pool),
		},
		schemas,
		[]byte(conf.Shepherd().AdminTokenKey()),
		*loglevel,
	)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	{
		// quit to restart when config is rewritten. the supervisor respawns us.
		wctx, wcancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			log.Fatalf("can not watch configration: %s", err)
		}
		defer wcancel()
		context.AfterFunc(wctx, func() {
			if ctx.Err() != nil {
				return
			}
			log.Println("config file is updated. quit to restart server.")
			graceful, gcancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer gcancel()
			if err := server.Shutdown(graceful); err != nil {
				log.Printf("error on shutdown by config update: %s", err)
			}
		})
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := server.Start(fmt.Sprintf(":%d", conf.Port())); err != nil && err != http.ErrServerClosed {
			ch <- err
		}
		ch <- nil
	}()

	exit := 0
	select {
	case <-ctx.Done(): // wait
		if err := ctx.Err(); err != nil {
			server.Logger.Infof("context has been done: %s, cause: %s", err, context.Cause(ctx))
			exit = 1
		}
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	{
		server.Logger.Info("shutting down...")
		qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer qcancel()

		if err := server.Shutdown(qctx); err != nil {
			server.Logger.Fatalf("Shutdown with error. %+v", err)
			os.Exit(1)
		}
		os.Exit(exit)
	}
}
