package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudpasture/shepherd/cmd/loops/recurring"
	"github.com/cloudpasture/shepherd/cmd/loops/tasks/execution"
	clustermonitor "github.com/cloudpasture/shepherd/cmd/loops/tasks/monitor"
	configs "github.com/cloudpasture/shepherd/pkg/configs/backend"
	cfg_hook "github.com/cloudpasture/shepherd/pkg/configs/hook"
	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	dbschema "github.com/cloudpasture/shepherd/pkg/db/postgres/schema"
	"github.com/cloudpasture/shepherd/pkg/domain"
	approvalpg "github.com/cloudpasture/shepherd/pkg/domain/approval/db/postgres"
	clusterpg "github.com/cloudpasture/shepherd/pkg/domain/cluster/db/postgres"
	"github.com/cloudpasture/shepherd/pkg/domain/cluster/k8s"
	jobpg "github.com/cloudpasture/shepherd/pkg/domain/job/db/postgres"
	recordpg "github.com/cloudpasture/shepherd/pkg/domain/record/db/postgres"
	"github.com/cloudpasture/shepherd/pkg/domain/schema/cache"
	"github.com/cloudpasture/shepherd/pkg/utils/args"
	"github.com/cloudpasture/shepherd/pkg/utils/filewatch"
	"github.com/cloudpasture/shepherd/pkg/utils/try"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	pconfig := flag.String(
		"config", os.Getenv("SHEPHERD_BACKEND_CONFIG"), "path to config file",
	)
	phooks := flag.String(
		"hooks", os.Getenv("SHEPHERD_HOOK_CONFIG"), "path to hook config file",
	)
	loopType := args.Parser(domain.AsLoopType)
	flag.Var(loopType, "type", "one of loop type (execution|monitor)")
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	flag.Parse()

	{
		// watch config & hooks. On modify, the context closes and this
		// process exits so that the supervisor restarts it with new files.
		watchTargets := []string{*pconfig}
		if *phooks != "" {
			watchTargets = append(watchTargets, *phooks)
		}
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, watchTargets...)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.LoadBackendConfig(*pconfig)).OrFatal(logger)

	pool := try.To(kpool.New(ctx, conf.Shepherd().Database())).OrFatal(logger)
	if err := dbschema.Apply(ctx, pool); err != nil {
		logger.Fatal(err)
	}

	records := recordpg.New(pool)
	jobs := jobpg.New(pool)
	approvals := approvalpg.New(
		pool, approvalpg.WithRecords(records), approvalpg.WithJobs(jobs),
	)
	clusters := clusterpg.New(pool)

	executors := execution.Executors{}
	targets := []clustermonitor.Target{}
	for _, cc := range conf.Shepherd().Clusters() {
		cl := try.To(k8s.Connect(cc.Kubeconfig())).OrFatal(logger)
		executors[cc.Id()] = k8s.NewExecutor(cl)
		targets = append(targets, clustermonitor.Target{
			ClusterId:   cc.Id(),
			Environment: cc.Environment(),
			Cluster:     cl,
		})
	}

	schemas := try.To(cache.New(
		&cache.HTTPFetcher{BaseURL: conf.Shepherd().SchemaEndpoint()},
		cache.WithLogger(logger),
	)).OrFatal(logger)

	hooks := cfg_hook.Config{}
	if hookPath := *phooks; hookPath != "" {
		hooks = try.To(cfg_hook.Load(hookPath)).OrFatal(logger)
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), policy.Value().String(),
	)

	err := StartLoop(
		ctx, logger,
		dependencies{
			jobs:      jobs,
			records:   records,
			approvals: approvals,
			clusters:  clusters,

			executors: executors,
			targets:   targets,
			schemas:   schemas,

			maxAttempts: conf.Shepherd().Worker().MaxAttempts(),
			taskTimeout: conf.Shepherd().Worker().TaskTimeout(),
		},
		LoopManifest{
			Type:   loopType.Value(),
			Policy: recurring.UntilError(policy.Value()),
			Hooks:  hooks,
		},
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}

	if ctx.Err() != nil {
		logger.Fatal(err)
	}
}
