package main

import (
	"context"
	"log"
	"time"

	"github.com/cloudpasture/shepherd/cmd/loops/hook"
	"github.com/cloudpasture/shepherd/cmd/loops/recurring"
	"github.com/cloudpasture/shepherd/cmd/loops/tasks/execution"
	clustermonitor "github.com/cloudpasture/shepherd/cmd/loops/tasks/monitor"
	cfg_hook "github.com/cloudpasture/shepherd/pkg/configs/hook"
	"github.com/cloudpasture/shepherd/pkg/domain"
	approvaldb "github.com/cloudpasture/shepherd/pkg/domain/approval/db"
	clusterdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
	jobdb "github.com/cloudpasture/shepherd/pkg/domain/job/db"
	recorddb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
	"github.com/cloudpasture/shepherd/pkg/loop"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

func WithTimestamp() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetFlags(l.Flags() | log.Ldate | log.Ltime | log.Lmicroseconds)
		return l
	}
}

// Wrapper for observing loop tasks
//
//	Log the start and end of each time a task is executed. Essentially, it executes a task.
func observed[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	// counter for execution of the task
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)

		// log at the end of the task
		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s\n with value = %#v",
				counter, time.Since(timestamp), next, ret,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	// which loop to run
	Type domain.LoopType

	// Policy for the looping
	Policy recurring.Policy

	// Hooks for the looping
	Hooks cfg_hook.Config
}

// dependencies collects everything any loop may need.
type dependencies struct {
	jobs      jobdb.Interface
	records   recorddb.Interface
	approvals approvaldb.Interface
	clusters  clusterdb.Interface

	executors execution.Executors
	targets   []clustermonitor.Target
	schemas   clustermonitor.SchemaRefresher

	maxAttempts int
	taskTimeout time.Duration
}

func mergeEmptyStruct(a, b struct{}) struct{} {
	return struct{}{}
}

func StartExecutionLoop(
	ctx context.Context,
	logger *log.Logger,
	deps dependencies,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[execution loop]"))
	_, err := loop.Start(
		ctx, execution.Seed(nil),
		observed(
			l,
			execution.Task(
				l,
				deps.jobs, deps.records, deps.approvals,
				deps.executors,
				deps.maxAttempts, deps.taskTimeout,
			).Applied(manifest.Policy),
		),
		loop.WithTimeout(30*time.Second),
	)
	return err
}

func StartMonitorLoop(
	ctx context.Context,
	logger *log.Logger,
	deps dependencies,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[monitor loop]"))
	_, err := loop.Start(
		ctx, clustermonitor.Seed(),
		observed(
			l,
			clustermonitor.Task(
				l,
				deps.clusters, deps.targets, deps.schemas,
				hook.Build[clustermonitor.VersionChange, struct{}](
					manifest.Hooks.SchemaChange, mergeEmptyStruct,
				),
			).Applied(manifest.Policy),
		),
	)
	return err
}

func StartLoop(
	ctx context.Context,
	logger *log.Logger,
	deps dependencies,
	manifest LoopManifest,
) error {
	switch manifest.Type {
	case domain.Execution:
		return StartExecutionLoop(ctx, logger, deps, manifest)
	case domain.Monitor:
		return StartMonitorLoop(ctx, logger, deps, manifest)
	default:
		return domain.ErrUnknownLoopType
	}
}
