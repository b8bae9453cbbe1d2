// Package executor runs independent upstream fetches concurrently, each in
// an isolated worker. Workers receive only their task value and report
// over a results channel; a fault in one fetch (error or panic) cannot
// corrupt or block the others.
package executor

import (
	"context"
	"fmt"

	"github.com/pawpal/composite-service/internal/platform/apierr"
	"github.com/pawpal/composite-service/internal/platform/logger"
	"github.com/pawpal/composite-service/internal/upstream"
)

type Kind string

const (
	KindFetchPrincipal      Kind = "fetchPrincipal"
	KindFetchDependents     Kind = "fetchDependents"
	KindFetchPrincipalStats Kind = "fetchPrincipalStats"
)

// Task is one fetch descriptor. Param is the principal id for
// fetchPrincipal/fetchPrincipalStats and the owner id for fetchDependents.
type Task struct {
	Kind  Kind
	Param string
}

type result struct {
	index int
	data  any
	err   error
}

type Executor struct {
	principals upstream.Client
	dependents upstream.Client
	log        *logger.Logger
}

func New(log *logger.Logger, principals, dependents upstream.Client) *Executor {
	return &Executor{
		principals: principals,
		dependents: dependents,
		log:        log.With("component", "executor"),
	}
}

// Run executes all tasks concurrently and returns their payloads
// index-aligned with the input order. The coordinator always waits for
// every worker to report before returning; when any fail, the error of the
// lowest task index wins so concurrent failures resolve deterministically.
// Siblings of a failed task are not cancelled, only their results are
// discarded.
func (e *Executor) Run(ctx context.Context, tasks []Task) ([]any, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	results := make(chan result, len(tasks))
	for i, task := range tasks {
		go e.worker(ctx, i, task, results)
	}

	ordered := make([]result, len(tasks))
	for range tasks {
		r := <-results
		ordered[r.index] = r
	}

	for _, r := range ordered {
		if r.err != nil {
			return nil, r.err
		}
	}

	out := make([]any, len(tasks))
	for i, r := range ordered {
		out[i] = r.data
	}
	return out, nil
}

func (e *Executor) worker(ctx context.Context, index int, task Task, results chan<- result) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("worker terminated abnormally", "task", string(task.Kind), "index", index, "panic", rec)
			results <- result{
				index: index,
				err:   apierr.Internal(fmt.Sprintf("worker for task %s terminated abnormally", task.Kind), fmt.Errorf("panic: %v", rec)),
			}
		}
	}()

	data, err := e.execute(ctx, task)
	results <- result{index: index, data: data, err: err}
}

func (e *Executor) execute(ctx context.Context, task Task) (any, error) {
	switch task.Kind {
	case KindFetchPrincipal:
		return e.principals.Get(ctx, task.Param)
	case KindFetchDependents:
		return e.dependents.ListByOwner(ctx, task.Param)
	case KindFetchPrincipalStats:
		return e.principals.GetStats(ctx, task.Param)
	default:
		return nil, apierr.Internal(fmt.Sprintf("unknown task kind: %s", task.Kind), nil)
	}
}
