// Package composite implements the read/write operations that join the
// principal and dependent upstream services into single responses. There
// is no shared database behind them: consistency is best-effort and
// point-in-time, and every call re-fetches from scratch.
package composite

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pawpal/composite-service/internal/executor"
	"github.com/pawpal/composite-service/internal/platform/logger"
	"github.com/pawpal/composite-service/internal/upstream"
)

const (
	// listPrincipalsMax caps how many principals get their dependents
	// resolved in one list call.
	listPrincipalsMax = 10
	// statsFetchLimit caps each side of the aggregate stats fetch.
	statsFetchLimit = 1000
)

type Aggregator struct {
	principals upstream.Client
	dependents upstream.Client
	exec       *executor.Executor
	log        *logger.Logger
}

func NewAggregator(log *logger.Logger, principals, dependents upstream.Client, exec *executor.Executor) *Aggregator {
	return &Aggregator{
		principals: principals,
		dependents: dependents,
		exec:       exec,
		log:        log.With("component", "aggregator"),
	}
}

type PrincipalWithDependents struct {
	Principal  upstream.Record   `json:"principal"`
	Dependents []upstream.Record `json:"dependents"`
}

type PrincipalComplete struct {
	Principal  upstream.Record   `json:"principal"`
	Dependents []upstream.Record `json:"dependents"`
	Stats      upstream.Record   `json:"stats"`
}

type CascadeResult struct {
	Principal              upstream.Record `json:"principal"`
	DeletedDependentsCount int             `json:"deletedDependentsCount"`
}

// GetPrincipalWithDependents joins one principal with its dependents.
// Fail-fast: if either fetch fails, the whole operation fails and no
// partial view is returned.
func (a *Aggregator) GetPrincipalWithDependents(ctx context.Context, id string) (*PrincipalWithDependents, error) {
	out, err := a.exec.Run(ctx, []executor.Task{
		{Kind: executor.KindFetchPrincipal, Param: id},
		{Kind: executor.KindFetchDependents, Param: id},
	})
	if err != nil {
		return nil, err
	}
	return &PrincipalWithDependents{
		Principal:  out[0].(upstream.Record),
		Dependents: out[1].([]upstream.Record),
	}, nil
}

// GetPrincipalComplete joins principal, dependents and principal stats.
// Same fail-fast semantics as GetPrincipalWithDependents.
func (a *Aggregator) GetPrincipalComplete(ctx context.Context, id string) (*PrincipalComplete, error) {
	out, err := a.exec.Run(ctx, []executor.Task{
		{Kind: executor.KindFetchPrincipal, Param: id},
		{Kind: executor.KindFetchDependents, Param: id},
		{Kind: executor.KindFetchPrincipalStats, Param: id},
	})
	if err != nil {
		return nil, err
	}
	return &PrincipalComplete{
		Principal:  out[0].(upstream.Record),
		Dependents: out[1].([]upstream.Record),
		Stats:      out[2].(upstream.Record),
	}, nil
}

// ListPrincipalsWithDependents lists principals matching filters (first 10
// only) and resolves each one's dependents concurrently. Unlike the
// single-entity joins this degrades per item: a failed dependents fetch
// annotates that entry instead of failing the batch.
func (a *Aggregator) ListPrincipalsWithDependents(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
	principals, err := a.principals.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	if len(principals) > listPrincipalsMax {
		principals = principals[:listPrincipalsMax]
	}

	entries := make([]upstream.Record, len(principals))
	var wg sync.WaitGroup
	for i, principal := range principals {
		wg.Add(1)
		go func(i int, principal upstream.Record) {
			defer wg.Done()
			entry := principal.Clone()
			deps, err := a.dependents.ListByOwner(ctx, principal.ID())
			if err != nil {
				a.log.Warn("dependents fetch failed for list entry", "principal_id", principal.ID(), "error", err)
				entry["dependents"] = []upstream.Record{}
				entry["error"] = "Failed to fetch dependents"
			} else {
				entry["dependents"] = deps
			}
			entries[i] = entry
		}(i, principal)
	}
	wg.Wait()
	return entries, nil
}

// DeletePrincipalCascade deletes all dependents owned by id concurrently,
// then the principal. If any dependent delete fails the principal delete
// is never issued; dependents already deleted by then are not restored
// (accepted inconsistency window, no compensating transaction). The
// lowest-index delete error is the one returned.
func (a *Aggregator) DeletePrincipalCascade(ctx context.Context, id string) (*CascadeResult, error) {
	deps, err := a.dependents.ListByOwner(ctx, id)
	if err != nil {
		return nil, err
	}

	errs := make([]error, len(deps))
	var wg sync.WaitGroup
	for i, dep := range deps {
		wg.Add(1)
		go func(i int, depID string) {
			defer wg.Done()
			_, errs[i] = a.dependents.Delete(ctx, depID)
		}(i, dep.ID())
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			a.log.Error("cascade aborted, principal retained",
				"principal_id", id,
				"failed_dependent_id", deps[i].ID(),
				"error", err,
			)
			return nil, err
		}
	}

	principal, err := a.principals.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	a.log.Info("cascade delete completed", "principal_id", id, "deleted_dependents", len(deps))
	return &CascadeResult{Principal: principal, DeletedDependentsCount: len(deps)}, nil
}

// GetAggregateStats fetches both populations concurrently and groups them
// by categorical fields. No partial statistic is meaningful, so either
// fetch failing fails the call.
func (a *Aggregator) GetAggregateStats(ctx context.Context) (*AggregateStats, error) {
	limit := map[string]string{"limit": strconv.Itoa(statsFetchLimit)}

	var principals, dependents []upstream.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		principals, err = a.principals.List(gctx, limit)
		return err
	})
	g.Go(func() error {
		var err error
		dependents, err = a.dependents.List(gctx, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return computeStats(principals, dependents), nil
}

// CreateDependent forwards the validated payload to the dependent service.
// The referential guard has already resolved the owner by the time this
// runs; the create is attempted at most once.
func (a *Aggregator) CreateDependent(ctx context.Context, payload upstream.Record) (upstream.Record, error) {
	return a.dependents.Create(ctx, payload)
}

// UpdateDependent forwards a partial update. Owner re-validation, when the
// payload carries a new owner reference, happens in the guard.
func (a *Aggregator) UpdateDependent(ctx context.Context, id string, payload upstream.Record) (upstream.Record, error) {
	return a.dependents.Update(ctx, id, payload)
}
