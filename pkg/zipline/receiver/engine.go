package receiver

import (
	"context"
	"fmt"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/wuxler/zipline/pkg/util/xcontext"
	"github.com/wuxler/zipline/pkg/xlog"
	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
	"github.com/wuxler/zipline/pkg/zipline/manifest"
)

// Fetch is the capability the engine needs to obtain one module's bytes. It
// is satisfied by (*fetcher.Chain).FetchModule, narrowed to a plain function
// type so this package does not need to import the fetcher package.
type Fetch func(ctx context.Context, appName, id string, hash digest.Digest, url string) (data []byte, found bool, err error)

type receiveTask struct {
	id   string
	hash digest.Digest
	data []byte
	done chan error
}

// Run fetches every module manifest m lists, concurrently, and hands each to
// receiver once every module it (transitively) depends on has already been
// handed off. The wait-set for every module is computed from the full
// dependency graph before any fetch is launched, so there is no window in
// which a late-registered dependent could miss a dependency's completion.
//
// Any module's failure cancels its siblings at their next suspension point
// and the first failure is returned; receiver hand-off is serialized onto a
// single goroutine because receivers such as script-engine loaders are not
// safe for concurrent calls.
func Run(ctx context.Context, appName string, m *manifest.Manifest, fetch Fetch, receiver Receiver) error {
	if err := m.Validate(); err != nil {
		return err
	}

	ids := m.ModuleIDs()
	done := make(map[string]chan struct{}, len(ids))
	for _, id := range ids {
		done[id] = make(chan struct{})
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tasks := make(chan receiveTask)
	dispatcherDone := make(chan struct{})
	go dispatch(ctx, receiver, tasks, dispatcherDone)

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))

	for _, id := range ids {
		mod := m.Modules[id]
		waitSet := make([]chan struct{}, 0, len(mod.DependsOnIDs))
		for _, dep := range mod.DependsOnIDs {
			waitSet = append(waitSet, done[dep])
		}

		wg.Add(1)
		go func(id string, mod *manifest.Module, waitSet []chan struct{}) {
			defer wg.Done()
			defer close(done[id])
			errs <- runModule(ctx, appName, id, mod, waitSet, fetch, tasks, cancel)
		}(id, mod, waitSet)
	}

	wg.Wait()
	close(tasks)
	<-dispatcherDone
	close(errs)

	var firstErr error
	for err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		xlog.C(ctx).WarnfContext(ctx, "load of %s aborted: %v", appName, firstErr)
	}
	return firstErr
}

func runModule(
	ctx context.Context,
	appName, id string,
	mod *manifest.Module,
	waitSet []chan struct{},
	fetch Fetch,
	tasks chan<- receiveTask,
	cancel context.CancelCauseFunc,
) error {
	if err := xcontext.NonBlockingCheck(ctx, "receiver", "module", id); err != nil {
		return context.Cause(ctx)
	}

	data, found, err := fetch(ctx, appName, id, mod.SHA256, mod.URL)
	if err != nil {
		cancel(err)
		return err
	}
	if !found {
		err := fmt.Errorf("%w: module %s: no fetcher satisfied the request", zerrdefs.ErrFetchFailed, id)
		cancel(err)
		return err
	}

	if got := digest.FromBytes(data); got != mod.SHA256 {
		err := fmt.Errorf("%w: module %s: expected %s, got %s", zerrdefs.ErrChecksumMismatch, id, mod.SHA256, got)
		cancel(err)
		return err
	}

	for _, w := range waitSet {
		select {
		case <-w:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}

	reply := make(chan error, 1)
	select {
	case tasks <- receiveTask{id: id, hash: mod.SHA256, data: data, done: reply}:
	case <-ctx.Done():
		return context.Cause(ctx)
	}

	select {
	case err := <-reply:
		if err != nil {
			wrapped := fmt.Errorf("%w: module %s: %v", zerrdefs.ErrReceiverFailed, id, err)
			cancel(wrapped)
			return wrapped
		}
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func dispatch(ctx context.Context, receiver Receiver, tasks <-chan receiveTask, done chan<- struct{}) {
	defer close(done)
	for task := range tasks {
		err := receiver.Receive(ctx, task.data, task.id, task.hash)
		task.done <- err
	}
}
