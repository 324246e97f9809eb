package main

import (
	"context"

	"github.com/familyvault/familyvault-core/internal/logger"
)

var log = logger.New("capi")

// service is the narrow view of a suture.Service (Serve(ctx) error) every
// background manager (Discovery, IndexSync, ContentExtractor,
// IndexManager, the FileTransfer hub) implements. The C ABI has no notion
// of Go contexts, so each "open" call below pairs the object with a
// cancel func in one of these wrappers and exposes plain start/stop
// instead.
type service interface {
	Serve(ctx context.Context) error
}

type runningService struct {
	svc    service
	cancel context.CancelFunc
	done   chan struct{}
}

func startService(svc service) *runningService {
	ctx, cancel := context.WithCancel(context.Background())
	r := &runningService{svc: svc, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		if err := svc.Serve(ctx); err != nil {
			log.Warnf("capi: service exited: %v", err)
		}
	}()
	return r
}

func (r *runningService) stop() {
	r.cancel()
	<-r.done
}
