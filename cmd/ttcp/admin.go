package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/ttcp/internal/admin"
	"github.com/danmuck/ttcp/internal/config"
	"github.com/danmuck/ttcp/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var sessionSeq atomic.Uint64

func nextSessionID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, sessionSeq.Add(1))
}

// adminHandle is a running admin server, or a no-op when none is configured.
type adminHandle struct {
	srv    *admin.Server
	cancel context.CancelFunc
	done   chan struct{}
}

func startAdmin(ctx context.Context, opts config.Options, rec *observability.Recorder) *adminHandle {
	if opts.AdminAddr == "" {
		return &adminHandle{}
	}
	gin.SetMode(gin.ReleaseMode)
	srv := admin.New(opts.Node, opts.AdminAddr, opts.CORSOrigins, rec)
	ctx, cancel := context.WithCancel(ctx)
	h := &adminHandle{srv: srv, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		if err := srv.Serve(ctx); err != nil {
			log.Error().Err(err).Str("addr", opts.AdminAddr).Msg("admin server failed")
		}
	}()
	return h
}

func (h *adminHandle) SetReady(ready bool) {
	if h.srv != nil {
		h.srv.SetReady(ready)
	}
}

func (h *adminHandle) AttachConns(c admin.ConnCounter) {
	if h.srv != nil {
		h.srv.AttachConns(c)
	}
}

func (h *adminHandle) Stop() {
	if h.srv == nil {
		return
	}
	h.cancel()
	<-h.done
}
