// Package session wires together a single serving session: the VFS, the
// live Tree, the patch queue, the ChangeProcessor, the optional search
// index, and the HTTP façade. It owns their startup and shutdown ordering
// (spec §5).
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Roblox/rojo/internal/changeproc"
	"github.com/Roblox/rojo/internal/config"
	"github.com/Roblox/rojo/internal/logger"
	"github.com/Roblox/rojo/internal/project"
	"github.com/Roblox/rojo/internal/queue"
	"github.com/Roblox/rojo/internal/search"
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/snapshot/middleware"
	"github.com/Roblox/rojo/internal/tree"
	"github.com/Roblox/rojo/internal/vfs"
	"github.com/Roblox/rojo/internal/web"
)

// Session owns one project's worth of live state: exactly one VFS, Tree,
// Queue, ChangeProcessor and HTTP façade.
type Session struct {
	ID      uuid.UUID
	Project *project.Project

	cfg *config.Config

	vfs       *vfs.VFS
	tree      *tree.Tree
	queue     *queue.Queue
	processor *changeproc.Processor
	search    *search.Index
	server    *web.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New loads proj's initial snapshot and assembles every session component,
// but does not start the watcher, the ChangeProcessor loop, or the HTTP
// server — call Start for that.
func New(cfg *config.Config, proj *project.Project) (*Session, error) {
	v, err := vfs.New(time.Duration(cfg.VFS.DebounceMS)*time.Millisecond, false)
	if err != nil {
		return nil, fmt.Errorf("session: constructing vfs: %w", err)
	}

	rootSnap, err := middleware.Snapshot(snapshot.NewInstanceContext(), v, proj.FilePath)
	if err != nil {
		return nil, fmt.Errorf("session: building initial snapshot: %w", err)
	}
	if rootSnap == nil {
		return nil, fmt.Errorf("session: no middleware matched project root %s", proj.FilePath)
	}

	t := tree.New(rootSnap)
	q := queue.New()

	var idx *search.Index
	if cfg.Search.Enabled {
		idx, err = search.New()
		if err != nil {
			return nil, fmt.Errorf("session: building search index: %w", err)
		}
	}

	// The ChangeProcessor anchors its path index on the project's containing
	// folder, not the project file itself: relative $path entries inside the
	// tree resolve against the folder, and init-promoted instances live one
	// level below it. proj.FilePath is registered separately so edits to the
	// project file itself still reconcile.
	proc := changeproc.New(v, t, q, proj.FolderPath, proj.FilePath, idx)

	s := &Session{
		ID:        uuid.New(),
		Project:   proj,
		cfg:       cfg,
		vfs:       v,
		tree:      t,
		queue:     q,
		processor: proc,
		search:    idx,
	}

	s.server = web.NewServer(cfg, web.Deps{
		SessionID: s.ID,
		Project:   proj,
		Tree:      t,
		Queue:     q,
		Processor: proc,
		Search:    idx,
	})

	return s, nil
}

// Start brings the session up: the VFS watcher and ChangeProcessor loop run
// in an errgroup so a failure in either is observable, followed by the HTTP
// server once the pipeline feeding it is live.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	s.group = g

	g.Go(func() error {
		return s.vfs.Start(gctx)
	})
	g.Go(func() error {
		s.processor.Run(gctx)
		return nil
	})

	if err := s.server.Start(); err != nil {
		cancel()
		return fmt.Errorf("session: starting HTTP server: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"session_id": s.ID,
		"project":    s.Project.Name,
	}).Info("session started")

	return nil
}

// Stop shuts the session down in the order the watcher contract requires:
// HTTP server first (no new requests), then the ChangeProcessor (stop
// consuming events), then the VFS (safe to close now that nothing still
// blocks sending to its event channel), then the queue (wake any lingering
// long-poll waiters), finally the search index.
func (s *Session) Stop() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(s.server.Stop())

	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		record(s.group.Wait())
	}

	record(s.vfs.Stop())

	s.queue.Close()

	if s.search != nil {
		record(s.search.Close())
	}

	logger.WithField("session_id", s.ID).Info("session stopped")
	return firstErr
}
