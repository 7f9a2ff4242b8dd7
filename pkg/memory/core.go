// Package memory assembles the learning core: the experience log, knowledge
// graph, pattern detector, workflow engine and review scheduler behind one
// facade with shared configuration and persistence.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/logging"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/experience"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/fsm"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/knowledge"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/pattern"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/scheduler"
	"github.com/XiaoConstantine/mnemo-go/pkg/persist"
)

// signatureJoiner renders a promoted pattern signature as node content.
const signatureJoiner = " -> "

// Core owns one instance of each memory component. Cross-store flows are
// sequential orchestration: each step takes its own store lock, so a crash
// between steps leaves stores valid but behind, never inconsistent.
type Core struct {
	cfg       config.Config
	logger    *logging.Logger
	persister persist.Store
	now       func() time.Time

	Experiences *experience.Store
	Knowledge   *knowledge.Graph
	Patterns    *pattern.Detector
	Workflows   *fsm.Engine
	Scheduler   *scheduler.Scheduler

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
}

// Option configures a Core.
type Option func(*Core)

// WithLogger overrides the global logger for the core and every component.
func WithLogger(l *logging.Logger) Option {
	return func(c *Core) {
		c.logger = l
	}
}

// WithClock overrides the time source used for records and sweeps.
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// WithPersistence overrides the backend selected by the configuration.
func WithPersistence(p persist.Store) Option {
	return func(c *Core) {
		c.persister = p
	}
}

// New builds a core from the configuration. A persistence backend that
// cannot be opened degrades to memory-only with a warning; each component
// then loads its own snapshot unit independently.
func New(cfg config.Config, opts ...Option) (*Core, error) {
	c := &Core{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.GetLogger()
	}

	if c.persister == nil {
		p, err := persist.New(cfg.Persistence)
		if err != nil {
			c.logger.Warn(context.Background(),
				"memory: persistence backend unavailable, running memory-only: %v", err)
			p = persist.NewMemoryStore()
		}
		c.persister = p
	}

	c.Experiences = experience.NewStore(cfg.Experience,
		experience.WithPersistence(c.persister), experience.WithLogger(c.logger))
	c.Knowledge = knowledge.NewGraph(cfg.Knowledge,
		knowledge.WithPersistence(c.persister), knowledge.WithLogger(c.logger),
		knowledge.WithClock(c.now))
	c.Patterns = pattern.NewDetector(cfg.Pattern,
		pattern.WithPersistence(c.persister), pattern.WithLogger(c.logger))
	c.Workflows = fsm.NewEngine(
		fsm.WithPersistence(c.persister), fsm.WithLogger(c.logger),
		fsm.WithClock(c.now))

	if cfg.Scheduler.Enabled {
		c.Scheduler = scheduler.NewScheduler(cfg.Scheduler.FSRS, c.Knowledge)
	}

	return c, nil
}

// RecordExperience stores an entry and feeds its action sequence to the
// pattern detector. The sequence is ToolsUsed when present, otherwise the
// single Action.
func (c *Core) RecordExperience(e experience.Entry) (uint64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}

	id, err := c.Experiences.Record(e)
	if err != nil {
		return 0, err
	}

	actions := e.ToolsUsed
	if len(actions) == 0 {
		actions = []string{e.Action}
	}
	c.Patterns.Observe(e.SessionID, actions, e.Timestamp)

	return id, nil
}

// Promotion is one pattern turned into a knowledge node.
type Promotion struct {
	NodeID  string
	Pattern pattern.Pattern
}

// PromotePatterns runs a promotion sweep and upserts each promoted pattern
// as a pattern-kind knowledge node. With the scheduler enabled, new nodes
// get a review schedule.
func (c *Core) PromotePatterns(now time.Time) ([]Promotion, error) {
	promoted := c.Patterns.Promote(now)

	out := make([]Promotion, 0, len(promoted))
	for _, p := range promoted {
		content := strings.Join(p.Signature, signatureJoiner)
		nodeID, err := c.Knowledge.UpsertNode(knowledge.KindPattern, content, p.Confidence)
		if err != nil {
			return out, err
		}
		if c.Scheduler != nil {
			if err := c.Scheduler.InitSchedule(nodeID, now); err != nil {
				return out, err
			}
		}
		out = append(out, Promotion{NodeID: nodeID, Pattern: p})
	}
	return out, nil
}

// ReviewKnowledge applies a graded review to a scheduled node.
func (c *Core) ReviewKnowledge(nodeID string, grade scheduler.Grade, now time.Time) (knowledge.Schedule, error) {
	if c.Scheduler == nil {
		return knowledge.Schedule{}, errors.New(errors.InvalidInput, "scheduler is disabled")
	}
	return c.Scheduler.Review(nodeID, grade, now)
}

// DueForReview returns scheduled nodes whose review is due, most overdue
// first. With the scheduler disabled nothing is ever due.
func (c *Core) DueForReview(now time.Time, limit int) []knowledge.Node {
	if c.Scheduler == nil {
		return nil
	}
	return c.Scheduler.DueForReview(now, limit)
}

// DecayKnowledge runs a confidence decay sweep over the graph and returns
// the number of nodes touched.
func (c *Core) DecayKnowledge() int {
	return c.Knowledge.Decay()
}

// Stats is a point-in-time aggregate over every component.
type Stats struct {
	Experiences          int                        `json:"experiences"`
	ExperiencesByOutcome map[experience.Outcome]int `json:"experiences_by_outcome"`
	KnowledgeNodes       int                        `json:"knowledge_nodes"`
	KnowledgeEdges       int                        `json:"knowledge_edges"`
	PatternWorkingSet    int                        `json:"pattern_working_set"`
	WorkflowInstances    int                        `json:"workflow_instances"`
	LiveWorkflows        int                        `json:"live_workflows"`
	DueReviews           int                        `json:"due_reviews"`
}

// Stats gathers counts from every component concurrently. Each task writes
// a distinct field, so no extra synchronization is needed.
func (c *Core) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		stats.Experiences = c.Experiences.Count()
		stats.ExperiencesByOutcome = c.Experiences.CountByOutcome()
		return nil
	})
	p.Go(func(ctx context.Context) error {
		stats.KnowledgeNodes = c.Knowledge.NodeCount()
		stats.KnowledgeEdges = c.Knowledge.EdgeCount()
		return nil
	})
	p.Go(func(ctx context.Context) error {
		stats.PatternWorkingSet = c.Patterns.WorkingSetSize()
		return nil
	})
	p.Go(func(ctx context.Context) error {
		stats.WorkflowInstances = c.Workflows.InstanceCount()
		stats.LiveWorkflows = c.Workflows.LiveCount()
		return nil
	})
	p.Go(func(ctx context.Context) error {
		if c.Scheduler != nil {
			stats.DueReviews = c.Scheduler.DueCount(c.now())
		}
		return nil
	})

	if err := p.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Flush saves every component snapshot concurrently. The first failure is
// returned; the other components still flush.
func (c *Core) Flush(ctx context.Context) error {
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error { return c.Experiences.Flush() })
	p.Go(func(ctx context.Context) error { return c.Knowledge.Flush() })
	p.Go(func(ctx context.Context) error { return c.Patterns.Flush() })
	p.Go(func(ctx context.Context) error { return c.Workflows.Flush() })
	return p.Wait()
}

// StartSweeps runs promotion and decay sweeps on the given interval until
// the context is canceled or Close is called. Starting twice is a no-op.
func (c *Core) StartSweeps(ctx context.Context, interval time.Duration) {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	if c.sweepCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.sweepCancel = cancel

	c.sweepWG.Add(1)
	go func() {
		defer c.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runSweep(ctx)
			}
		}
	}()
}

func (c *Core) runSweep(ctx context.Context) {
	now := c.now()

	promoted, err := c.PromotePatterns(now)
	if err != nil {
		c.logger.Warn(ctx, "memory: promotion sweep failed: %v", err)
	}
	decayed := c.DecayKnowledge()

	if err := c.Flush(ctx); err != nil {
		c.logger.Warn(ctx, "memory: sweep flush failed: %v", err)
	}

	c.logger.Debug(ctx, "memory: sweep complete, promoted=%d decayed=%d", len(promoted), decayed)
}

// StopSweeps halts the background sweep loop and waits for it to drain.
func (c *Core) StopSweeps() {
	c.sweepMu.Lock()
	cancel := c.sweepCancel
	c.sweepCancel = nil
	c.sweepMu.Unlock()

	if cancel != nil {
		cancel()
		c.sweepWG.Wait()
	}
}

// Close stops sweeps, flushes every component and releases the persistence
// backend.
func (c *Core) Close() error {
	c.StopSweeps()

	flushErr := c.Flush(context.Background())
	closeErr := c.persister.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
