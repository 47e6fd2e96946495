package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wxstack/wxstack/concurrency/worker"
	"github.com/wxstack/wxstack/expression"
	"github.com/wxstack/wxstack/logging/logger"
)

// Sender delivers notifications. Satisfied by *Notifier.
type Sender interface {
	Send(ctx context.Context, alert Alert) (string, error)
	Heartbeat(ctx context.Context, source string) error
}

// Service fans observation records out to one worker per rule. A rule
// fires when its expression turns true after having been false, so a
// condition that persists across records produces a single alert until
// it clears. Each rule owns a single-worker queue: its records are
// evaluated strictly in arrival order, which the threshold-crossing
// state depends on.
type Service struct {
	set    *RuleSet
	engine *expression.Engine
	sender Sender

	rules  []*ruleState
	source string

	heartbeat time.Duration
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type ruleState struct {
	Rule

	// pool has exactly one worker, serializing this rule's records.
	pool *worker.Pool
	// active is only touched by the rule's worker.
	active bool
}

// ruleTask pairs a record with the rule that should evaluate it.
type ruleTask struct {
	rule   *ruleState
	record map[string]any
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHeartbeat enables periodic heartbeats at the given interval.
func WithHeartbeat(interval time.Duration) ServiceOption {
	return func(s *Service) { s.heartbeat = interval }
}

// WithSource sets the source name reported in heartbeats.
func WithSource(name string) ServiceOption {
	return func(s *Service) { s.source = name }
}

// NewService builds the alerting service from a validated rule set.
func NewService(set *RuleSet, engine *expression.Engine, sender Sender, opts ...ServiceOption) *Service {
	s := &Service{
		set:    set,
		engine: engine,
		sender: sender,
		source: "wxstack",
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range set.Rules {
		state := &ruleState{Rule: r}
		state.pool = worker.NewPool(&worker.Config{
			MaxWorkers:  1,
			QueueSize:   64,
			TaskTimeout: 30 * time.Second,
		}, s)
		s.rules = append(s.rules, state)
	}
	return s
}

// Start launches the rule workers and, if configured, the heartbeat
// loop. Cancelling ctx stops both.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, r := range s.rules {
		r.pool.Start()
	}
	if s.heartbeat > 0 {
		s.wg.Add(1)
		go s.heartbeatLoop(ctx)
	}
	logger.Infof(ctx, "alerting service started with %d rules", len(s.rules))
}

// Stop cancels the heartbeat loop and drains the rule workers.
func (s *Service) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	for _, r := range s.rules {
		r.pool.Stop(ctx)
	}
}

// HandleRecord fans an observation record out to every rule's queue.
func (s *Service) HandleRecord(record map[string]any) error {
	for _, r := range s.rules {
		if err := r.pool.Submit(&ruleTask{rule: r, record: record}); err != nil {
			return fmt.Errorf("rule %s: %w", r.Name, err)
		}
	}
	return nil
}

// Process evaluates one rule against one record. Implements
// worker.Processor; the rule's single worker is the only caller, so
// records of one rule never race each other.
func (s *Service) Process(ctx context.Context, task any) error {
	t, ok := task.(*ruleTask)
	if !ok {
		return fmt.Errorf("unexpected task type %T", task)
	}
	r := t.rule

	matched, err := s.engine.EvaluateBool(ctx, r.Expression, t.record)
	if err != nil {
		logger.Warnf(ctx, "rule %s: %v", r.Name, err)
		return err
	}

	crossed := matched && !r.active
	r.active = matched
	if !crossed {
		return nil
	}

	id, err := s.sender.Send(ctx, Alert{
		Alias:      r.Alias,
		Message:    r.Message,
		Details:    r.Details,
		Recipients: s.set.Recipients,
	})
	if err != nil {
		return err
	}
	logger.Infof(ctx, "rule %s fired, delivery %s", r.Name, id)
	return nil
}

func (s *Service) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sender.Heartbeat(ctx, s.source); err != nil {
				logger.Warnf(ctx, "%v", err)
			}
		}
	}
}
