// Package pipeline implements the Orchestrator (C7): the state machine that
// drives one Pipeline through build, analyze, fix, and test, publishing
// the per-stage event protocol, aggregating a comprehensive results
// record, and delivering it to the PR comment, the event bus, and an
// optional external webhook.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codewatch-ai/revbot/pkg/agent"
	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/sourcehost"
)

// Orchestrator owns every active Pipeline and the four agent contracts it
// drives them through.
type Orchestrator struct {
	bus     *events.Bus
	adapter sourcehost.Adapter

	builder  agent.Builder
	analyzer agent.Analyzer
	fixer    agent.Fixer
	tester   agent.Tester

	recursionMarkers []string
	notifier         *notifier

	mu     sync.RWMutex
	active map[string]*domain.Pipeline
}

// Options configures an Orchestrator.
type Options struct {
	Bus              *events.Bus
	Adapter          sourcehost.Adapter
	Builder          agent.Builder
	Analyzer         agent.Analyzer
	Fixer            agent.Fixer
	Tester           agent.Tester
	RecursionMarkers []string
	WebhookURL       string
	WebhookTimeout   time.Duration
	BackupDir        string
}

// New constructs an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		bus:              opts.Bus,
		adapter:          opts.Adapter,
		builder:          opts.Builder,
		analyzer:         opts.Analyzer,
		fixer:            opts.Fixer,
		tester:           opts.Tester,
		recursionMarkers: opts.RecursionMarkers,
		notifier:         newNotifier(opts.WebhookURL, opts.WebhookTimeout, opts.BackupDir),
		active:           make(map[string]*domain.Pipeline),
	}
}

// ShouldSuppress applies the recursion filter (spec §4.5) to a
// synchronize-equivalent event: it inspects the head commit's message for
// any of the fixed marker set and declines admission if one is present.
func (o *Orchestrator) ShouldSuppress(ctx context.Context, repo, headRef string) (bool, error) {
	commits, err := o.adapter.RecentCommits(ctx, repo, headRef, 1)
	if err != nil {
		return false, fmt.Errorf("pipeline: recursion check: %w", err)
	}
	if len(commits) == 0 {
		return false, nil
	}
	message := commits[0].Message
	for _, marker := range o.recursionMarkers {
		if marker != "" && strings.Contains(message, marker) {
			return true, nil
		}
	}
	return false, nil
}

// Start admits a new Pipeline for repo/pr/headBranch/cloneURL and runs it
// to completion on its own goroutine. It returns immediately once the
// pipeline is registered and pipeline_start has been published.
func (o *Orchestrator) Start(ctx context.Context, repo string, pr int, headBranch, cloneURL string, trigger domain.Trigger) *domain.Pipeline {
	p := &domain.Pipeline{
		ID:         pipelineID(repo, pr),
		Repo:       repo,
		PR:         pr,
		HeadBranch: headBranch,
		Stage:      domain.StagePending,
		StartTime:  time.Now(),
		Trigger:    trigger,
	}

	o.mu.Lock()
	o.active[p.ID] = p
	o.mu.Unlock()

	o.bus.Publish(p.ID, events.New(events.EventTypePipelineStart, "").WithDetails(map[string]any{
		"pipeline_id": p.ID,
		"repo":        repo,
		"pr_number":   pr,
	}))

	go o.run(context.WithoutCancel(ctx), p, cloneURL)
	return p
}

func pipelineID(repo string, pr int) string {
	return fmt.Sprintf("%s_%d_%d", repo, pr, time.Now().Unix())
}

// Snapshot returns a copy of the active pipeline's current state, if any.
func (o *Orchestrator) Snapshot(id string) (domain.Pipeline, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.active[id]
	if !ok {
		return domain.Pipeline{}, false
	}
	return *p, true
}

// ActiveIDs returns the ids of every pipeline currently running.
func (o *Orchestrator) ActiveIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
}
