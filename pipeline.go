package main

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"
)

type Summary struct {
	RunID     string
	Batches   int
	Delivered int
	Failed    int
	Unlogged  int
	Elapsed   time.Duration
}

// Pipeline drives read → batch → send → report strictly in sequence.
type Pipeline struct {
	dispatcher      *Dispatcher
	report          *Report
	batchSize       int
	interval        time.Duration
	pauseAfterFinal bool
	sleep           sleepFunc
	redact          redactor
	log             *zap.SugaredLogger
}

func NewPipeline(dispatcher *Dispatcher, report *Report, cfg Config, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		dispatcher:      dispatcher,
		report:          report,
		batchSize:       cfg.BatchSize,
		interval:        cfg.BatchInterval,
		pauseAfterFinal: cfg.PauseAfterFinalBatch,
		sleep:           sleepContext,
		redact:          redactor(cfg.RedactAddresses),
		log:             log,
	}
}

// Run sends html to every address of addrs and appends one report row per
// address. The batch interval separates consecutive batches; it follows
// the final batch only when pauseAfterFinal is set and that batch is full.
// Run returns early with the context error when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, runID string, addrs iter.Seq[Address], html string) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: runID}
	done := func(err error) (Summary, error) {
		sum.Elapsed = time.Since(start)
		return sum, err
	}

	var last Batch
	for batch := range Batches(addrs, p.batchSize) {
		if batch.Seq > 1 {
			if err := p.pause(ctx); err != nil {
				return done(err)
			}
		}
		sum.Batches++
		p.log.Infow("batch started", "run", runID, "batch", batch.Seq, "size", len(batch.Addresses))

		for _, addr := range batch.Addresses {
			if err := ctx.Err(); err != nil {
				return done(err)
			}
			res := p.dispatcher.Send(ctx, addr, html)
			if res.Delivered {
				sum.Delivered++
			} else {
				sum.Failed++
				p.log.Warnw("delivery failed", "email", p.redact.mask(addr), "detail", res.Detail)
			}
			if err := p.report.Append(res); err != nil {
				sum.Unlogged++
				p.log.Errorw("failed to write report row", "report", p.report.Path(), "email", p.redact.mask(addr), "error", err)
			}
		}
		last = batch
	}

	if p.pauseAfterFinal && sum.Batches > 0 && last.Full(p.batchSize) {
		if err := p.pause(ctx); err != nil {
			return done(err)
		}
	}
	return done(nil)
}

func (p *Pipeline) pause(ctx context.Context) error {
	p.log.Debugw("pausing between batches", "interval", p.interval)
	return p.sleep(ctx, p.interval)
}
