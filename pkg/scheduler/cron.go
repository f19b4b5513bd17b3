// Package scheduler runs periodic jobs on robfig/cron with zap logging.
package scheduler

import (
	"context"
	"time"

	"Beacon/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron 对 robfig/cron 的封装，作业在 Start 传入的 ctx 下运行
type Cron struct {
	c   *cron.Cron
	loc *time.Location
	ctx context.Context
}

func NewCron(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.Local
	}
	l := zapCronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		// Recover 必须在内层，否则 panic 后 SkipIfStillRunning 的令牌不会归还
		cron.WithChain(cron.SkipIfStillRunning(l), cron.Recover(l)),
	)
	return &Cron{c: c, loc: loc, ctx: context.Background()}
}

// Start ctx 结束时作业收到取消信号，但调度需要 Stop 停止
func (cr *Cron) Start(ctx context.Context) {
	cr.ctx = ctx
	cr.c.Start()
}

func (cr *Cron) Stop() { ctx := cr.c.Stop(); <-ctx.Done() }

func (cr *Cron) Add(expr string, job Job) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() { job.Run(cr.ctx) })
}

func (cr *Cron) AddWithCtx(expr string, fn func(ctx context.Context)) (cron.EntryID, error) {
	return cr.Add(expr, FuncJob(fn))
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

// zapCronLogger 实现 cron.Logger
type zapCronLogger struct{}

func (zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.S().Debugw("cron: "+msg, keysAndValues...)
}

func (zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append([]zap.Field{zap.Error(err)}, zap.Any("details", keysAndValues))...)
}
