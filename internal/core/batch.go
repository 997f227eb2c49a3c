package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// StatusCancelled 未开始即被取消的目标的status_code
const StatusCancelled = "Cancelled"

// TargetProcessor 处理单个目标并总是返回一行
type TargetProcessor interface {
	Run(ctx context.Context, target string) models.ReportRow
}

// WorkerCapper 按资源情况限制并发数
type WorkerCapper interface {
	CapWorkers(requested int) int
}

// ResourceGate 开启新会话前检查资源
type ResourceGate interface {
	CheckResourceAvailability() (canCreate bool, reason string)
}

// resourceWait 资源不足时开始任务前的等待时间
var resourceWait = 2 * time.Second

// BatchOptions 调度参数
type BatchOptions struct {
	Workers         int
	ShutdownTimeout time.Duration
	Progress        bool
	Monitor         WorkerCapper // 可选
}

// BatchScheduler 有界并发调度
// 每个目标一个goroutine,同时运行的数量受workers限制,结果按提交顺序输出
type BatchScheduler struct {
	processor TargetProcessor
	opts      BatchOptions

	mu    sync.Mutex
	tasks []*models.ScanTask
}

// NewBatchScheduler 创建调度器
func NewBatchScheduler(processor TargetProcessor, opts BatchOptions) *BatchScheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &BatchScheduler{processor: processor, opts: opts}
}

// Workers 实际使用的并发数
func (s *BatchScheduler) Workers() int {
	if s.opts.Monitor == nil {
		return s.opts.Workers
	}
	return s.opts.Monitor.CapWorkers(s.opts.Workers)
}

// Run 处理全部目标,按提交顺序把每行交给emit
// emit返回错误时取消剩余任务,已开始的任务仍会产出行但不再输出
func (s *BatchScheduler) Run(ctx context.Context, targets []string, emit func(models.ReportRow) error) error {
	n := len(targets)
	if n == 0 {
		return ErrNoTargets
	}

	workers := s.Workers()
	if workers != s.opts.Workers {
		utils.Warnf("并发数受资源限制: %d → %d", s.opts.Workers, workers)
	}
	utils.Infof("🚀 开始扫描: %d 个目标, 并发 %d", n, workers)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.opts.ShutdownTimeout > 0 {
		var stopTimeout context.CancelFunc
		runCtx, stopTimeout = context.WithTimeout(runCtx, s.opts.ShutdownTimeout)
		defer stopTimeout()
	}

	s.mu.Lock()
	s.tasks = make([]*models.ScanTask, n)
	for i, target := range targets {
		s.tasks[i] = models.NewScanTask(i, target)
	}
	s.mu.Unlock()

	results := make([]*models.ReportRow, n)
	var resultsMu sync.Mutex
	completions := make(chan int, n)

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(workers)

	go func() {
		for i, target := range targets {
			g.Go(func() error {
				row := s.process(gctx, i, target)

				resultsMu.Lock()
				results[i] = &row
				resultsMu.Unlock()

				completions <- i
				return nil
			})
		}
		_ = g.Wait()
		close(completions)
	}()

	var bar *progressbar.ProgressBar
	if s.opts.Progress {
		bar = utils.NewProgressBar(n, "扫描中")
	}

	next := 0
	var emitErr error
	for range completions {
		if bar != nil {
			_ = bar.Add(1)
		}

		// 释放已连续完成的前缀
		for next < n {
			resultsMu.Lock()
			row := results[next]
			resultsMu.Unlock()
			if row == nil {
				break
			}
			next++

			if emitErr != nil {
				continue
			}
			if err := emit(*row); err != nil {
				emitErr = err
				cancel()
			}
		}
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	if emitErr != nil {
		return emitErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		utils.Warnf("等待超过 %s, 剩余任务已取消", s.opts.ShutdownTimeout)
	}
	return nil
}

// process 单个目标,开始前已取消时直接产出取消行
func (s *BatchScheduler) process(ctx context.Context, index int, target string) models.ReportRow {
	if err := ctx.Err(); err != nil {
		row := cancelledRow(target, err)
		s.updateTask(index, func(t *models.ScanTask) {
			t.Finish(row)
			t.Status = models.TaskStatusCancelled
		})
		return row
	}

	s.waitForResources(ctx, target)

	s.updateTask(index, (*models.ScanTask).Start)
	row := s.processor.Run(ctx, target)
	s.updateTask(index, func(t *models.ScanTask) { t.Finish(row) })

	utils.Debugf("[%d] %s 完成 (%d 次尝试)", index+1, target, row.AttemptCount())
	return row
}

// waitForResources 资源不足时等待一次再继续,不阻止任务执行
func (s *BatchScheduler) waitForResources(ctx context.Context, target string) {
	gate, ok := s.opts.Monitor.(ResourceGate)
	if !ok {
		return
	}
	if canCreate, reason := gate.CheckResourceAvailability(); !canCreate {
		utils.Warnf("资源不足,延迟处理 %s: %s", target, reason)
		_ = sleepContext(ctx, resourceWait)
	}
}

func (s *BatchScheduler) updateTask(index int, fn func(*models.ScanTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tasks[index])
}

// Tasks 任务状态快照
func (s *BatchScheduler) Tasks() []models.ScanTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]models.ScanTask, len(s.tasks))
	for i, t := range s.tasks {
		tasks[i] = *t
	}
	return tasks
}

// cancelledRow 未执行的目标仍产出一行
func cancelledRow(target string, cause error) models.ReportRow {
	result := models.NewExtractionResult(map[string]string{
		models.FieldStatusCode: StatusCancelled,
	})
	return models.NewReportRow(target, result, nil, nil, "Cancelled: "+cause.Error())
}

// IsCancelledRow 是否为取消行
func IsCancelledRow(row models.ReportRow) bool {
	return row.Result.Get(models.FieldStatusCode) == StatusCancelled && row.AttemptCount() == 0
}
