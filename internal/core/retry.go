package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// StatusFailedAfterRetries 重试耗尽时的status_code
const StatusFailedAfterRetries = "Failed after retries"

// Attempter 单次导航+提取
// 每次调用独立获取并释放自己的会话
type Attempter interface {
	Attempt(ctx context.Context, target string, attempt int) (models.ExtractionResult, error)
}

// RetryLoop 有界重试
// 不持有跨目标的状态,可被多个worker并发使用
type RetryLoop struct {
	attempter  Attempter
	maxRetries int
	retryDelay time.Duration
	vendors    []string
	metrics    *Metrics
}

// NewRetryLoop 创建重试循环
// vendors用于从结果中还原追踪信号
func NewRetryLoop(attempter Attempter, maxRetries int, retryDelay time.Duration, vendors []string, metrics *Metrics) *RetryLoop {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryLoop{
		attempter:  attempter,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		vendors:    vendors,
		metrics:    metrics,
	}
}

// Run 顺序执行至多maxRetries次尝试,首次成功即停止
// 总是返回一行结果
func (l *RetryLoop) Run(ctx context.Context, target string) models.ReportRow {
	logger := utils.TargetLogger(target)
	attempts := make([]models.ProcessingAttempt, 0, l.maxRetries)
	var lastErr error

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		start := time.Now()
		result, err := l.attempter.Attempt(ctx, target, attempt)
		elapsed := time.Since(start)

		if err == nil {
			attempts = append(attempts, models.ProcessingAttempt{
				Index:    attempt,
				Outcome:  models.OutcomeSuccess,
				Duration: elapsed.Seconds(),
			})
			l.metrics.ObserveAttempt(string(models.OutcomeSuccess), elapsed)

			signals := models.SignalsFromResult(result, l.vendors)
			l.metrics.IncVendors(signals.Present())
			l.metrics.IncTarget("success")
			logger.Info().Int("attempt", attempt).Str("status", result.Get(models.FieldStatusCode)).Msg("✅ 处理完成")
			return models.NewReportRow(target, result, signals, attempts, "")
		}

		lastErr = err
		attempts = append(attempts, models.ProcessingAttempt{
			Index:    attempt,
			Outcome:  models.OutcomeTransientFailure,
			Error:    err.Error(),
			Duration: elapsed.Seconds(),
		})
		l.metrics.ObserveAttempt(string(models.OutcomeTransientFailure), elapsed)
		l.metrics.IncError(err)
		logger.Warn().Err(err).Msgf("❌ 第 %d/%d 次尝试失败", attempt, l.maxRetries)

		if ctx.Err() != nil || attempt == l.maxRetries {
			break
		}

		l.metrics.IncRetries()
		logger.Debug().Msgf("%.0f 秒后重试", l.retryDelay.Seconds())
		if err := sleepContext(ctx, l.retryDelay); err != nil {
			lastErr = err
			break
		}
	}

	return l.failedRow(target, attempts, lastErr)
}

// failedRow 重试耗尽或被取消时的终止行
func (l *RetryLoop) failedRow(target string, attempts []models.ProcessingAttempt, lastErr error) models.ReportRow {
	msg := fmt.Sprintf("Failed after %d retries.", l.maxRetries)
	if lastErr != nil {
		msg = lastErr.Error()
	}

	result := models.NewExtractionResult(map[string]string{
		models.FieldStatusCode: StatusFailedAfterRetries,
	})

	l.metrics.IncTarget("failed")
	logger := utils.TargetLogger(target)
	logger.Error().Int("attempts", len(attempts)).Msgf("❌ 全部尝试失败: %s", msg)
	return models.NewReportRow(target, result, nil, attempts, msg)
}

// sleepContext 可被取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
