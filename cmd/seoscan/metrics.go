package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RecoveryAshes/SeoScan/internal/core"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// metricsShutdownTimeout 关闭指标服务的等待上限
const metricsShutdownTimeout = 5 * time.Second

// startMetricsServer addr非空时在后台暴露/metrics,返回关闭函数
func startMetricsServer(addr string, metrics *core.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Errorf("指标服务异常退出: %v", err)
		}
	}()
	utils.Infof("📈 指标服务已启动: http://%s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			utils.Errorf("关闭指标服务失败: %v", err)
		}
	}
}
