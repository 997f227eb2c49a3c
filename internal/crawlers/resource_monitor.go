package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// 资源监控默认值
const (
	DefaultSessionMemoryUsage  = 150 * 1024 * 1024 // 单个浏览器会话平均内存消耗
	DefaultSafetyReserveMemory = 512 * 1024 * 1024
	defaultTotalMemory         = 4 * 1024 * 1024 * 1024
	maxSessionsCacheTTL        = time.Second
)

// ResourceMonitor 系统资源监控器
// 根据可用内存和CPU核数限制并发的浏览器会话数
type ResourceMonitor struct {
	config ResourceMonitorConfig

	totalMemory uint64

	mu           sync.RWMutex
	lastMemStats runtime.MemStats
	lastCPUUsage float64

	cacheMu           sync.Mutex
	cachedMaxSessions int
	lastCacheTime     time.Time

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64   // 安全保留内存(字节)
	SafetyThreshold     int64   // 安全阈值(字节)
	CPULoadThreshold    float64 // CPU负载阈值(%),>=200视为禁用
	MaxSessionsLimit    int     // 绝对最大会话数
	SessionMemoryUsage  int64   // 单个会话平均内存消耗(字节)
	TotalMemory         uint64  // 系统总内存,为0时通过gopsutil读取
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AllocatedMemory uint64 // 当前程序已分配内存(字节)
	AvailableMemory int64  // 可用内存(字节)
	MemoryPressure  string // 内存压力等级
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.SessionMemoryUsage <= 0 {
		config.SessionMemoryUsage = DefaultSessionMemoryUsage
	}
	if config.MaxSessionsLimit <= 0 {
		config.MaxSessionsLimit = runtime.NumCPU()
	}

	totalMem := config.TotalMemory
	if totalMem == 0 {
		vmStat, err := mem.VirtualMemory()
		if err != nil {
			utils.Warnf("获取系统内存失败,使用默认值4GB: %v", err)
			totalMem = defaultTotalMemory
		} else {
			totalMem = vmStat.Total
		}
	}
	utils.Debugf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &ResourceMonitor{
		config:       config,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// StartMonitoring 启动后台采样
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			cpuUsage := sampleCPUUsage()

			rm.mu.Lock()
			rm.lastMemStats = memStats
			rm.lastCPUUsage = cpuUsage
			rm.mu.Unlock()
		}
	}
}

// sampleCPUUsage 所有核心的平均使用率
func sampleCPUUsage() float64 {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		utils.Debugf("获取CPU使用率失败: %v", err)
		return 0
	}
	return percentages[0]
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

func (rm *ResourceMonitor) availableMemory() (allocated uint64, available int64) {
	rm.mu.RLock()
	allocated = rm.lastMemStats.Alloc
	rm.mu.RUnlock()
	return allocated, int64(rm.totalMemory) - int64(allocated) - rm.config.SafetyReserveMemory
}

// CalculateMaxSessions 当前允许的最大并发会话数
// 取内存、CPU核数和配置上限三者的最小值,至少为1,结果缓存1秒
func (rm *ResourceMonitor) CalculateMaxSessions() int {
	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()

	if rm.cachedMaxSessions > 0 && time.Since(rm.lastCacheTime) < maxSessionsCacheTTL {
		return rm.cachedMaxSessions
	}

	_, available := rm.availableMemory()

	byMemory := 1
	if available > rm.config.SafetyThreshold {
		byMemory = int((available - rm.config.SafetyThreshold) / rm.config.SessionMemoryUsage)
	}

	result := byMemory
	if n := runtime.NumCPU(); n < result {
		result = n
	}
	if rm.config.MaxSessionsLimit < result {
		result = rm.config.MaxSessionsLimit
	}
	if result < 1 {
		result = 1
	}

	rm.cachedMaxSessions = result
	rm.lastCacheTime = time.Now()
	return result
}

// CapWorkers 把请求的并发数限制在资源允许范围内
func (rm *ResourceMonitor) CapWorkers(requested int) int {
	if requested < 1 {
		requested = 1
	}
	limit := rm.CalculateMaxSessions()
	if requested > limit {
		utils.Warnf("并发数 %d 超过资源允许的上限 %d,已自动调整", requested, limit)
		return limit
	}
	return requested
}

// CheckResourceAvailability 检查当前资源是否允许开启新会话
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	_, available := rm.availableMemory()
	if available < rm.config.SafetyThreshold {
		return false, fmt.Sprintf("内存不足(当前%dMB)", available/(1024*1024))
	}

	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 200 {
		rm.mu.RLock()
		cpuUsage := rm.lastCPUUsage
		rm.mu.RUnlock()
		if cpuUsage > rm.config.CPULoadThreshold {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
		}
	}

	return true, ""
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	allocated, available := rm.availableMemory()

	var pressure string
	switch availableMB := available / (1024 * 1024); {
	case availableMB < 200:
		pressure = "emergency"
	case availableMB < 300:
		pressure = "critical"
	case availableMB < 500:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     rm.totalMemory,
		AllocatedMemory: allocated,
		AvailableMemory: available,
		MemoryPressure:  pressure,
	}
}
