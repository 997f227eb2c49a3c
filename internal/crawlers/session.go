package crawlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// 主文档响应事件晚于生命周期事件到达时的等待上限
const responseGracePeriod = time.Second

// SessionState 单次尝试的会话状态
type SessionState string

const (
	StateIdle            SessionState = "Idle"
	StateSessionAcquired SessionState = "SessionAcquired"
	StateNavigated       SessionState = "Navigated"
	StatePostWaitElapsed SessionState = "PostWaitElapsed"
	StateExtracted       SessionState = "Extracted"
	StateFailed          SessionState = "Failed"
	StateReleased        SessionState = "Released"
)

// BrowserEngine 进程内共享的浏览器
// 每次尝试从这里取一个独立的无痕上下文,上下文之间不共享cookie和缓存
type BrowserEngine struct {
	mu       sync.Mutex
	headless bool
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBrowserEngine 创建浏览器引擎,首次取会话时才启动浏览器
func NewBrowserEngine(headless bool) *BrowserEngine {
	return &BrowserEngine{headless: headless}
}

// launchLocked 启动浏览器
func (e *BrowserEngine) launchLocked() error {
	if e.browser != nil {
		return nil
	}

	l := launcher.New().Headless(e.headless)

	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	l = l.Set("ignore-certificate-errors")
	utils.Debugf("浏览器启动参数: --ignore-certificate-errors (跳过TLS证书验证)")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	e.launcher = l
	e.browser = browser
	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

// NewSession 创建无痕上下文和空白页面
// 浏览器连接失效时关闭旧实例,下一次调用会重新启动
func (e *BrowserEngine) NewSession() (*rod.Browser, *rod.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.launchLocked(); err != nil {
		return nil, nil, err
	}

	incognito, err := e.browser.Incognito()
	if err != nil {
		utils.Warnf("创建无痕上下文失败,浏览器将在下次会话时重启: %v", err)
		e.closeLocked()
		return nil, nil, fmt.Errorf("%w: %v", ErrBrowserCrashed, err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, nil, fmt.Errorf("创建页面失败: %w", err)
	}

	return incognito, page, nil
}

// Close 关闭浏览器
func (e *BrowserEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *BrowserEngine) closeLocked() {
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			utils.Debugf("关闭浏览器失败: %v", err)
		}
		e.browser = nil
	}
	if e.launcher != nil {
		e.launcher.Cleanup()
		e.launcher = nil
	}
	utils.Debugf("浏览器已关闭")
}

// SessionOptions 单次尝试的导航参数
type SessionOptions struct {
	WaitUntil          string
	NavigationTimeout  time.Duration
	PostNavigationWait time.Duration
	BlockResources     []string
}

// SessionController 页面会话控制器
// 一次Attempt对应一个完整的会话生命周期,会话资源在所有退出路径上释放
type SessionController struct {
	engine     *BrowserEngine
	classifier *Classifier
	analyzer   *PageAnalyzer
	headers    models.HeaderProvider
	opts       SessionOptions
}

// NewSessionController 创建会话控制器
func NewSessionController(engine *BrowserEngine, classifier *Classifier, analyzer *PageAnalyzer, headers models.HeaderProvider, opts SessionOptions) *SessionController {
	return &SessionController{
		engine:     engine,
		classifier: classifier,
		analyzer:   analyzer,
		headers:    headers,
		opts:       opts,
	}
}

// Attempt 执行一次导航和提取
// 返回的错误均为*NavigationError,可由重试循环重试
func (s *SessionController) Attempt(ctx context.Context, target string, attempt int) (result models.ExtractionResult, err error) {
	logger := utils.TargetLogger(target).With().Int("attempt", attempt).Logger()

	state := StateIdle
	transition := func(next SessionState) {
		logger.Debug().Str("from", string(state)).Str("to", string(next)).Msg("会话状态变更")
		state = next
	}
	fail := func(cause error) error {
		return &NavigationError{URL: target, Stage: string(state), Err: cause}
	}

	var (
		incognito *rod.Browser
		page      *rod.Page
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Msgf("浏览器操作panic: %v", r)
			result = models.ExtractionResult{}
			err = fail(fmt.Errorf("%w: %v", ErrBrowserCrashed, r))
		}
		if err != nil {
			transition(StateFailed)
		}
		s.release(logger, page, incognito)
		transition(StateReleased)
	}()

	incognito, page, err = s.engine.NewSession()
	if err != nil {
		return models.ExtractionResult{}, fail(err)
	}
	transition(StateSessionAcquired)

	if err = s.applyIdentity(page); err != nil {
		return models.ExtractionResult{}, fail(err)
	}

	// 监听器必须在导航前安装,避免漏掉早期请求
	acc := s.classifier.NewAccumulator()
	docResp := newResponseHolder()
	// 监听随本次尝试结束而停止
	listenPage, stopListen := page.WithCancel()
	defer stopListen()
	go listenPage.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			acc.ObserveRequest(e.Request.URL)
		},
		func(e *proto.NetworkResponseReceived) {
			if e.Type != proto.NetworkResourceTypeDocument || e.FrameID != page.FrameID {
				return
			}
			docResp.set(PageResponse{Received: true, StatusCode: e.Response.Status})
		},
	)()

	if len(s.opts.BlockResources) > 0 {
		router := s.blockResources(page)
		defer func() { _ = router.Stop() }()
	}

	nav := page.Context(ctx).Timeout(s.opts.NavigationTimeout)
	defer nav.CancelTimeout()
	wait := nav.WaitNavigation(lifecycleEvent(s.opts.WaitUntil))
	logger.Debug().Str("wait_until", s.opts.WaitUntil).Msg("开始导航")
	if err = nav.Navigate(target); err != nil {
		return models.ExtractionResult{}, fail(err)
	}
	wait()
	if cerr := nav.GetContext().Err(); cerr != nil {
		return models.ExtractionResult{}, fail(fmt.Errorf("等待页面加载超时(%s): %w", s.opts.NavigationTimeout, cerr))
	}
	transition(StateNavigated)

	resp := docResp.wait(ctx, responseGracePeriod)
	if !resp.Received {
		return models.ExtractionResult{}, fail(ErrNoResponse)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ExtractionResult{}, fail(&StatusError{Code: resp.StatusCode})
	}
	logger.Debug().Int("status", resp.StatusCode).Msg("导航完成")

	if s.opts.PostNavigationWait > 0 {
		logger.Debug().Dur("wait", s.opts.PostNavigationWait).Msg("等待页面动态内容")
		select {
		case <-ctx.Done():
			return models.ExtractionResult{}, fail(ctx.Err())
		case <-time.After(s.opts.PostNavigationWait):
		}
	}
	transition(StatePostWaitElapsed)

	docPage := page.Context(ctx).Timeout(s.opts.NavigationTimeout)
	defer docPage.CancelTimeout()
	doc := NewRodDocument(docPage, target)
	result = s.analyzer.Analyze(ctx, target, doc, resp, acc)
	transition(StateExtracted)

	logger.Debug().
		Int("requests", acc.Requests()).
		Str("vendors", acc.Snapshot().Vendors.String()).
		Msg("页面提取完成")
	return result, nil
}

// applyIdentity 设置轮换的User-Agent和附加头部
func (s *SessionController) applyIdentity(page *rod.Page) error {
	if s.headers == nil {
		return nil
	}

	if ua := s.headers.NextUserAgent(); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	headers, err := s.headers.GetHeaders()
	if err != nil {
		utils.Warnf("获取HTTP头部失败: %v", err)
		return nil
	}

	extra := proto.NetworkHeaders{}
	for name, values := range headers {
		if len(values) == 0 || strings.EqualFold(name, "User-Agent") {
			continue
		}
		extra[name] = gson.New(values[0])
	}
	if len(extra) == 0 {
		return nil
	}

	page.EnableDomain(&proto.NetworkEnable{})
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: extra}).Call(page); err != nil {
		return fmt.Errorf("设置HTTP头部失败: %w", err)
	}
	return nil
}

// blockResources 拦截指定类型的资源请求
func (s *SessionController) blockResources(page *rod.Page) *rod.HijackRouter {
	blocked := make(map[string]bool, len(s.opts.BlockResources))
	for _, t := range s.opts.BlockResources {
		blocked[strings.ToLower(strings.TrimSpace(t))] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blocked[strings.ToLower(string(h.Request.Type()))] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// release 关闭页面和无痕上下文
func (s *SessionController) release(logger zerolog.Logger, page *rod.Page, incognito *rod.Browser) {
	if page != nil {
		if err := page.Close(); err != nil {
			logger.Debug().Err(err).Msg("关闭页面失败")
		}
	}
	if incognito != nil {
		if err := incognito.Close(); err != nil {
			logger.Debug().Err(err).Msg("关闭无痕上下文失败")
		}
	}
}

// lifecycleEvent 等待策略对应的页面生命周期事件
func lifecycleEvent(waitUntil string) proto.PageLifecycleEventName {
	switch waitUntil {
	case models.WaitUntilLoad:
		return proto.PageLifecycleEventNameLoad
	case models.WaitUntilNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameDOMContentLoaded
	}
}

// responseHolder 保存主文档响应,事件回调和会话goroutine共享
type responseHolder struct {
	mu       sync.Mutex
	resp     PageResponse
	received chan struct{}
	once     sync.Once
}

func newResponseHolder() *responseHolder {
	return &responseHolder{received: make(chan struct{})}
}

// set 记录响应,重定向链以最后一个为准
func (h *responseHolder) set(resp PageResponse) {
	h.mu.Lock()
	h.resp = resp
	h.mu.Unlock()
	h.once.Do(func() { close(h.received) })
}

func (h *responseHolder) get() PageResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resp
}

// wait 最多等待grace时间拿到响应
func (h *responseHolder) wait(ctx context.Context, grace time.Duration) PageResponse {
	select {
	case <-h.received:
	case <-ctx.Done():
	case <-time.After(grace):
	}
	return h.get()
}
