// Package crawlers 提供单个页面的会话、信号采集和元数据提取
//
// # 概述
//
// 每个目标URL由一次或多次尝试处理。每次尝试拥有独立的浏览器会话(go-rod无痕上下文),
// 会话结束后立即释放,不在任务之间复用。静态模式(--static)用colly抓取HTML代替浏览器。
//
// # 核心组件
//
// ## SessionController
//
// 浏览器会话的生命周期:
//
//	Idle → SessionAcquired → Navigated → PostWaitElapsed → Extracted → Released
//	                                                    ↘ Failed → Released
//
// 导航前安装网络监听器,所有请求URL交给SignalAccumulator归类。
//
//	engine := NewBrowserEngine(true)
//	defer engine.Close()
//
//	session := NewSessionController(engine, classifier, analyzer, headerManager, SessionOptions{
//	    WaitUntil:          models.WaitUntilDOMContentLoaded,
//	    NavigationTimeout:  60 * time.Second,
//	    PostNavigationWait: 5 * time.Second,
//	})
//	result, err := session.Attempt(ctx, "https://example.com", 1)
//
// ## Classifier / SignalAccumulator
//
// 从请求URL和页面DOM中识别GA4 TID、PPID、Comscore参数和第三方厂商。
// 厂商标记只会由false变为true。
//
// ## MetadataExtractor
//
// 通过Document接口读取页面,每个字段独立提取,单个字段失败只影响该字段。
// RodDocument在浏览器中执行脚本,StaticDocument基于goquery。
//
// ## PageAnalyzer
//
// 提取之后依次执行挂件检测、canonical校验和AMP校验。
//
// ## AmpValidator
//
// 调用外部AMP校验API,结果按URL缓存在LRU中。
//
// ## LinkDiscoverer
//
// 从基础页面收集同域链接,过滤静态页面关键词。
//
//	discoverer := NewLinkDiscoverer(DefaultStaticKeywords, 30*time.Second, nil)
//	links, err := discoverer.Discover(ctx, "https://example.com")
//
// ## ResourceMonitor
//
// 根据可用内存和CPU核数计算并发会话上限。
//
//	monitor := NewResourceMonitor(ResourceMonitorConfig{MaxSessionsLimit: 8})
//	workers := monitor.CapWorkers(requested)
package crawlers
