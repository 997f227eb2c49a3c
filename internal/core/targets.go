package core

import (
	"context"
	"strings"

	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// LinkSource 从基础页面发现链接
type LinkSource interface {
	Discover(ctx context.Context, baseURL string) ([]string, error)
}

// TargetSet 保持首次出现顺序的目标集合
// 去重只按去掉首尾空白后的字符串精确比较,不做URL规范化
type TargetSet struct {
	order []string
	seen  map[string]bool
}

// NewTargetSet 创建目标集合
func NewTargetSet() *TargetSet {
	return &TargetSet{seen: make(map[string]bool)}
}

// Add 添加目标,返回新加入的数量
func (s *TargetSet) Add(targets ...string) int {
	added := 0
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" || s.seen[t] {
			continue
		}
		s.seen[t] = true
		s.order = append(s.order, t)
		added++
	}
	return added
}

// Len 目标数
func (s *TargetSet) Len() int {
	return len(s.order)
}

// Targets 按首次出现顺序返回
func (s *TargetSet) Targets() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// CollectTargets 合并种子文件、命令行URL和链接发现的结果
// 链接发现失败只记录警告
func CollectTargets(ctx context.Context, input InputConfig, discoverer LinkSource) ([]string, error) {
	set := NewTargetSet()

	if input.ReadURLFile && input.URLFile != "" {
		urls, err := utils.ReadURLsFromFile(input.URLFile)
		if err != nil {
			return nil, err
		}
		added := set.Add(urls...)
		if dup := len(urls) - added; dup > 0 {
			utils.Infof("种子文件中有 %d 个重复URL已忽略", dup)
		}
	}

	set.Add(input.URLs...)

	if input.BaseURL != "" && discoverer != nil {
		links, err := discoverer.Discover(ctx, input.BaseURL)
		if err != nil {
			utils.Warnf("链接发现失败 [%s]: %v", input.BaseURL, err)
		} else {
			added := set.Add(links...)
			utils.Infof("🔗 从 %s 发现 %d 个链接, 新增 %d 个", input.BaseURL, len(links), added)
		}
	}

	if set.Len() == 0 {
		return nil, ErrNoTargets
	}
	return set.Targets(), nil
}
