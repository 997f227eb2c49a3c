package crawlers

import (
	"context"

	"github.com/RecoveryAshes/SeoScan/internal/models"
	"github.com/RecoveryAshes/SeoScan/internal/utils"
)

// PageAnalyzer 导航成功后的分析流水线
// 依次执行元数据提取、挂件检测、canonical校验和可选的AMP校验
type PageAnalyzer struct {
	extractor *MetadataExtractor
	widgets   *WidgetDetector
	amp       AmpChecker
}

// NewPageAnalyzer 创建分析流水线,amp为nil时不做AMP校验
func NewPageAnalyzer(classifier *Classifier, amp AmpChecker) *PageAnalyzer {
	return &PageAnalyzer{
		extractor: NewMetadataExtractor(classifier),
		widgets:   NewWidgetDetector(),
		amp:       amp,
	}
}

// Analyze 生成单个页面的提取结果
// target是输入的原始URL,canonical按它校验
func (a *PageAnalyzer) Analyze(ctx context.Context, target string, doc Document, resp PageResponse, acc *SignalAccumulator) models.ExtractionResult {
	result, _ := a.extractor.Extract(doc, resp, acc)

	markup, err := doc.HTML()
	if err != nil {
		utils.Warnf("读取页面HTML失败 [%s]: %v", target, err)
		result = result.With(models.FieldTaboolaWidget, WidgetErrorPrefix+firstLine(err.Error()))
	} else {
		result = result.With(models.FieldTaboolaWidget, JoinDescriptors(a.widgets.Detect(markup, target)))
	}

	status := ValidateCanonical(target, result.Get(models.FieldCanonical))
	if status == CanonicalInvalid || status == CanonicalAmpToAmp {
		utils.Warnf("canonical不一致 [%s]: canonical=%s (%s)", target, result.Get(models.FieldCanonical), status)
	}
	result = result.With(models.FieldCanonicalValidation, string(status))

	return result.Merge(a.validateAmp(ctx, target, result).Fields())
}

// validateAmp 优先校验amphtml链接,页面自身是AMP时校验页面
func (a *PageAnalyzer) validateAmp(ctx context.Context, target string, result models.ExtractionResult) models.AmpValidationResult {
	if a.amp == nil {
		return models.NotValidated(target)
	}

	ampURL := result.Get(models.FieldAmpURL)
	if ampURL == models.NotFound {
		if result.Get(models.FieldIsAmp) != models.Yes {
			return models.NotValidated(target)
		}
		ampURL = target
	}
	return a.amp.Validate(ctx, resolveAgainst(target, ampURL))
}
