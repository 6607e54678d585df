package analysis

import (
	"strings"

	"gorm.io/datatypes"

	"github.com/ashwinyue/report-insight/internal/model"
)

// JobContext 构建洞察所需的任务上下文
type JobContext struct {
	FileID           string
	UserID           string
	SourceText       string
	ProcessingTimeMs int64
	Model            string
	UsedFallback     bool
	Degraded         bool
}

// BuildInsight 将归一化结果与任务上下文映射为待持久化的洞察
func BuildInsight(p Payload, jc JobContext) *model.Insight {
	findings := make([]model.KeyFinding, 0, len(p.KeyFindings))
	for _, f := range p.KeyFindings {
		kf := model.KeyFinding{
			Parameter:   f.Parameter,
			Value:       f.Value,
			Unit:        f.Unit,
			Status:      CoerceFindingStatus(f.Status),
			NormalRange: f.NormalRange,
		}
		if f.Significance != nil {
			sig := *f.Significance
			kf.Significance = &sig
		}
		findings = append(findings, kf)
	}

	risks := make([]model.RiskFactor, 0, len(p.RiskFactors))
	for _, r := range p.RiskFactors {
		risks = append(risks, model.RiskFactor{
			Factor:      r.Factor,
			Level:       CoerceRiskLevel(r.Level),
			Description: r.Description,
		})
	}

	var timeframe model.FollowUpTimeframe
	if p.FollowUpRequired {
		timeframe = CoerceTimeframe(p.FollowUpTimeframe)
	}

	elapsed := jc.ProcessingTimeMs
	if elapsed < 0 {
		elapsed = 0
	}

	return &model.Insight{
		FileID:            jc.FileID,
		UserID:            jc.UserID,
		SourceText:        jc.SourceText,
		Summary:           datatypes.NewJSONType(fillSummary(trimBilingual(p.Summary))),
		KeyFindings:       datatypes.NewJSONSlice(findings),
		Recommendations:   datatypes.NewJSONType(listOrEmpty(p.Recommendations)),
		DoctorQuestions:   datatypes.NewJSONType(listOrEmpty(p.DoctorQuestions)),
		RiskFactors:       datatypes.NewJSONSlice(risks),
		FollowUpRequired:  p.FollowUpRequired,
		FollowUpTimeframe: timeframe,
		Confidence:        ClampConfidence(p.Confidence),
		ProcessingTimeMs:  elapsed,
		AIModel:           jc.Model,
		UsedFallback:      jc.UsedFallback,
		Degraded:          jc.Degraded,
	}
}

func trimBilingual(b model.Bilingual) model.Bilingual {
	return model.Bilingual{
		English: strings.TrimSpace(b.English),
		Urdu:    strings.TrimSpace(b.Urdu),
	}
}

func listOrEmpty(l model.BilingualList) model.BilingualList {
	if l.English == nil {
		l.English = []string{}
	}
	if l.Urdu == nil {
		l.Urdu = []string{}
	}
	return l
}
