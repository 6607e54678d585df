package analysis

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"

	"github.com/ashwinyue/report-insight/internal/model"
)

// NormalizeKind 归一化结果类别
type NormalizeKind string

const (
	// KindParsed 从模型输出中解析出结构化对象
	KindParsed NormalizeKind = "parsed"
	// KindDegradedText 有文本但无法解析
	KindDegradedText NormalizeKind = "degraded-text"
	// KindDegradedEmpty 没有任何文本
	KindDegradedEmpty NormalizeKind = "degraded-empty"
)

// DefaultSummaryMaxChars 降级摘要的截断长度（按字符计）
const DefaultSummaryMaxChars = 500

// Normalized 归一化结果
type Normalized struct {
	Payload Payload
	Kind    NormalizeKind
}

// Degraded 是否为降级结果
func (n Normalized) Degraded() bool {
	return n.Kind != KindParsed
}

// Normalizer 将模型的自由文本转换为严格结构，任何输入都有合法输出
type Normalizer struct {
	summaryMaxChars int
}

// NewNormalizer 创建归一化器
func NewNormalizer(summaryMaxChars int) *Normalizer {
	if summaryMaxChars <= 0 {
		summaryMaxChars = DefaultSummaryMaxChars
	}
	return &Normalizer{summaryMaxChars: summaryMaxChars}
}

var defaultNormalizer = NewNormalizer(DefaultSummaryMaxChars)

// Normalize 使用默认截断长度归一化
func Normalize(raw string) Normalized {
	return defaultNormalizer.Normalize(raw)
}

// Normalize 取第一个 '{' 到最后一个 '}' 之间的内容解码；
// 严格解码失败时经 jsonrepair 修复后再试一次；仍不可用则返回确定性的降级结果
func (n *Normalizer) Normalize(raw string) Normalized {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Normalized{Payload: degradedEmptyPayload(), Kind: KindDegradedEmpty}
	}

	if rp, ok := decodeEmbedded(text); ok {
		return Normalized{Payload: sanitize(rp), Kind: KindParsed}
	}

	return Normalized{Payload: n.degradedTextPayload(text), Kind: KindDegradedText}
}

// decodeEmbedded 提取并解码内嵌的 JSON 对象
func decodeEmbedded(text string) (*rawPayload, bool) {
	i := strings.IndexByte(text, '{')
	j := strings.LastIndexByte(text, '}')
	if i < 0 || j <= i {
		return nil, false
	}
	block := text[i : j+1]

	if rp, ok := decodeBlock(block); ok {
		return rp, true
	}

	repaired, err := jsonrepair.JSONRepair(block)
	if err != nil {
		return nil, false
	}
	return decodeBlock(repaired)
}

func decodeBlock(block string) (*rawPayload, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &keys); err != nil {
		return nil, false
	}
	if !hasSchemaKey(keys) {
		return nil, false
	}

	var rp rawPayload
	if err := json.Unmarshal([]byte(block), &rp); err != nil {
		return nil, false
	}
	return &rp, true
}

func hasSchemaKey(keys map[string]json.RawMessage) bool {
	for _, k := range schemaKeys {
		if _, ok := keys[k]; ok {
			return true
		}
	}
	return false
}

// sanitize 补全缺省值并把枚举、数值约束到允许范围
func sanitize(rp *rawPayload) Payload {
	p := Payload{
		KeyFindings: []Finding{},
		RiskFactors: []Risk{},
		Confidence:  defaultParsedConfidence,
	}

	if rp.Summary != nil {
		p.Summary = model.Bilingual{
			English: strings.TrimSpace(string(rp.Summary.English)),
			Urdu:    strings.TrimSpace(string(rp.Summary.Urdu)),
		}
	}
	p.Summary = fillSummary(p.Summary)

	for _, f := range rp.KeyFindings {
		finding := Finding{
			Parameter:   strings.TrimSpace(string(f.Parameter)),
			Value:       strings.TrimSpace(string(f.Value)),
			Unit:        strings.TrimSpace(string(f.Unit)),
			Status:      string(CoerceFindingStatus(string(f.Status))),
			NormalRange: strings.TrimSpace(string(f.NormalRange)),
		}
		if f.Significance != nil {
			sig := model.Bilingual{
				English: strings.TrimSpace(string(f.Significance.English)),
				Urdu:    strings.TrimSpace(string(f.Significance.Urdu)),
			}
			if sig.English != "" || sig.Urdu != "" {
				finding.Significance = &sig
			}
		}
		p.KeyFindings = append(p.KeyFindings, finding)
	}

	for _, r := range rp.RiskFactors {
		p.RiskFactors = append(p.RiskFactors, Risk{
			Factor: strings.TrimSpace(string(r.Factor)),
			Level:  string(CoerceRiskLevel(string(r.Level))),
			Description: model.Bilingual{
				English: strings.TrimSpace(string(r.Description.English)),
				Urdu:    strings.TrimSpace(string(r.Description.Urdu)),
			},
		})
	}

	p.Recommendations = sanitizeList(rp.Recommendations)
	p.DoctorQuestions = sanitizeList(rp.DoctorQuestions)

	p.FollowUpRequired = bool(rp.FollowUpRequired)
	if p.FollowUpRequired {
		p.FollowUpTimeframe = string(CoerceTimeframe(string(rp.FollowUpTimeframe)))
	}

	if rp.Confidence != nil && rp.Confidence.ok {
		// 先在浮点域截断，超出 int 范围的值转换后不可预期
		p.Confidence = int(math.Round(math.Max(0, math.Min(100, rp.Confidence.value))))
	}

	return p
}

func sanitizeList(l *rawList) model.BilingualList {
	out := model.BilingualList{English: []string{}, Urdu: []string{}}
	if l == nil {
		return out
	}
	out.English = nonEmpty(l.English)
	out.Urdu = nonEmpty(l.Urdu)
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fillSummary(s model.Bilingual) model.Bilingual {
	if s.English == "" {
		s.English = genericSummary.English
	}
	if s.Urdu == "" {
		s.Urdu = genericSummary.Urdu
	}
	return s
}

func (n *Normalizer) degradedTextPayload(text string) Payload {
	return Payload{
		Summary: model.Bilingual{
			English: truncateRunes(text, n.summaryMaxChars),
			Urdu:    degradedUrdu,
		},
		KeyFindings:       []Finding{},
		Recommendations:   cloneList(genericRecommendation),
		DoctorQuestions:   model.BilingualList{English: []string{}, Urdu: []string{}},
		RiskFactors:       []Risk{},
		FollowUpRequired:  true,
		FollowUpTimeframe: string(model.FollowUpOneMonth),
		Confidence:        DegradedTextConfidence,
	}
}

func degradedEmptyPayload() Payload {
	return Payload{
		Summary:           genericSummary,
		KeyFindings:       []Finding{},
		Recommendations:   cloneList(genericRecommendation),
		DoctorQuestions:   model.BilingualList{English: []string{}, Urdu: []string{}},
		RiskFactors:       []Risk{},
		FollowUpRequired:  true,
		FollowUpTimeframe: string(model.FollowUpOneMonth),
		Confidence:        DegradedEmptyConfidence,
	}
}

// truncateRunes 按字符截断并去掉首尾空白
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}

// CoerceFindingStatus 未知取值归为 abnormal
func CoerceFindingStatus(s string) model.FindingStatus {
	v := model.FindingStatus(strings.ToLower(strings.TrimSpace(s)))
	if v.Valid() {
		return v
	}
	return model.FindingAbnormal
}

// CoerceRiskLevel 未知取值归为 medium
func CoerceRiskLevel(s string) model.RiskLevel {
	v := model.RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if v.Valid() {
		return v
	}
	return model.RiskMedium
}

// CoerceTimeframe 未知取值归为 1-month
func CoerceTimeframe(s string) model.FollowUpTimeframe {
	v := model.FollowUpTimeframe(strings.ToLower(strings.TrimSpace(s)))
	if v.Valid() {
		return v
	}
	return model.FollowUpOneMonth
}

// ClampConfidence 约束到 [0,100]
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
