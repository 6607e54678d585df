package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ashwinyue/report-insight/internal/model"
)

// Payload 模型输出的目标结构，字段名与提示词中的 JSON schema 一致
type Payload struct {
	Summary           model.Bilingual     `json:"summary"`
	KeyFindings       []Finding           `json:"keyFindings"`
	Recommendations   model.BilingualList `json:"recommendations"`
	DoctorQuestions   model.BilingualList `json:"doctorQuestions"`
	RiskFactors       []Risk              `json:"riskFactors"`
	FollowUpRequired  bool                `json:"followUpRequired"`
	FollowUpTimeframe string              `json:"followUpTimeframe,omitempty"`
	Confidence        int                 `json:"confidence"`
}

// Finding 关键检查结果
type Finding struct {
	Parameter    string           `json:"parameter"`
	Value        string           `json:"value"`
	Unit         string           `json:"unit,omitempty"`
	Status       string           `json:"status"`
	NormalRange  string           `json:"normalRange,omitempty"`
	Significance *model.Bilingual `json:"significance,omitempty"`
}

// Risk 风险因素
type Risk struct {
	Factor      string          `json:"factor"`
	Level       string          `json:"level"`
	Description model.Bilingual `json:"description"`
}

// JSON 序列化为模型输出格式
func (p Payload) JSON() string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// 固定的兜底文案
var (
	genericRecommendation = model.BilingualList{
		English: []string{"Please share this report with your doctor for a professional interpretation."},
		Urdu:    []string{"براہ کرم پیشہ ورانہ تشریح کے لیے یہ رپورٹ اپنے ڈاکٹر کو دکھائیں۔"},
	}
	genericDoctorQuestions = model.BilingualList{
		English: []string{"What do the results of this report mean for my health?"},
		Urdu:    []string{"اس رپورٹ کے نتائج میری صحت کے لیے کیا معنی رکھتے ہیں؟"},
	}
	genericSummary = model.Bilingual{
		English: "The report could not be analyzed automatically. Please consult your doctor.",
		Urdu:    "رپورٹ کا خودکار تجزیہ نہیں ہو سکا۔ براہ کرم اپنے ڈاکٹر سے رجوع کریں۔",
	}
	// degradedUrdu 降级摘要的乌尔都语部分（英文部分为截断的原文）
	degradedUrdu    = "رپورٹ کا مکمل ساختی تجزیہ دستیاب نہیں ہے۔ براہ کرم تفصیلات کے لیے اپنے ڈاکٹر سے مشورہ کریں۔"
	fallbackSummary = model.Bilingual{
		English: "Automated analysis is temporarily unavailable. Please review this report with your doctor.",
		Urdu:    "خودکار تجزیہ عارضی طور پر دستیاب نہیں ہے۔ براہ کرم یہ رپورٹ اپنے ڈاکٹر کے ساتھ دیکھیں۔",
	}
)

// 置信度常量
const (
	FallbackConfidence      = 25
	DegradedTextConfidence  = 60
	DegradedEmptyConfidence = 30
	// 模型输出中缺少 confidence 字段时使用
	defaultParsedConfidence = 50
)

// FallbackPayload 模型调用失败时的合成结果，本身满足输出 schema
func FallbackPayload() Payload {
	return Payload{
		Summary:           fallbackSummary,
		KeyFindings:       []Finding{},
		Recommendations:   cloneList(genericRecommendation),
		DoctorQuestions:   cloneList(genericDoctorQuestions),
		RiskFactors:       []Risk{},
		FollowUpRequired:  true,
		FollowUpTimeframe: string(model.FollowUpOneMonth),
		Confidence:        FallbackConfidence,
	}
}

func cloneList(l model.BilingualList) model.BilingualList {
	return model.BilingualList{
		English: append([]string{}, l.English...),
		Urdu:    append([]string{}, l.Urdu...),
	}
}

// ========== 宽松解码 ==========

// rawPayload 解码模型输出时使用，数字/字符串互相兼容
type rawPayload struct {
	Summary           *rawBilingual `json:"summary"`
	KeyFindings       []rawFinding  `json:"keyFindings"`
	Recommendations   *rawList      `json:"recommendations"`
	DoctorQuestions   *rawList      `json:"doctorQuestions"`
	RiskFactors       []rawRisk     `json:"riskFactors"`
	FollowUpRequired  flexBool      `json:"followUpRequired"`
	FollowUpTimeframe flexString    `json:"followUpTimeframe"`
	Confidence        *flexNumber   `json:"confidence"`
}

type rawBilingual struct {
	English flexString `json:"english"`
	Urdu    flexString `json:"urdu"`
}

type rawList struct {
	English flexStrings `json:"english"`
	Urdu    flexStrings `json:"urdu"`
}

type rawFinding struct {
	Parameter    flexString    `json:"parameter"`
	Value        flexString    `json:"value"`
	Unit         flexString    `json:"unit"`
	Status       flexString    `json:"status"`
	NormalRange  flexString    `json:"normalRange"`
	Significance *rawBilingual `json:"significance"`
}

type rawRisk struct {
	Factor      flexString   `json:"factor"`
	Level       flexString   `json:"level"`
	Description rawBilingual `json:"description"`
}

// schemaKeys 至少出现一个才认为对象是目标结构
var schemaKeys = []string{
	"summary", "keyFindings", "recommendations", "doctorQuestions",
	"riskFactors", "followUpRequired", "followUpTimeframe", "confidence",
}

// flexString 接受字符串、数字、布尔
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	// 数字、布尔以及非标量保留原始 JSON 文本
	*s = flexString(b)
	return nil
}

// flexStrings 接受字符串数组或单个字符串
type flexStrings []string

func (l *flexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] != '[' {
		var one flexString
		if err := one.UnmarshalJSON(b); err != nil {
			return err
		}
		*l = flexStrings{string(one)}
		return nil
	}
	var items []flexString
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(flexStrings, 0, len(items))
	for _, it := range items {
		out = append(out, string(it))
	}
	*l = out
	return nil
}

// flexNumber 接受数字或数字字符串（如 "85" / "85%"）
type flexNumber struct {
	value float64
	ok    bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	str := strings.TrimSuffix(strings.TrimSpace(string(s)), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		n.ok = false
		return nil
	}
	n.value, n.ok = v, true
	return nil
}

// flexBool 接受布尔、"true"/"yes"、非零数字
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "true", "yes", "y", "1":
		*f = true
	default:
		if v, err := strconv.ParseFloat(string(s), 64); err == nil && v != 0 {
			*f = true
			return nil
		}
		*f = false
	}
	return nil
}
