package analysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	applog "github.com/ashwinyue/report-insight/internal/logger"
)

// InvokeRequest 一次模型调用的输入
type InvokeRequest struct {
	ReportType string
	LabName    string
	DoctorName string
	TestDate   *time.Time
	FileName   string

	// 图片二进制（可选），MIMEType 为空时按魔数判断
	Binary   []byte
	MIMEType string
	// 文本内容：提取出的文档文本或元数据描述
	Text string
}

func (r *InvokeRequest) hasImage() bool {
	return len(r.Binary) > 0
}

// InvokeResult 模型调用结果
type InvokeResult struct {
	Success          bool
	Text             string
	ProcessingTimeMs int64
	UsedFallback     bool
	Model            string
	Err              error
}

// Invoker 调用外部模型，任何失败都转换为合成的兜底结果
type Invoker struct {
	chatModel model.BaseChatModel
	modelName string
	limiter   *rate.Limiter
	timeout   time.Duration
	handlers  []callbacks.Handler
}

// InvokerOption 可选配置
type InvokerOption func(*Invoker)

// WithRateLimit 全局调用速率
func WithRateLimit(rps float64, burst int) InvokerOption {
	return func(i *Invoker) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		i.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout 单次调用超时
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithCallbacks 为每次调用注入 eino 回调
func WithCallbacks(handlers ...callbacks.Handler) InvokerOption {
	return func(i *Invoker) {
		i.handlers = append(i.handlers, handlers...)
	}
}

// NewInvoker 创建模型调用器
func NewInvoker(chatModel model.BaseChatModel, modelName string, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		chatModel: chatModel,
		modelName: modelName,
		timeout:   2 * time.Minute,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ModelName 模型标识
func (i *Invoker) ModelName() string {
	return i.modelName
}

// Invoke 调用一次模型，不重试；永远返回可解析的结果
func (i *Invoker) Invoke(ctx context.Context, req *InvokeRequest) (result *InvokeResult) {
	start := time.Now()
	logger := applog.Component("invoker").With().Str("model", i.modelName).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("model invocation panicked, using fallback")
			result = i.fallback(start, fmt.Errorf("model invocation panic: %v", r))
		}
	}()

	if i.chatModel == nil {
		return i.fallback(start, fmt.Errorf("chat model not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			logger.Warn().Err(err).Msg("rate limiter wait failed, using fallback")
			return i.fallback(start, fmt.Errorf("rate limiter: %w", err))
		}
	}

	if len(i.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      "report_analysis",
			Type:      i.modelName,
			Component: components.ComponentOfChatModel,
		}, i.handlers...)
	}

	resp, err := i.chatModel.Generate(ctx, buildMessages(req))
	if err != nil {
		logger.Warn().Err(err).Msg("model invocation failed, using fallback")
		return i.fallback(start, err)
	}
	if resp == nil {
		return i.fallback(start, fmt.Errorf("empty model response"))
	}

	return &InvokeResult{
		Success:          true,
		Text:             resp.Content,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Model:            i.modelName,
	}
}

func (i *Invoker) fallback(start time.Time, err error) *InvokeResult {
	return &InvokeResult{
		Success:          false,
		Text:             FallbackPayload().JSON(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		UsedFallback:     true,
		Model:            i.modelName,
		Err:              err,
	}
}

// buildMessages 构建系统消息和用户消息，图片作为 data URL 附加
func buildMessages(req *InvokeRequest) []*schema.Message {
	userPrompt := buildUserPrompt(req)
	msgs := []*schema.Message{schema.SystemMessage(systemPrompt)}

	if !req.hasImage() {
		return append(msgs, schema.UserMessage(userPrompt))
	}

	mime := strings.TrimSpace(req.MIMEType)
	if !strings.HasPrefix(mime, "image/") {
		mime = DetectImageMIME(req.Binary)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Binary))

	return append(msgs, &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: userPrompt},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:    dataURL,
					Detail: schema.ImageURLDetailHigh,
				},
			},
		},
	})
}
