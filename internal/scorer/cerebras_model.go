package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resumease-go/internal/config"
	"resumease-go/internal/logger"
)

const (
	defaultCerebrasAPIURL = "https://api.cerebras.ai/v1/chat/completions"
	defaultCerebrasModel  = "llama-3.3-70b"
)

// CerebrasChatModel 实现 model.ToolCallingChatModel 接口，
// 通过OpenAI兼容接口与Cerebras推理服务交互
type CerebrasChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
}

// NewCerebrasChatModel 创建Cerebras客户端，API密钥不能为空
func NewCerebrasChatModel(cfg *config.CerebrasConfig) (*CerebrasChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	modelName := cfg.Model
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultCerebrasModel
	}
	apiURL := cfg.APIURL
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultCerebrasAPIURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &CerebrasChatModel{
		apiKey:     cfg.APIKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// --- OpenAI兼容的请求/响应结构 ---

type cerebrasChatRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

type cerebrasChatMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type cerebrasChatChoice struct {
	Index        int                 `json:"index"`
	Message      cerebrasChatMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type cerebrasUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type cerebrasChatResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []cerebrasChatChoice `json:"choices"`
	Usage   cerebrasUsage        `json:"usage"`
}

// Generate 实现 model.BaseChatModel 接口。
// 采样参数固定为低温度短输出，token用量挂在返回消息的ResponseMeta上。
func (c *CerebrasChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt
	}

	reqPayload := cerebrasChatRequest{
		Model:       c.modelName,
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: 0.2,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp cerebrasChatResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	logger.Ctx(ctx).Debug().
		Str("model", resp.Model).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("duration", time.Since(start)).
		Msg("Cerebras调用完成")

	apiMessage := resp.Choices[0].Message
	content := ""
	if apiMessage.Content != nil {
		content = *apiMessage.Content
	}
	role := schema.RoleType(apiMessage.Role)
	if role == "" {
		role = schema.Assistant
	}

	return &schema.Message{
		Role:    role,
		Content: content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: resp.Choices[0].FinishReason,
			Usage: &schema.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		},
	}, nil
}

// Stream 实现 model.BaseChatModel 接口（未启用流式）
func (c *CerebrasChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("CerebrasChatModel 的 Stream 方法未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口。
// 评分流程不使用工具调用，直接返回自身。
func (c *CerebrasChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		logger.Warn().Int("tool_count", len(tools)).Msg("CerebrasChatModel不支持工具调用，忽略绑定")
	}
	return c, nil
}

var _ model.ToolCallingChatModel = (*CerebrasChatModel)(nil)
