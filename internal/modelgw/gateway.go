package modelgw

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dicebot/pkg/config"
	"github.com/betbot/dicebot/pkg/secretstore"
)

var log = logrus.WithField("component", "modelgw")

// Result 一次模型调用的结果
// Err 非空时 Content 无意义；调用方拿到失败结果后走本地兜底逻辑。
type Result struct {
	Success bool
	ModelID string
	Content string
	Err     error
}

// Gateway 模型网关接口
type Gateway interface {
	// Call 调用指定模型；该模型失败时按优先级降级到其他端点
	Call(ctx context.Context, modelID, systemPrompt, userPrompt string, timeout time.Duration) Result
}

// chatRequest OpenAI 兼容 chat/completions 请求体
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPGateway 基于 resty 的模型网关实现
type HTTPGateway struct {
	endpoints []config.ModelEndpoint // 按优先级升序
	secrets   *secretstore.Store
	client    *resty.Client
}

// NewHTTPGateway 创建模型网关
// API Key 先查密钥库（键名 model_key_<env>），再查环境变量。
func NewHTTPGateway(endpoints []config.ModelEndpoint, secrets *secretstore.Store) *HTTPGateway {
	sorted := make([]config.ModelEndpoint, len(endpoints))
	copy(sorted, endpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	client := resty.New().
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &HTTPGateway{endpoints: sorted, secrets: secrets, client: client}
}

// Call 调用模型，失败时按优先级降级
func (g *HTTPGateway) Call(ctx context.Context, modelID, systemPrompt, userPrompt string, timeout time.Duration) Result {
	order := g.callOrder(modelID)
	if len(order) == 0 {
		return Result{Err: errors.New("没有可用的模型端点")}
	}

	deadline := time.Now().Add(timeout)
	var lastErr error
	for _, ep := range order {
		remain := time.Until(deadline)
		if remain <= 0 {
			break
		}
		content, err := g.callEndpoint(ctx, ep, systemPrompt, userPrompt, remain)
		if err != nil {
			log.Warnf("⚠️ 模型 %s 调用失败: %v", ep.ID, err)
			lastErr = err
			continue
		}
		return Result{Success: true, ModelID: ep.ID, Content: content}
	}
	if lastErr == nil {
		lastErr = errors.New("模型调用超时")
	}
	return Result{Err: lastErr}
}

// callOrder 把指定模型排在最前，其余按优先级跟在后面
func (g *HTTPGateway) callOrder(modelID string) []config.ModelEndpoint {
	var order []config.ModelEndpoint
	for _, ep := range g.endpoints {
		if ep.ID == modelID {
			order = append(order, ep)
			break
		}
	}
	for _, ep := range g.endpoints {
		if ep.ID != modelID {
			order = append(order, ep)
		}
	}
	return order
}

func (g *HTTPGateway) callEndpoint(ctx context.Context, ep config.ModelEndpoint, systemPrompt, userPrompt string, timeout time.Duration) (string, error) {
	key := g.apiKey(ep)
	if key == "" {
		return "", errors.Errorf("模型 %s 缺少 API Key", ep.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := chatRequest{
		Model:       ep.Model,
		Temperature: 0.2,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	var out chatResponse
	resp, err := g.client.R().
		SetContext(callCtx).
		SetAuthToken(key).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(strings.TrimRight(ep.BaseURL, "/") + "/chat/completions")
	if err != nil {
		return "", errors.Wrapf(err, "请求 %s 失败", ep.ID)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", errors.Errorf("模型 %s 返回错误: %s", ep.ID, msg)
	}
	if len(out.Choices) == 0 {
		return "", errors.Errorf("模型 %s 返回空结果", ep.ID)
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", errors.Errorf("模型 %s 返回空内容", ep.ID)
	}
	return content, nil
}

func (g *HTTPGateway) apiKey(ep config.ModelEndpoint) string {
	if g.secrets != nil {
		if v, ok, err := g.secrets.GetString("model_key_" + ep.APIKeyEnv); err == nil && ok && v != "" {
			return v
		}
	}
	return strings.TrimSpace(os.Getenv(ep.APIKeyEnv))
}
