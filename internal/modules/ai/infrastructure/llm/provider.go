package llm

import (
	"context"
	"os"
	"strings"
	"time"

	"koo/internal/config"
	"koo/internal/modules/ai/domain/rag"
	"koo/internal/modules/ai/infrastructure/embedding"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

type ChatModelMeta struct {
	Provider string
	Model    string
}

func NewChatModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, rag.Validationf("nil config")
	}
	return newChatModel(ctx, conf, strings.TrimSpace(conf.AIConfig.ChatModel.Model))
}

// NewVisionModelFromConfig 图片总结使用的多模态模型，未单独配置时复用对话模型
func NewVisionModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, rag.Validationf("nil config")
	}
	name := strings.TrimSpace(conf.AIConfig.ChatModel.VisionModel)
	if name == "" {
		name = strings.TrimSpace(conf.AIConfig.ChatModel.Model)
	}
	return newChatModel(ctx, conf, name)
}

func newChatModel(ctx context.Context, conf *config.Config, modelName string) (model.BaseChatModel, ChatModelMeta, error) {
	cc := conf.AIConfig.ChatModel
	provider := strings.ToLower(strings.TrimSpace(cc.Provider))

	timeout := 2 * time.Minute
	if cc.TimeoutSeconds > 0 {
		timeout = time.Duration(cc.TimeoutSeconds) * time.Second
	}

	switch provider {
	case "", "disabled", "none":
		return nil, ChatModelMeta{}, rag.Validationf("chat model provider not configured")

	case "mock":
		return NewMockChatModel(), ChatModelMeta{Provider: "mock", Model: "mock"}, nil

	case "openai":
		apiKey := strings.TrimSpace(cc.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if modelName == "" {
			modelName = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
		}
		baseURL := strings.TrimSpace(cc.BaseURL)
		if baseURL == "" {
			baseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
		}
		if apiKey == "" || modelName == "" {
			return nil, ChatModelMeta{}, rag.Validationf("openai chat model missing apiKey/model")
		}

		cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:     apiKey,
			Model:      modelName,
			BaseURL:    baseURL,
			ByAzure:    cc.ByAzure,
			APIVersion: strings.TrimSpace(cc.AzureAPIVersion),
			Timeout:    timeout,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "openai", Model: modelName}, nil

	case "ollama":
		if modelName == "" {
			return nil, ChatModelMeta{}, rag.Validationf("ollama chat model missing model")
		}
		apiKey := strings.TrimSpace(conf.AIConfig.OllamaAPIKey)
		if apiKey == "" {
			apiKey = "ollama"
		}
		cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  apiKey,
			Model:   modelName,
			BaseURL: embedding.OllamaOpenAIBaseURL(conf.AIConfig.OllamaBaseURL),
			Timeout: timeout,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "ollama", Model: modelName}, nil

	case "ark":
		apiKey := strings.TrimSpace(cc.APIKey)
		accessKey := strings.TrimSpace(cc.AccessKey)
		secretKey := strings.TrimSpace(cc.SecretKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		}
		if accessKey == "" {
			accessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		}
		if secretKey == "" {
			secretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		}
		if modelName == "" {
			modelName = strings.TrimSpace(os.Getenv("ARK_MODEL_ID"))
		}
		baseURL := strings.TrimSpace(cc.BaseURL)
		if baseURL == "" {
			baseURL = strings.TrimSpace(os.Getenv("ARK_BASE_URL"))
		}
		region := strings.TrimSpace(cc.Region)
		if region == "" {
			region = strings.TrimSpace(os.Getenv("ARK_REGION"))
		}

		if apiKey == "" && (accessKey == "" || secretKey == "") {
			return nil, ChatModelMeta{}, rag.Validationf("ark chat model missing apiKey or accessKey/secretKey")
		}
		if modelName == "" {
			return nil, ChatModelMeta{}, rag.Validationf("ark chat model missing model")
		}

		retryTimes := 2
		if cc.RetryTimes > 0 {
			retryTimes = cc.RetryTimes
		}
		cm, err := arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
			APIKey:     apiKey,
			AccessKey:  accessKey,
			SecretKey:  secretKey,
			Model:      modelName,
			BaseURL:    baseURL,
			Region:     region,
			Timeout:    &timeout,
			RetryTimes: &retryTimes,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "ark", Model: modelName}, nil

	default:
		return nil, ChatModelMeta{}, rag.Validationf("unknown chat model provider: %s", provider)
	}
}
