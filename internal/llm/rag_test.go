package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient 记录收到的提示词并返回固定回答
type fakeClient struct {
	lastPrompt string
	reply      string
	err        error
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &Response{
		Text:       f.reply,
		TokenCount: 42,
		ModelName:  "fake-model",
		FinishTime: time.Now(),
	}, nil
}

func (f *fakeClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.reply, ModelName: "fake-model", FinishTime: time.Now()}, nil
}

func (f *fakeClient) Name() string {
	return "fake-model"
}

// TestRAGAnswer 测试RAG回答生成
func TestRAGAnswer(t *testing.T) {
	question := "What is a vector database?"
	contexts := []string{
		"A vector database stores and retrieves high dimensional vectors.",
		"Unlike relational databases, vector databases are optimized for similarity search.",
	}

	t.Run("prompt contains question and contexts", func(t *testing.T) {
		client := &fakeClient{reply: "A vector database stores vectors."}
		rag := NewRAG(client)

		resp, err := rag.Answer(context.Background(), question, contexts)
		require.NoError(t, err)
		assert.Equal(t, "A vector database stores vectors.", resp.Answer)

		assert.Contains(t, client.lastPrompt, question)
		for _, ctx := range contexts {
			assert.Contains(t, client.lastPrompt, ctx)
		}
		// 上下文段落带编号
		assert.Contains(t, client.lastPrompt, "[1]")
		assert.Contains(t, client.lastPrompt, "[2]")
	})

	t.Run("sources attached in order", func(t *testing.T) {
		client := &fakeClient{reply: "answer"}
		rag := NewRAG(client)

		resp, err := rag.Answer(context.Background(), question, contexts)
		require.NoError(t, err)
		require.Len(t, resp.Sources, 2)
		assert.Equal(t, contexts[0], resp.Sources[0].Content)
		assert.Equal(t, contexts[1], resp.Sources[1].Content)
	})

	t.Run("sources disabled", func(t *testing.T) {
		client := &fakeClient{reply: "answer"}
		rag := NewRAG(client, WithSources(false))

		resp, err := rag.Answer(context.Background(), question, contexts)
		require.NoError(t, err)
		assert.Empty(t, resp.Sources)
	})

	t.Run("empty question rejected", func(t *testing.T) {
		rag := NewRAG(&fakeClient{})
		_, err := rag.Answer(context.Background(), "", contexts)
		require.Error(t, err)

		var llmErr LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
	})

	t.Run("client error propagated", func(t *testing.T) {
		client := &fakeClient{err: NewLLMError(ErrCodeServerError, "boom")}
		rag := NewRAG(client)

		_, err := rag.Answer(context.Background(), question, contexts)
		assert.Error(t, err)
	})
}

// TestRAGTemplates 测试提示词模板选择
func TestRAGTemplates(t *testing.T) {
	question := "What is retrieval augmented generation?"
	contexts := []string{"RAG combines document retrieval with language models."}

	t.Run("default template", func(t *testing.T) {
		client := &fakeClient{reply: "ok"}
		rag := NewRAG(client)

		_, err := rag.Answer(context.Background(), question, contexts)
		require.NoError(t, err)
		assert.Contains(t, client.lastPrompt, "using only the reference context")
		assert.NotContains(t, client.lastPrompt, "Reasoning steps")
	})

	t.Run("deep thinking template", func(t *testing.T) {
		client := &fakeClient{reply: "ok"}
		rag := NewRAG(client, WithDeepThinking())

		_, err := rag.Answer(context.Background(), question, contexts)
		require.NoError(t, err)
		assert.Contains(t, client.lastPrompt, "Reasoning steps")
	})

	t.Run("custom template", func(t *testing.T) {
		client := &fakeClient{reply: "ok"}
		custom := "Sources:\n{{.Context}}\nQ: {{.Question}}\nA:"
		rag := NewRAG(client, WithTemplate(custom))

		_, err := rag.Answer(context.Background(), question, contexts)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(client.lastPrompt, "Sources:"))
		assert.Contains(t, client.lastPrompt, "Q: "+question)
	})
}

// TestNewClientRegistry 测试客户端工厂
func TestNewClientRegistry(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "no-such-provider"})
		require.Error(t, err)

		var llmErr LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
	})

	t.Run("openai requires api key", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "openai"})
		assert.Error(t, err)
	})

	t.Run("options build config", func(t *testing.T) {
		cfg := NewConfig(
			WithAPIKey("key"),
			WithModel(ModelGPT4o),
			WithMaxTokens(512),
			WithTemperature(0.2),
		)
		assert.Equal(t, "key", cfg.APIKey)
		assert.Equal(t, ModelGPT4o, cfg.Model)
		assert.Equal(t, 512, cfg.MaxTokens)
	})
}
