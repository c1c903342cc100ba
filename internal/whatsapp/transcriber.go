package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/config"
	"omnitip-relay/pkg/logger"
)

// 转写失败时使用的占位文本，均非空，分类器按默认标签处理
const (
	PlaceholderNotConfigured = "[Voice message - transcription not configured]"
	PlaceholderFailed        = "[Voice message - processing failed]"
)

type whisperProvider struct {
	name     string
	url      string
	apiKey   string
	model    string
	language string
}

// Transcriber 语音转写，优先 Groq，失败后回退 OpenAI
type Transcriber struct {
	providers  []whisperProvider
	httpClient *http.Client
}

func NewTranscriber(cfg *config.TranscriptionConfig) *Transcriber {
	t := &Transcriber{
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
	if cfg.GroqAPIKey != "" {
		t.providers = append(t.providers, whisperProvider{
			name:     "groq",
			url:      cfg.GroqURL,
			apiKey:   cfg.GroqAPIKey,
			model:    "whisper-large-v3",
			language: cfg.Language,
		})
	}
	if cfg.OpenAIAPIKey != "" {
		t.providers = append(t.providers, whisperProvider{
			name:   "openai",
			url:    cfg.OpenAIURL,
			apiKey: cfg.OpenAIAPIKey,
			model:  "whisper-1",
		})
	}
	return t
}

func (t *Transcriber) Configured() bool {
	return len(t.providers) > 0
}

// Transcribe 依次尝试各服务，全部失败返回占位文本，不返回错误
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) string {
	if !t.Configured() {
		logger.Warn("未配置语音转写 API key")
		return PlaceholderNotConfigured
	}

	for _, p := range t.providers {
		text, err := t.transcribeWith(ctx, p, audio)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"provider": p.name,
			}).WithError(err).Warn("语音转写失败")
			continue
		}
		if strings.TrimSpace(text) == "" {
			logger.WithFields(logrus.Fields{
				"provider": p.name,
			}).Warn("语音转写返回空文本")
			continue
		}

		logger.WithFields(logrus.Fields{
			"provider": p.name,
			"chars":    len(text),
		}).Info("语音消息已转写")
		return text
	}

	return PlaceholderFailed
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (t *Transcriber) transcribeWith(ctx context.Context, p whisperProvider, audio []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "audio.ogg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := w.WriteField("model", p.model); err != nil {
		return "", err
	}
	if p.language != "" {
		if err := w.WriteField("language", p.language); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Text, nil
}
