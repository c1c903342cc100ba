package whatsapp

import (
	"context"

	"github.com/sirupsen/logrus"

	"omnitip-relay/pkg/logger"
)

type mediaDownloader interface {
	Download(ctx context.Context, mediaID, directURL string) ([]byte, error)
}

type audioTranscriber interface {
	Transcribe(ctx context.Context, audio []byte) string
}

// Resolver 将入站消息解析为文本
type Resolver struct {
	media       mediaDownloader
	transcriber audioTranscriber
}

func NewResolver(media mediaDownloader, transcriber audioTranscriber) *Resolver {
	return &Resolver{
		media:       media,
		transcriber: transcriber,
	}
}

// Resolve 文本消息取正文，语音消息下载并转写，其他类型返回 false
func (r *Resolver) Resolve(ctx context.Context, msg CloudMessage) (string, bool) {
	switch msg.Type {
	case MessageTypeText:
		if msg.Text == nil {
			return "", true
		}
		return msg.Text.Body, true
	case MessageTypeAudio:
		if msg.Audio == nil {
			return PlaceholderFailed, true
		}
		return r.processAudio(ctx, msg.Audio), true
	default:
		logger.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"type":       msg.Type,
		}).Info("不支持的消息类型")
		return "", false
	}
}

func (r *Resolver) processAudio(ctx context.Context, audio *CloudAudio) string {
	data, err := r.media.Download(ctx, audio.ID, audio.URL)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"media_id": audio.ID,
			"voice":    audio.Voice,
		}).WithError(err).Warn("语音消息处理失败")
		return PlaceholderFailed
	}
	return r.transcriber.Transcribe(ctx, data)
}
