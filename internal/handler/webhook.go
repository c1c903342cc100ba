package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/service"
	"omnitip-relay/internal/wallet"
	"omnitip-relay/internal/whatsapp"
	"omnitip-relay/pkg/errors"
	"omnitip-relay/pkg/logger"
)

type tipIngestor interface {
	Ingest(ctx context.Context, msg service.InboundMessage) (*service.Ack, error)
}

type messageResolver interface {
	Resolve(ctx context.Context, msg whatsapp.CloudMessage) (string, bool)
}

type WebhookHandler struct {
	verifyToken string
	ingestor    tipIngestor
	resolver    messageResolver
}

func NewWebhookHandler(verifyToken string, ingestor tipIngestor, resolver messageResolver) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		ingestor:    ingestor,
		resolver:    resolver,
	}
}

// Verify WhatsApp webhook 订阅校验
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		logger.Info("Webhook 订阅校验通过")
		c.String(http.StatusOK, challenge)
		return
	}

	logger.Warn("Webhook 订阅校验失败")
	c.String(http.StatusForbidden, "Forbidden")
}

// Receive 入站消息，支持 Cloud API 格式与 Twilio 风格的测试格式
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "failed to read body")
		return
	}

	if strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
		h.receiveSimulatorForm(c, body)
		return
	}

	var cloud whatsapp.CloudPayload
	if err := json.Unmarshal(body, &cloud); err == nil && cloud.IsCloud() {
		h.receiveCloud(c, &cloud)
		return
	}

	var sim whatsapp.SimulatorPayload
	if err := json.Unmarshal(body, &sim); err == nil && sim.Valid() {
		h.receiveSimulator(c, &sim)
		return
	}

	c.String(http.StatusOK, "OK")
}

func (h *WebhookHandler) receiveCloud(c *gin.Context, payload *whatsapp.CloudPayload) {
	messages := payload.Messages()
	if len(messages) == 0 {
		c.String(http.StatusOK, "No messages")
		return
	}

	// 单条失败不影响同批其余消息，结束后返回第一个错误
	ctx := c.Request.Context()
	var firstErr error
	for _, msg := range messages {
		text, ok := h.resolver.Resolve(ctx, msg)
		if !ok {
			continue
		}

		_, err := h.ingestor.Ingest(ctx, service.InboundMessage{
			MessageID:        msg.ID,
			SenderIdentifier: msg.From,
			Text:             text,
			Source:           "whatsapp",
		})
		if err == nil {
			continue
		}
		if errors.HasCode(err, errors.ErrEmptyMessage) {
			logger.WithFields(logrus.Fields{
				"message_id": msg.ID,
			}).Info("跳过无文本消息")
			continue
		}

		logger.WithFields(logrus.Fields{
			"message_id": msg.ID,
		}).WithError(err).Error("入站消息处理失败")
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		c.String(statusFor(firstErr), firstErr.Error())
		return
	}
	c.String(http.StatusOK, "OK")
}

func (h *WebhookHandler) receiveSimulatorForm(c *gin.Context, body []byte) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid form body")
		return
	}

	sim := whatsapp.SimulatorPayload{
		From:       values.Get("From"),
		Body:       values.Get("Body"),
		MessageSid: values.Get("MessageSid"),
	}
	if !sim.Valid() {
		c.String(http.StatusOK, "OK")
		return
	}
	h.receiveSimulator(c, &sim)
}

func (h *WebhookHandler) receiveSimulator(c *gin.Context, payload *whatsapp.SimulatorPayload) {
	ack, err := h.ingestor.Ingest(c.Request.Context(), service.InboundMessage{
		MessageID:        payload.MessageSid,
		SenderIdentifier: payload.From,
		Text:             payload.Body,
		Source:           "simulator",
	})
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}

	c.String(http.StatusOK, simulatorReply(ack))
}

// simulatorReply 例如 Tip logged! Wallet: 0x1234...abcd | Tx: 0x12345678...
func simulatorReply(ack *service.Ack) string {
	reply := fmt.Sprintf("Tip logged! Wallet: %s", wallet.Short(ack.WalletAddress))
	if ack.TxHash != "" {
		hash := ack.TxHash
		if len(hash) > 10 {
			hash = hash[:10]
		}
		reply += fmt.Sprintf(" | Tx: %s...", hash)
	}
	return reply
}
