package whatsapp

import "strings"

// CloudObject WhatsApp Cloud API webhook 的 object 字段值
const CloudObject = "whatsapp_business_account"

const (
	MessageTypeText  = "text"
	MessageTypeAudio = "audio"
)

// CloudPayload WhatsApp Cloud API 入站 webhook
type CloudPayload struct {
	Object string       `json:"object"`
	Entry  []CloudEntry `json:"entry"`
}

type CloudEntry struct {
	ID      string        `json:"id"`
	Changes []CloudChange `json:"changes"`
}

type CloudChange struct {
	Field string     `json:"field"`
	Value CloudValue `json:"value"`
}

type CloudValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Messages         []CloudMessage `json:"messages"`
}

type CloudMessage struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	Timestamp string      `json:"timestamp"`
	Type      string      `json:"type"`
	Text      *CloudText  `json:"text,omitempty"`
	Audio     *CloudAudio `json:"audio,omitempty"`
}

type CloudText struct {
	Body string `json:"body"`
}

type CloudAudio struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type"`
	Voice    bool   `json:"voice"`
}

// IsCloud 是否为 Cloud API 格式
func (p *CloudPayload) IsCloud() bool {
	return p.Object == CloudObject
}

// Messages 展开所有 entry / change 中的消息
func (p *CloudPayload) Messages() []CloudMessage {
	var out []CloudMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Messages...)
		}
	}
	return out
}

// SimulatorPayload Twilio 风格的测试入站消息，JSON 与表单均可
type SimulatorPayload struct {
	From       string `json:"From" form:"From"`
	Body       string `json:"Body" form:"Body"`
	MessageSid string `json:"MessageSid" form:"MessageSid"`
}

func (p *SimulatorPayload) Valid() bool {
	return strings.TrimSpace(p.From) != "" && p.Body != ""
}
