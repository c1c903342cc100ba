package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"omnitip-relay/internal/config"
	"omnitip-relay/pkg/errors"
)

// maxMediaBytes WhatsApp 音频上限为 16MB
const maxMediaBytes = 16 << 20

// MediaClient 通过 Graph API 下载入站媒体
type MediaClient struct {
	graphURL    string
	apiVersion  string
	accessToken string
	httpClient  *http.Client
}

func NewMediaClient(cfg *config.WhatsAppConfig, timeout time.Duration) *MediaClient {
	return &MediaClient{
		graphURL:    strings.TrimRight(cfg.GraphURL, "/"),
		apiVersion:  cfg.APIVersion,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Download 下载媒体内容，directURL 为空时先通过 mediaID 查询下载地址
func (c *MediaClient) Download(ctx context.Context, mediaID, directURL string) ([]byte, error) {
	if c.accessToken == "" {
		return nil, errors.New(errors.ErrMediaFetch, "whatsapp access token not configured", nil)
	}

	mediaURL := directURL
	if mediaURL == "" {
		info, err := c.lookup(ctx, mediaID)
		if err != nil {
			return nil, err
		}
		mediaURL = info.URL
	}

	resp, err := c.get(ctx, mediaURL)
	if err != nil {
		return nil, errors.New(errors.ErrMediaFetch, "failed to download media", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrMediaFetch,
			fmt.Sprintf("media download returned status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, errors.New(errors.ErrMediaFetch, "failed to read media body", err)
	}
	if len(data) > maxMediaBytes {
		return nil, errors.New(errors.ErrMediaFetch, "media exceeds size limit", nil)
	}
	return data, nil
}

func (c *MediaClient) lookup(ctx context.Context, mediaID string) (*mediaInfo, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/%s/%s", c.graphURL, c.apiVersion, mediaID))
	if err != nil {
		return nil, errors.New(errors.ErrMediaFetch, "failed to get media url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrMediaFetch,
			fmt.Sprintf("media lookup returned status %d", resp.StatusCode), nil)
	}

	var info mediaInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.New(errors.ErrMediaFetch, "failed to decode media info", err)
	}
	if info.URL == "" {
		return nil, errors.New(errors.ErrMediaFetch, "media info has no url", nil)
	}
	return &info, nil
}

func (c *MediaClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	return c.httpClient.Do(req)
}
