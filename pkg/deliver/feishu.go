package deliver

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/orbiterhq/orbiter-go/pkg/config"
)

// FeishuSender delivers notifications as Feishu interactive cards.
// Chat ids starting with "oc_" target a group chat, anything else an
// open id.
type FeishuSender struct {
	Config *config.FeishuConfig
	client *lark.Client
}

// NewFeishuSender creates the Feishu client.
func NewFeishuSender(cfg *config.FeishuConfig) (*FeishuSender, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("feishu credentials not configured")
	}
	return &FeishuSender{
		Config: cfg,
		client: lark.NewClient(cfg.AppID, cfg.AppSecret),
	}, nil
}

func (s *FeishuSender) Name() string {
	return "feishu"
}

func (s *FeishuSender) Send(ctx context.Context, msg Message) error {
	if msg.Content == "" {
		return nil
	}

	receiveIDType := larkim.ReceiveIdTypeOpenId
	if len(msg.ChatID) > 3 && msg.ChatID[:3] == "oc_" {
		receiveIDType = larkim.ReceiveIdTypeChatId
	}

	cardContent := map[string]interface{}{
		"config": map[string]interface{}{
			"wide_screen_mode": true,
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag": "div",
				"text": map[string]interface{}{
					"tag":     "lark_md",
					"content": msg.Content,
				},
			},
		},
	}
	contentJSON, _ := json.Marshal(cardContent)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.ChatID).
			MsgType(larkim.MsgTypeInteractive).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := s.client.Im.Message.Create(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("feishu error: %d %s", resp.Code, resp.Msg)
	}
	return nil
}
