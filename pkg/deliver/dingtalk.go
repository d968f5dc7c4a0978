package deliver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dingtalkoauth2 "github.com/alibabacloud-go/dingtalk/oauth2_1_0"
	dingtalkrobot "github.com/alibabacloud-go/dingtalk/robot_1_0"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"

	"github.com/orbiterhq/orbiter-go/pkg/config"
)

// DingTalkSender delivers notifications through the DingTalk robot API.
// Chat ids starting with "cid" are treated as group conversations.
type DingTalkSender struct {
	Config      *config.DingTalkConfig
	robotClient *dingtalkrobot.Client
	oauthClient *dingtalkoauth2.Client

	tokenMu       sync.RWMutex
	accessToken   string
	tokenExpireAt time.Time
}

// NewDingTalkSender initializes the robot and oauth clients.
func NewDingTalkSender(cfg *config.DingTalkConfig) (*DingTalkSender, error) {
	if cfg.ClientID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("dingtalk credentials not configured")
	}

	apiConfig := &openapi.Config{
		Protocol: tea.String("https"),
		RegionId: tea.String("central"),
	}

	robotClient, err := dingtalkrobot.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to init dingtalk robot client: %w", err)
	}
	oauthClient, err := dingtalkoauth2.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to init dingtalk oauth client: %w", err)
	}

	return &DingTalkSender{
		Config:      cfg,
		robotClient: robotClient,
		oauthClient: oauthClient,
	}, nil
}

func (s *DingTalkSender) Name() string {
	return "dingtalk"
}

func (s *DingTalkSender) getAccessToken() (string, error) {
	s.tokenMu.RLock()
	if s.accessToken != "" && time.Now().Before(s.tokenExpireAt) {
		defer s.tokenMu.RUnlock()
		return s.accessToken, nil
	}
	s.tokenMu.RUnlock()

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	// Double check
	if s.accessToken != "" && time.Now().Before(s.tokenExpireAt) {
		return s.accessToken, nil
	}

	req := &dingtalkoauth2.GetAccessTokenRequest{
		AppKey:    tea.String(s.Config.ClientID),
		AppSecret: tea.String(s.Config.AppSecret),
	}
	resp, err := s.oauthClient.GetAccessToken(req)
	if err != nil {
		return "", err
	}
	if resp.Body == nil || resp.Body.AccessToken == nil {
		return "", fmt.Errorf("failed to get access token, response body is empty")
	}

	s.accessToken = *resp.Body.AccessToken
	// ExpireIn is seconds. Buffer it by 60s
	expireIn := *resp.Body.ExpireIn
	s.tokenExpireAt = time.Now().Add(time.Duration(expireIn-60) * time.Second)

	return s.accessToken, nil
}

type dingTalkSampleTextParam struct {
	Content string `json:"content"`
}

func (s *DingTalkSender) Send(ctx context.Context, msg Message) error {
	if msg.Content == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	token, err := s.getAccessToken()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	if strings.HasPrefix(msg.ChatID, "cid") {
		if err := s.sendGroup(token, msg); err != nil {
			return fmt.Errorf("failed to send dingtalk group message: %w", err)
		}
		return nil
	}
	if err := s.sendOTO(token, msg); err != nil {
		return fmt.Errorf("failed to send dingtalk message (OTO): %w", err)
	}
	return nil
}

func (s *DingTalkSender) sendOTO(token string, msg Message) error {
	headers := &dingtalkrobot.BatchSendOTOHeaders{
		XAcsDingtalkAccessToken: tea.String(token),
	}

	param := dingTalkSampleTextParam{Content: msg.Content}
	msgParamBytes, _ := json.Marshal(param)

	req := &dingtalkrobot.BatchSendOTORequest{
		RobotCode: tea.String(s.Config.RobotCode),
		UserIds:   []*string{tea.String(msg.ChatID)},
		MsgKey:    tea.String("sampleText"),
		MsgParam:  tea.String(string(msgParamBytes)),
	}

	_, err := s.robotClient.BatchSendOTOWithOptions(req, headers, &util.RuntimeOptions{})
	return err
}

func (s *DingTalkSender) sendGroup(token string, msg Message) error {
	headers := &dingtalkrobot.OrgGroupSendHeaders{
		XAcsDingtalkAccessToken: tea.String(token),
	}

	param := dingTalkSampleTextParam{Content: msg.Content}
	msgParamBytes, _ := json.Marshal(param)

	req := &dingtalkrobot.OrgGroupSendRequest{
		RobotCode:          tea.String(s.Config.RobotCode),
		OpenConversationId: tea.String(msg.ChatID),
		MsgKey:             tea.String("sampleText"),
		MsgParam:           tea.String(string(msgParamBytes)),
	}

	_, err := s.robotClient.OrgGroupSendWithOptions(req, headers, &util.RuntimeOptions{})
	return err
}
