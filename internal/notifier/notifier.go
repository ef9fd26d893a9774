package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"stock-signal-sentry/pkg/types"
)

// Interface 通知接口
type Interface interface {
	SendDigest(digest *types.SignalDigest) error
}

// New 根据配置选择通知服务（优先级：钉钉 > PushPlus > 控制台）
func New(dingtalk types.DingTalkConfig, pushplus types.PushPlusConfig) Interface {
	if dingtalk.WebhookURL != "" {
		return NewDingTalkNotifier(dingtalk.WebhookURL, dingtalk.Secret)
	}
	if pushplus.UserToken != "" {
		return NewPushPlusNotifier(pushplus.UserToken, pushplus.To)
	}
	return NewConsoleNotifier()
}

// sortSignals 摘要统一按置信度从高到低排
func sortSignals(signals []*types.Signal) []*types.Signal {
	sorted := make([]*types.Signal, len(signals))
	copy(sorted, signals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ConfidenceScore > sorted[j].ConfidenceScore
	})
	return sorted
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct{}

func NewConsoleNotifier() *ConsoleNotifier {
	zap.L().Info("🔧 未配置推送渠道，使用控制台输出模式")
	return &ConsoleNotifier{}
}

func (cn *ConsoleNotifier) SendDigest(digest *types.SignalDigest) error {
	fmt.Printf("\n========== 📈 %s 信号日报 %s ==========\n",
		strings.ToUpper(digest.Market), digest.Date.Format("2006-01-02"))
	for _, s := range sortSignals(digest.Signals) {
		fmt.Printf("📌 %-12s %-28s 动作:%-13s 置信:%3d 区间:%s\n",
			s.Name, s.Signal, s.Action, s.ConfidenceScore, s.BuyRange)
		fmt.Printf("   %s\n", s.Explanation)
	}
	fmt.Printf("共 %d 条信号\n", len(digest.Signals))
	return nil
}

// PushPlusNotifier PushPlus通知器
type PushPlusNotifier struct {
	userToken  string
	to         string // 好友令牌，多人用逗号分隔
	httpClient *http.Client
}

type pushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
	To       string `json:"to,omitempty"`
}

type pushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

func NewPushPlusNotifier(userToken, to string) Interface {
	if userToken == "" {
		return NewConsoleNotifier()
	}

	zap.L().Info("✅ 已配置PushPlus通知服务")

	return &PushPlusNotifier{
		userToken: userToken,
		to:        to,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (ppn *PushPlusNotifier) SendDigest(digest *types.SignalDigest) error {
	title := fmt.Sprintf("📈 %s 信号日报 - %d条 (%s)",
		strings.ToUpper(digest.Market), len(digest.Signals), digest.Date.Format("2006-01-02"))
	content := ppn.buildHTMLContent(digest)

	if err := ppn.sendPushPlusMessage(title, content); err != nil {
		zap.L().Warn("❌ PushPlus发送失败，降级为控制台输出", zap.Error(err))
		console := &ConsoleNotifier{}
		return console.SendDigest(digest)
	}

	zap.L().Info("✅ PushPlus日报已发送",
		zap.String("market", digest.Market),
		zap.Int("signals", len(digest.Signals)))
	return nil
}

func (ppn *PushPlusNotifier) buildHTMLContent(digest *types.SignalDigest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<h2 style="text-align:center;">📊 %s 每日信号 %s</h2>`,
		strings.ToUpper(digest.Market), digest.Date.Format("2006-01-02")))
	sb.WriteString(`<table border="1" cellpadding="6" cellspacing="0" style="width:100%;border-collapse:collapse;">`)
	sb.WriteString(`<tr style="background:#f0f0f0;"><th>股票</th><th>信号</th><th>动作</th><th>置信</th><th>买入区间</th></tr>`)

	for _, s := range sortSignals(digest.Signals) {
		color := "#00C851"
		if strings.Contains(s.Action, "AVOID") || s.Action == types.ActionExit {
			color = "#FF4444"
		}
		sb.WriteString(fmt.Sprintf(
			`<tr><td>%s</td><td>%s</td><td style="color:%s;font-weight:bold;">%s</td><td>%d</td><td>%s</td></tr>`,
			s.Name, s.Signal, color, s.Action, s.ConfidenceScore, s.BuyRange))
	}
	sb.WriteString(`</table>`)
	sb.WriteString(fmt.Sprintf(`<p style="color:#666;">生成时间: %s</p>`,
		digest.GeneratedAt.Format("2006-01-02 15:04:05")))
	return sb.String()
}

func (ppn *PushPlusNotifier) sendPushPlusMessage(title, content string) error {
	reqData := pushPlusRequest{
		Token:    ppn.userToken,
		Title:    title,
		Content:  content,
		Template: "html",
		To:       ppn.to,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %v", err)
	}

	resp, err := ppn.httpClient.Post(
		"http://www.pushplus.plus/send",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	var pushResp pushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if pushResp.Code != 200 {
		return fmt.Errorf("PushPlus API错误: %s", pushResp.Msg)
	}

	return nil
}

// DingTalkNotifier 钉钉通知器
type DingTalkNotifier struct {
	webhookURL string
	secret     string
	httpClient *http.Client
}

type dingTalkMessage struct {
	MsgType  string           `json:"msgtype"`
	Markdown dingTalkMarkdown `json:"markdown"`
}

type dingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type dingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewDingTalkNotifier(webhookURL, secret string) Interface {
	if webhookURL == "" {
		return NewConsoleNotifier()
	}

	zap.L().Info("✅ 已配置钉钉通知服务")

	return &DingTalkNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (dtn *DingTalkNotifier) SendDigest(digest *types.SignalDigest) error {
	title := fmt.Sprintf("%s 信号日报", strings.ToUpper(digest.Market))
	content := dtn.buildMarkdownContent(digest)

	if err := dtn.sendDingTalkMessage(title, content); err != nil {
		zap.L().Warn("❌ 钉钉发送失败，降级为控制台输出", zap.Error(err))
		console := &ConsoleNotifier{}
		return console.SendDigest(digest)
	}

	zap.L().Info("✅ 钉钉日报已发送",
		zap.String("market", digest.Market),
		zap.Int("signals", len(digest.Signals)))
	return nil
}

func (dtn *DingTalkNotifier) buildMarkdownContent(digest *types.SignalDigest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## 📊 %s 每日信号 %s\n\n",
		strings.ToUpper(digest.Market), digest.Date.Format("2006-01-02")))

	for _, s := range sortSignals(digest.Signals) {
		emoji := "🟢"
		if strings.Contains(s.Action, "AVOID") || s.Action == types.ActionExit {
			emoji = "🔴"
		} else if s.Action == types.ActionWatch {
			emoji = "🟡"
		}
		sb.WriteString(fmt.Sprintf("%s **%s** · %s\n\n", emoji, s.Name, s.Signal))
		sb.WriteString(fmt.Sprintf("> 动作: %s | 置信: %d | 区间: %s\n\n",
			s.Action, s.ConfidenceScore, s.BuyRange))
		sb.WriteString(fmt.Sprintf("> %s\n\n", s.Explanation))
	}

	sb.WriteString(fmt.Sprintf("---\n共 **%d** 条信号 · 生成于 %s",
		len(digest.Signals), digest.GeneratedAt.Format("15:04:05")))
	return sb.String()
}

// buildSignedURL 钉钉加签：HmacSHA256后Base64再URL编码
func (dtn *DingTalkNotifier) buildSignedURL() (string, error) {
	if dtn.secret == "" {
		return dtn.webhookURL, nil
	}

	timestamp := time.Now().UnixMilli()
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dtn.secret)

	h := hmac.New(sha256.New, []byte(dtn.secret))
	if _, err := h.Write([]byte(stringToSign)); err != nil {
		return "", err
	}
	signature := url.QueryEscape(base64.StdEncoding.EncodeToString(h.Sum(nil)))

	return fmt.Sprintf("%s&timestamp=%d&sign=%s", dtn.webhookURL, timestamp, signature), nil
}

func (dtn *DingTalkNotifier) sendDingTalkMessage(title, content string) error {
	signedURL, err := dtn.buildSignedURL()
	if err != nil {
		return fmt.Errorf("生成签名失败: %v", err)
	}

	msg := dingTalkMessage{
		MsgType: "markdown",
		Markdown: dingTalkMarkdown{
			Title: title,
			Text:  content,
		},
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	resp, err := dtn.httpClient.Post(signedURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	var dtResp dingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dtResp); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if dtResp.ErrCode != 0 {
		return fmt.Errorf("钉钉API错误: %s", dtResp.ErrMsg)
	}

	return nil
}
