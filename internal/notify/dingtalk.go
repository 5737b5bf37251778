// Package notify delivers post notifications to a DingTalk group robot.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Saul-Punybz/tweetwatch/internal/config"
	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

const sendTimeout = 10 * time.Second

// DingTalk sends markdown messages through a signed custom robot webhook.
type DingTalk struct {
	webhookURL  string
	accessToken string
	secret      string
	atMobiles   []string
	atAll       bool
	httpClient  *http.Client
	now         func() time.Time
}

// NewDingTalk creates a sender from cfg.
func NewDingTalk(cfg config.DingTalkConfig) *DingTalk {
	return &DingTalk{
		webhookURL:  cfg.WebhookURL,
		accessToken: cfg.AccessToken,
		secret:      cfg.Secret,
		atMobiles:   cfg.AtMobiles,
		atAll:       cfg.AtAll,
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
		now: time.Now,
	}
}

// Sign computes the robot signature for a millisecond timestamp: HMAC-SHA256
// of "<ts>\n<secret>" keyed by secret, base64 encoded, then query escaped.
func Sign(secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10) + "\n" + secret))
	return url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

// WebhookURL returns the delivery URL. A fresh timestamp and signature are
// attached on every call when a secret is configured.
func (d *DingTalk) WebhookURL() string {
	u := d.webhookURL + "?access_token=" + url.QueryEscape(d.accessToken)
	if d.secret == "" {
		return u
	}
	ts := d.now().UnixMilli()
	return u + "&timestamp=" + strconv.FormatInt(ts, 10) + "&sign=" + Sign(d.secret, ts)
}

type markdownMessage struct {
	MsgType  string       `json:"msgtype"`
	Markdown markdownBody `json:"markdown"`
	At       atSpec       `json:"at"`
}

type markdownBody struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type atSpec struct {
	AtMobiles []string `json:"atMobiles"`
	IsAtAll   bool     `json:"isAtAll"`
}

type sendResult struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// SendMarkdown posts a markdown message and reports whether the robot
// acknowledged it. Errors are logged, never returned.
func (d *DingTalk) SendMarkdown(ctx context.Context, title, text string, atMobiles []string, isAtAll bool) bool {
	if err := d.send(ctx, title, text, atMobiles, isAtAll); err != nil {
		slog.Error("dingtalk: send failed", "title", title, "err", err)
		return false
	}
	return true
}

func (d *DingTalk) send(ctx context.Context, title, text string, atMobiles []string, isAtAll bool) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if atMobiles == nil {
		atMobiles = []string{}
	}
	body, err := json.Marshal(markdownMessage{
		MsgType:  "markdown",
		Markdown: markdownBody{Title: title, Text: text},
		At:       atSpec{AtMobiles: atMobiles, IsAtAll: isAtAll},
	})
	if err != nil {
		return fmt.Errorf("dingtalk send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dingtalk send: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk send: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dingtalk send: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result sendResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("dingtalk send: decode response: %w", err)
	}
	if result.ErrCode == nil || *result.ErrCode != 0 {
		code := -1
		if result.ErrCode != nil {
			code = *result.ErrCode
		}
		return fmt.Errorf("dingtalk send: errcode %d: %s", code, result.ErrMsg)
	}
	return nil
}

// Notify formats the post and delivers it with the configured mentions.
func (d *DingTalk) Notify(ctx context.Context, p models.Post) bool {
	title, text := FormatPost(p)
	ok := d.SendMarkdown(ctx, title, text, d.atMobiles, d.atAll)
	if ok {
		slog.Info("dingtalk: notified", "post_id", p.ID, "account", p.Account)
	}
	return ok
}

// Send delivers an arbitrary markdown message with the configured mentions.
func (d *DingTalk) Send(ctx context.Context, title, text string) bool {
	return d.SendMarkdown(ctx, title, text, d.atMobiles, d.atAll)
}

// FormatPost renders the notification title and markdown body for a post.
func FormatPost(p models.Post) (string, string) {
	title := "🔥 新推文提醒 - @" + p.Account

	var sb strings.Builder
	sb.WriteString("## 🔥 捕获到新推文！\n\n")
	fmt.Fprintf(&sb, "**👤 用户:** @%s  \n", p.Account)
	fmt.Fprintf(&sb, "**🕐 时间:** %s (北京时间)  \n\n", p.CreatedAtLocal)
	fmt.Fprintf(&sb, "**📝 内容:**  \n%s  \n\n", p.Text)
	if p.Preview != nil && p.Preview.Title != "" {
		fmt.Fprintf(&sb, "**🔗 链接:** [%s](%s)  \n\n", linkText(p.Preview.Title), p.Preview.URL)
	}
	sb.WriteString("**📊 互动数据:**  \n")
	fmt.Fprintf(&sb, "- 👍 点赞: %d  \n", p.Likes)
	fmt.Fprintf(&sb, "- 🔄 转推: %d  \n", p.Retweets)
	fmt.Fprintf(&sb, "- 💬 回复: %d  \n", p.Replies)
	fmt.Fprintf(&sb, "- 👁️ 浏览: %d  \n\n", p.Views)
	fmt.Fprintf(&sb, "**🤖 AI摘要:**  \n%s  \n\n", p.Summary)
	if p.URL != "" {
		fmt.Fprintf(&sb, "[查看原文](%s)\n\n", p.URL)
	}
	sb.WriteString("---\n*来自 Twitter 实时监控机器人*")
	return title, sb.String()
}

var linkTextEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

// linkText makes scraped text safe inside a markdown link label: newlines
// collapse to spaces and brackets are escaped.
func linkText(s string) string {
	return linkTextEscaper.Replace(strings.Join(strings.Fields(s), " "))
}
