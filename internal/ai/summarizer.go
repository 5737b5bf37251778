package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

// FailurePrefix starts every placeholder summary.
const FailurePrefix = "摘要生成失败: "

const summarySystemPrompt = "你是一个专业的社交媒体内容分析师，擅长用简洁的语言概括推文内容。"

const digestSystemPrompt = "你是一个专业的社交媒体内容分析师。请根据给出的推文列表，用简洁的中文写一段每日监控简报，不超过300字，纯文本输出。"

var errNoProvider = errors.New("no summary provider configured")

// Summarizer turns posts into short natural-language summaries.
type Summarizer struct {
	provider Provider
}

// NewSummarizer creates a Summarizer. A nil provider is allowed.
func NewSummarizer(p Provider) *Summarizer {
	return &Summarizer{provider: p}
}

// Summarize returns a summary of the post. It never fails: any error is
// logged and rendered into a placeholder starting with FailurePrefix.
func (s *Summarizer) Summarize(ctx context.Context, p models.Post) string {
	out, err := s.generate(ctx, summarySystemPrompt, buildPostPrompt(p))
	if err != nil {
		slog.Error("ai: summary failed", "post_id", p.ID, "err", err)
		return FailurePrefix + err.Error()
	}
	return out
}

// Digest writes a short overview of the given posts.
func (s *Summarizer) Digest(ctx context.Context, posts []models.Post) (string, error) {
	if len(posts) == 0 {
		return "", fmt.Errorf("ai digest: no posts")
	}
	out, err := s.generate(ctx, digestSystemPrompt, buildDigestPrompt(posts))
	if err != nil {
		return "", fmt.Errorf("ai digest: %w", err)
	}
	return out, nil
}

func (s *Summarizer) generate(ctx context.Context, system, user string) (string, error) {
	if s == nil || s.provider == nil {
		return "", errNoProvider
	}
	out, err := s.provider.Generate(ctx, system, user)
	if err != nil {
		return "", err
	}
	out = unquote(strings.TrimSpace(out))
	if out == "" {
		return "", fmt.Errorf("%s: empty response", s.provider.Name())
	}
	return out, nil
}

func buildPostPrompt(p models.Post) string {
	var sb strings.Builder
	sb.WriteString("请对以下推文内容进行摘要分析：\n\n")
	fmt.Fprintf(&sb, "发布者: @%s\n", p.AuthorName())
	fmt.Fprintf(&sb, "推文内容: %s\n", p.Text)
	fmt.Fprintf(&sb, "互动数据: 点赞%d | 转推%d | 回复%d\n", p.Likes, p.Retweets, p.Replies)
	if p.Preview != nil && p.Preview.Title != "" {
		fmt.Fprintf(&sb, "链接标题: %s\n", p.Preview.Title)
		if p.Preview.Description != "" {
			fmt.Fprintf(&sb, "链接描述: %s\n", truncate(p.Preview.Description, 300))
		}
	}
	sb.WriteString("\n请从以下角度生成一个简洁的摘要：\n")
	sb.WriteString("1. 主要内容概括\n2. 情感倾向分析\n3. 可能的话题标签建议\n4. 相关话题热度情况\n\n")
	sb.WriteString("要求：回复内容为纯文本，不超过150字。")
	return sb.String()
}

func buildDigestPrompt(posts []models.Post) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "过去24小时共监控到 %d 条新推文：\n\n", len(posts))
	for i, p := range posts {
		if p.CreatedAtLocal != "" {
			fmt.Fprintf(&sb, "%d. @%s (%s，点赞%d): %s\n", i+1, p.Account, p.CreatedAtLocal, p.Likes, truncate(p.Text, 200))
		} else {
			fmt.Fprintf(&sb, "%d. @%s (点赞%d): %s\n", i+1, p.Account, p.Likes, truncate(p.Text, 200))
		}
	}
	return sb.String()
}

// unquote removes one pair of double quotes wrapping the whole reply.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) &&
		!strings.Contains(s[1:len(s)-1], `"`) {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
