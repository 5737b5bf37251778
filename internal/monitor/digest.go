package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
	"github.com/Saul-Punybz/tweetwatch/internal/normalize"
)

const (
	digestWindow   = 24 * time.Hour
	digestMaxPosts = 60
	digestTopPosts = 5
)

// DigestSource reads recently stored posts.
type DigestSource interface {
	ListSince(ctx context.Context, since time.Time) ([]models.Post, error)
	CountByAccount(ctx context.Context, since time.Time) ([]models.AccountCount, error)
}

// DigestWriter turns a list of posts into an overview text.
type DigestWriter interface {
	Digest(ctx context.Context, posts []models.Post) (string, error)
}

// DigestSender delivers a markdown message.
type DigestSender interface {
	Send(ctx context.Context, title, text string) bool
}

// RunDailyDigest sends an overview of the posts stored in the last 24 hours.
// When the writer fails the overview falls back to the most liked posts. It
// returns whether a digest was delivered.
func RunDailyDigest(ctx context.Context, src DigestSource, writer DigestWriter, sender DigestSender) bool {
	slog.Info("daily digest: starting")

	now := time.Now()
	since := now.Add(-digestWindow)

	posts, err := src.ListSince(ctx, since)
	if err != nil {
		slog.Error("daily digest: list posts", "err", err)
		return false
	}
	if len(posts) == 0 {
		slog.Info("daily digest: no posts in the last 24 hours, skipping")
		return false
	}

	counts, err := src.CountByAccount(ctx, since)
	if err != nil {
		slog.Warn("daily digest: count by account", "err", err)
		counts = countPosts(posts)
	}

	recent := posts
	if len(recent) > digestMaxPosts {
		recent = recent[len(recent)-digestMaxPosts:]
	}

	overview, err := writer.Digest(ctx, recent)
	if err != nil {
		slog.Warn("daily digest: overview failed, using top posts", "err", err)
		overview = ""
	}

	title, text := formatDigest(now, len(posts), counts, overview, topPosts(posts, digestTopPosts))
	ok := sender.Send(ctx, title, text)
	slog.Info("daily digest: complete", "posts", len(posts), "accounts", len(counts), "sent", ok)
	return ok
}

func countPosts(posts []models.Post) []models.AccountCount {
	byAccount := map[string]int{}
	for _, p := range posts {
		byAccount[p.Account]++
	}
	counts := make([]models.AccountCount, 0, len(byAccount))
	for account, n := range byAccount {
		counts = append(counts, models.AccountCount{Account: account, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Account < counts[j].Account
	})
	return counts
}

func topPosts(posts []models.Post, n int) []models.Post {
	sorted := append([]models.Post(nil), posts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Likes > sorted[j].Likes
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func formatDigest(now time.Time, total int, counts []models.AccountCount, overview string, top []models.Post) (string, string) {
	title := "📊 每日推文监控简报"

	var sb strings.Builder
	sb.WriteString("## 📊 每日推文监控简报\n\n")
	fmt.Fprintf(&sb, "**🕐 截至:** %s (北京时间)  \n", now.In(normalize.LocalZone).Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "**📝 过去24小时新推文:** %d 条  \n\n", total)

	for _, c := range counts {
		fmt.Fprintf(&sb, "- @%s: %d 条  \n", c.Account, c.Count)
	}
	sb.WriteString("\n")

	if overview != "" {
		fmt.Fprintf(&sb, "**🤖 AI综述:**  \n%s  \n\n", overview)
	}

	if len(top) > 0 {
		sb.WriteString("**🔥 热门推文:**  \n")
		for i, p := range top {
			text := []rune(strings.ReplaceAll(p.Text, "\n", " "))
			if len(text) > 60 {
				text = append(text[:60], []rune("...")...)
			}
			fmt.Fprintf(&sb, "%d. @%s (👍 %d): [%s](%s)  \n", i+1, p.Account, p.Likes, string(text), p.URL)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---\n*来自 Twitter 实时监控机器人*")
	return title, sb.String()
}
