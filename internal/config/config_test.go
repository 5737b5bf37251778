package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Saul-Punybz/tweetwatch/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TWITTER_API_KEY", "tw-key")
	t.Setenv("DINGTALK_ACCESS_TOKEN", "dt-token")
}

func TestLoadWorkerDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("TARGET_USERS", "")
	t.Setenv("MONITOR_INTERVAL", "")
	t.Setenv("MAX_TWEETS_PER_REQUEST", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_BASE_URL", "")
	t.Setenv("AI_MODEL", "")
	t.Setenv("DINGTALK_SECRET", "")
	t.Setenv("POST_PAUSE", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, []string{"whyyoutouzhele"}, cfg.Monitor.Accounts)
	require.Equal(t, 300*time.Second, cfg.Monitor.Interval)
	require.Equal(t, 5, cfg.Monitor.Limit)
	require.Equal(t, 2*time.Second, cfg.Monitor.PostPause)
	require.Equal(t, "https://api.twitterapi.io", cfg.Twitter.BaseURL)
	require.Equal(t, config.ProviderDashScope, cfg.AI.Provider)
	require.Equal(t, "qwen-plus", cfg.AI.Model)
	require.Contains(t, cfg.AI.BaseURL, "dashscope")
	require.Equal(t, "https://oapi.dingtalk.com/robot/send", cfg.DingTalk.WebhookURL)
	require.Empty(t, cfg.DingTalk.Secret)
	require.False(t, cfg.Features.LinkPreview)
}

func TestLoadWorkerOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TARGET_USERS", " @alice, bob ,,carol ")
	t.Setenv("MONITOR_INTERVAL", "60")
	t.Setenv("MAX_TWEETS_PER_REQUEST", "10")
	t.Setenv("POST_PAUSE", "500ms")
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("AI_BASE_URL", "")
	t.Setenv("DASHSCOPE_API_KEY", "ds-key")
	t.Setenv("DINGTALK_AT_MOBILES", "13800000000, 13900000000")
	t.Setenv("DINGTALK_AT_ALL", "true")
	t.Setenv("LINK_PREVIEW_ENABLED", "true")
	t.Setenv("DIGEST_CRON", "0 9 * * *")
	t.Setenv("DB_PORT", "6543")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, []string{"alice", "bob", "carol"}, cfg.Monitor.Accounts)
	require.Equal(t, time.Minute, cfg.Monitor.Interval)
	require.Equal(t, 10, cfg.Monitor.Limit)
	require.Equal(t, 500*time.Millisecond, cfg.Monitor.PostPause)
	require.Equal(t, config.ProviderOpenAI, cfg.AI.Provider)
	require.Equal(t, "https://api.openai.com/v1", cfg.AI.BaseURL)
	require.Equal(t, "ds-key", cfg.AI.APIKey)
	require.Equal(t, []string{"13800000000", "13900000000"}, cfg.DingTalk.AtMobiles)
	require.True(t, cfg.DingTalk.AtAll)
	require.True(t, cfg.Features.LinkPreview)
	require.Equal(t, "0 9 * * *", cfg.Features.DigestCron)
	require.Equal(t, 6543, cfg.DB.Port)
}

func TestLoadWorkerMissingMandatory(t *testing.T) {
	t.Setenv("TWITTER_API_KEY", "")
	t.Setenv("DINGTALK_ACCESS_TOKEN", "dt-token")
	_, err := config.LoadWorker()
	require.ErrorContains(t, err, "TWITTER_API_KEY")

	t.Setenv("TWITTER_API_KEY", "tw-key")
	t.Setenv("DINGTALK_ACCESS_TOKEN", "")
	_, err = config.LoadWorker()
	require.ErrorContains(t, err, "DINGTALK_ACCESS_TOKEN")
}

func TestLoadWorkerRejectsBadValues(t *testing.T) {
	setRequired(t)

	t.Setenv("TARGET_USERS", " , @ ")
	_, err := config.LoadWorker()
	require.ErrorContains(t, err, "TARGET_USERS")

	t.Setenv("TARGET_USERS", "alice")
	t.Setenv("MONITOR_INTERVAL", "0")
	_, err = config.LoadWorker()
	require.ErrorContains(t, err, "MONITOR_INTERVAL")

	t.Setenv("MONITOR_INTERVAL", "30")
	t.Setenv("AI_PROVIDER", "gemini")
	_, err = config.LoadWorker()
	require.ErrorContains(t, err, "AI_PROVIDER")
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_TOKEN_HASH", "")
	_, err := config.LoadAPI()
	require.Error(t, err)

	t.Setenv("API_TOKEN_HASH", "$2a$10$abc")
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
}

func TestDBConfigDSN(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "u", Pass: "p", DBName: "tw", SSLMode: "disable", MaxConns: 4}
	require.Equal(t, "postgres://u:p@db:5432/tw?sslmode=disable&pool_max_conns=4", c.DSN())
}
