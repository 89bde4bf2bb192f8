package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TICKET_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "*", cfg.Server.CORSAllowedOrigins)
	require.Equal(t, 30, cfg.Debate.TurnSeconds)
	require.Equal(t, 600, cfg.Debate.TotalSeconds)
	require.Equal(t, 60, cfg.Debate.MaxTurns)
	require.Equal(t, 1, cfg.Debate.TopicRefreshLimit)
	require.Equal(t, 3, cfg.Debate.MaxWarnings)
	require.Equal(t, 2000, cfg.Debate.MaxArgumentLength)
	require.Equal(t, time.Minute, cfg.Debate.JudgeTimeout())
	require.False(t, cfg.Debate.FallbackOnOracleErr)
	require.Nil(t, cfg.Debate.BlockedPhrases)
	require.Empty(t, cfg.Oracle.APIKey)
	require.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	require.Equal(t, 6, cfg.Ticket.ExpireHours)
	require.Empty(t, cfg.Database.URL)
	require.Empty(t, cfg.Redis.Addr)
	require.Empty(t, cfg.AWS.ExportsBucket)
	require.Equal(t, 15, cfg.AWS.PresignExpireMinutes)
	require.Empty(t, cfg.AWS.S3Endpoint)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TICKET_SECRET", "s3cret")
	t.Setenv("TURN_SECONDS", "45")
	t.Setenv("MAX_TURNS", "not-a-number")
	t.Setenv("JUDGE_FALLBACK_ON_ORACLE_ERROR", "true")
	t.Setenv("BLOCKED_PHRASES", " spam , ,scam")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("AWS_S3_ENDPOINT", "http://minio:9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 45, cfg.Debate.TurnSeconds)
	require.Equal(t, 60, cfg.Debate.MaxTurns)
	require.True(t, cfg.Debate.FallbackOnOracleErr)
	require.Equal(t, []string{"spam", "scam"}, cfg.Debate.BlockedPhrases)
	require.Equal(t, 2, cfg.Redis.DB)
	require.Equal(t, "http://minio:9000", cfg.AWS.S3Endpoint)

	limits := cfg.Debate.Limits()
	require.Equal(t, 45, limits.TurnSeconds)
	require.Equal(t, 60, limits.MaxTurns)
}

func TestLoadRequiresTicketSecret(t *testing.T) {
	t.Setenv("TICKET_SECRET", "")
	_, err := Load()
	require.ErrorIs(t, err, ErrMissingTicketSecret)
}
