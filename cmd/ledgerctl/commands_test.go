package main

import (
	"bytes"
	"strings"
	"testing"

	"creditbot/config"
	"creditbot/internal/auth"

	"github.com/stretchr/testify/require"
)

func TestParseUserID(t *testing.T) {
	id, err := parseUserID("123")
	require.NoError(t, err)
	require.Equal(t, int64(123), id)

	for _, s := range []string{"", "0", "-4", "abc"} {
		_, err := parseUserID(s)
		require.Error(t, err, s)
	}
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("ADMIN_IDS", "77,88")
	t.Setenv("JWT_ACCESS_SECRET", "test-secret")

	cmd := tokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"88"})
	require.NoError(t, cmd.Execute())

	cfg := config.Load()
	claims, err := auth.ParseAccessToken(&cfg.JWT, strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, int64(88), claims.AdminID)
}

func TestTokenCmd_RejectsNonAdmin(t *testing.T) {
	t.Setenv("ADMIN_IDS", "77")

	cmd := tokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"5"})
	require.Error(t, cmd.Execute())
}
