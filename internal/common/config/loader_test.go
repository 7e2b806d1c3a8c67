package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFileDefaults(t *testing.T) {
	path := writeConfigFile(t, `
app:
  name: investmatch-test
database:
  postgres:
    host: localhost
    user: app
    password: secret
    database: investmatch
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "investmatch-test", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)

	// Store defaults mirror the hosted store's schema and limits.
	assert.Equal(t, 30, cfg.Store.MembershipQueryLimit)
	assert.Equal(t, "businessProposals", cfg.Store.ProposalCollection)
	assert.Equal(t, "investorInterests", cfg.Store.InterestCollection)
	assert.Equal(t, "users", cfg.Store.UserCollection)

	assert.Equal(t, 5, cfg.Matching.DashboardPreviewSize)
	assert.Equal(t, 300, cfg.Directory.CacheTTL)
	assert.Equal(t, "proposals", cfg.Search.Index)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
http:
  address: ":9090"
store:
  membership_query_limit: 10
  proposal_collection: proposals_v2
matching:
  dashboard_preview_size: 3
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, 10, cfg.Store.MembershipQueryLimit)
	assert.Equal(t, "proposals_v2", cfg.Store.ProposalCollection)
	assert.Equal(t, 3, cfg.Matching.DashboardPreviewSize)
}

func TestLoadFromFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "negative membership limit",
			content: `
store:
  membership_query_limit: -1
`,
			wantErr: "membership_query_limit",
		},
		{
			name: "search enabled without addresses",
			content: `
search:
  enabled: true
`,
			wantErr: "search.addresses",
		},
		{
			name: "email enabled without sender",
			content: `
notifications:
  email:
    enabled: true
  aws:
    region: eu-west-1
`,
			wantErr: "from_email",
		},
		{
			name: "notifications without region",
			content: `
notifications:
  sms:
    enabled: true
    amount_threshold: 1000
`,
			wantErr: "aws.region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "app",
		Password: "secret",
		Database: "investmatch",
		SSLMode:  "require",
	}
	dsn := cfg.GetDSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "sslmode=require")
}
