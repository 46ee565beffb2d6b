package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/recap-cli/pkg/export"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, int32(5), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "missing url", mutate: func(c *Config) { c.URL = "" }, wantErr: "url is required"},
		{name: "min above max", mutate: func(c *Config) { c.MinConns = 10 }, wantErr: "max connections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "postgres://recap@db.internal:5433/meetings?sslmode=require"
	cfg.Password = "s3cret"
	cfg.ConnectTimeout = 3 * time.Second

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "meetings", pc.ConnConfig.Database)
	assert.Equal(t, "s3cret", pc.ConnConfig.Password)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, int32(5), pc.MaxConns)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
}

func TestConfig_PoolConfigRejectsBadURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "postgres://recap@localhost:notaport/recap"

	_, err := cfg.PoolConfig()
	assert.Error(t, err)
}

func TestPoolStatsCollector(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "recap")

	descs := make(chan *prometheus.Desc, 10)
	collector.Describe(descs)
	close(descs)

	var names []string
	for d := range descs {
		names = append(names, d.String())
	}
	require.Len(t, names, 4)
	assert.True(t, strings.Contains(names[0], "recap_db_pool_total_conns"))
	assert.True(t, strings.Contains(names[3], "recap_db_pool_max_conns"))

	metrics := make(chan prometheus.Metric, 10)
	collector.Collect(metrics)
	close(metrics)
	assert.Empty(t, metrics)
}

func TestRegisterPoolStatsCollector_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := RegisterPoolStatsCollector(nil, "recap", reg)
	require.NoError(t, err)
	_, err = RegisterPoolStatsCollector(nil, "recap", reg)
	assert.NoError(t, err)
}

func TestEntryRows(t *testing.T) {
	rows := entryRows(42, []transcript.Entry{
		{Speaker: "Alice", Timestamp: "0:05", Text: "First"},
		{Speaker: "Bob", Timestamp: "", Text: "Second"},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{int64(42), 0, "Alice", "0:05", "First"}, rows[0])
	assert.Equal(t, []interface{}{int64(42), 1, "Bob", "", "Second"}, rows[1])
}

func TestMarshalParticipants(t *testing.T) {
	data, err := marshalParticipants(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = marshalParticipants([]transcript.Participant{
		{Name: "Alice Smith", Role: transcript.RoleOrganizer, Status: transcript.StatusAvailable},
	})
	require.NoError(t, err)

	var back []transcript.Participant
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "Organizer", back[0].Role)
	assert.Equal(t, transcript.StatusAvailable, back[0].Status)
}

func TestExportedAtDefaultsToNow(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, fixed, exportedAt(export.Document{ExportedAt: fixed}))

	before := time.Now().UTC()
	got := exportedAt(export.Document{})
	assert.False(t, got.Before(before))
}
