package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/apacheta/memory"
	"github.com/teranos/yanantin/apacheta/sqlstore"
	"github.com/teranos/yanantin/apacheta/storetest"
	"github.com/teranos/yanantin/display"
)

func defaults(t *testing.T) *am.Config {
	t.Helper()
	cfg, err := am.Defaults()
	require.NoError(t, err)
	return cfg
}

func TestOpenStoreBackends(t *testing.T) {
	cfg := defaults(t)

	cfg.Store.Backend = am.BackendMemory
	store, closeStore, err := openStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, closeStore())

	cfg.Store.Backend = am.BackendSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "nested", "apacheta.db")
	store, closeStore, err = openStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, store)
	storetest.Populate(t, store, storetest.NewFixture())
	require.NoError(t, closeStore())
	_, err = os.Stat(cfg.Store.Path)
	assert.NoError(t, err)

	cfg.Store.Backend = "postgres"
	_, _, err = openStore(cfg)
	assert.Error(t, err)
}

func TestNewRunnerDispatchers(t *testing.T) {
	cfg := defaults(t)
	cfg.Pulse.Dispatchers = map[string]string{"scout": "echo '{}'", "verify": "true"}
	_, err := newRunner(cfg)
	assert.NoError(t, err)

	cfg.Pulse.Dispatchers = map[string]string{"gossip": "true"}
	_, err = newRunner(cfg)
	assert.ErrorContains(t, err, "gossip")

	cfg.Pulse.Dispatchers = map[string]string{"scout": "echo 'unterminated"}
	_, err = newRunner(cfg)
	assert.Error(t, err)
}

func TestAuditConfigCarriesEveryField(t *testing.T) {
	cfg := defaults(t)
	ac := auditConfig(cfg)
	assert.Equal(t, cfg.Audit.Root, ac.Root)
	assert.Equal(t, cfg.Audit.Blueprint, ac.Blueprint)
	assert.Equal(t, cfg.Audit.TestGlob, ac.TestGlob)
	assert.Equal(t, cfg.Audit.ScoutGlob, ac.ScoutGlob)
}

func TestQueryUsageListsParameterisedQueries(t *testing.T) {
	usage := queryUsage()
	assert.Contains(t, usage, "claims_about")
	assert.Contains(t, usage, "<topic>")
	assert.NotContains(t, usage, "project_state")
}

func TestDedupCommand(t *testing.T) {
	t.Setenv(display.CallerEnv, "")
	t.Setenv("CLAUDECODE", "")
	t.Setenv("CURSOR_AGENT", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("same text  \r\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("same text"), 0o644))

	var out bytes.Buffer
	DedupCmd.SetOut(&out)
	require.NoError(t, DedupCmd.RunE(DedupCmd, []string{dir}))
	assert.Contains(t, out.String(), "Total files: 2")
}
