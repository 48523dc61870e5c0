package migrations_test

import (
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/booking-engine/internal/reputation"
	"github.com/hackgods/booking-engine/migrations"
)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	raw, err := fs.ReadFile(migrations.FS, name)
	require.NoError(t, err)
	return string(raw)
}

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	sort.Strings(ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrations.FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestScoreCheckMatchesPolicyRange(t *testing.T) {
	sql := readMigration(t, "000004_reputation.up.sql")

	m := regexp.MustCompile(`CHECK \(score BETWEEN (-?\d+) AND (-?\d+)\)`).FindStringSubmatch(sql)
	require.Len(t, m, 3, "score range check not found")

	lo, err := strconv.Atoi(m[1])
	require.NoError(t, err)
	hi, err := strconv.Atoi(m[2])
	require.NoError(t, err)

	assert.Equal(t, reputation.MinScore, lo)
	assert.Equal(t, reputation.MaxScore, hi)

	def := regexp.MustCompile(`score\s+INTEGER NOT NULL DEFAULT (\d+)`).FindStringSubmatch(sql)
	require.Len(t, def, 2)
	assert.Equal(t, strconv.Itoa(reputation.InitialScore), def[1])
}
