package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optchain/internal/transform"
)

func TestChainPath(t *testing.T) {
	assert.Equal(t, "NIFTY/2024-01-01/W0_ATM.csv", ChainPath("NIFTY", "2024-01-01", transform.ExpiryWeekCurrent, "ATM"))
	assert.Equal(t, "BANKNIFTY/2024-01-01/M1_-2.csv", ChainPath("BANKNIFTY", "2024-01-01", transform.ExpiryMonthNext, "-2"))
}

func TestParseChainFileName(t *testing.T) {
	tests := []struct {
		name   string
		code   transform.ExpiryCode
		offset string
		ok     bool
	}{
		{"W0_ATM.csv", transform.ExpiryWeekCurrent, "ATM", true},
		{"MF_+3.csv", transform.ExpiryFar, "+3", true},
		{"EXP_-1.csv", transform.ExpiryExpired, "-1", true},
		{"XX_ATM.csv", "", "", false},
		{"W0ATM.csv", "", "", false},
		{"W0_.csv", "", "", false},
		{"W0_ATM.txt", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, offset, ok := ParseChainFileName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestDiscovery_ChainFiles(t *testing.T) {
	m, tempDir, _ := setupTestEnv(t)
	d := NewDiscovery(m)

	dir := filepath.Join(tempDir, "NIFTY", "2024-01-01")
	touch(t, filepath.Join(dir, "W0_ATM.csv"))
	touch(t, filepath.Join(dir, "W0_+1.csv"))
	touch(t, filepath.Join(dir, "junk.csv"))

	newer := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "W0_+1.csv"), newer, newer))

	files := d.ChainFiles("NIFTY", "2024-01-01")
	require.Len(t, files, 2)
	assert.Equal(t, "NIFTY/2024-01-01/W0_+1.csv", files[0].Path)
	assert.Equal(t, "+1", files[0].Offset)
	assert.Equal(t, transform.ExpiryWeekCurrent, files[1].ExpiryCode)
	assert.Equal(t, "ATM", files[1].Offset)

	latest, ok := Latest(files)
	require.True(t, ok)
	assert.Equal(t, "W0_+1.csv", latest.Name)

	_, ok = Latest(nil)
	assert.False(t, ok)

	assert.Empty(t, d.ChainFiles("NIFTY", "2099-01-01"))
	assert.Equal(t, []string{"2024-01-01"}, d.Dates("NIFTY"))
}
