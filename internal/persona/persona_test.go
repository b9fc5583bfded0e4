package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moti-app/moti-proxy/internal/guard"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, DefaultSystem, p.System)
	assert.Equal(t, DefaultNotice, p.Notice)
	require.Len(t, p.Rules, 1)
}

func TestDefaultNoticeMatchesGuard(t *testing.T) {
	assert.Equal(t, guard.DefaultNotice, Default().Notice)
	g := guard.New()
	g.Record("Harika gidiyorsun, devam!")
	reply, repetitive := g.Apply("Harika gidiyorsun, devam!")
	assert.True(t, repetitive)
	assert.Equal(t, "Harika gidiyorsun, devam!"+DefaultNotice, reply)
}

func TestPatchesThanks(t *testing.T) {
	p := Default()
	tests := []struct {
		message string
		want    int
	}{
		{"Çok teşekkür ederim!", 1},
		{"TEŞEKKÜRLER", 1},
		{"sağol Moti", 1},
		{"eyvallah", 1},
		{"Thanks a lot", 1},
		{"Bugün ne çalışalım?", 0},
	}
	for _, tt := range tests {
		got := p.Patches(tt.message)
		require.NotNil(t, got, tt.message)
		if assert.Len(t, got, tt.want, tt.message) && tt.want == 1 {
			assert.Equal(t, Patch{Op: "inc", Path: "/stats/thanks", By: 1}, got[0])
		}
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	p, err := Load("  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystem, p.System)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.yaml")
	doc := `
name: koc
system: "Sen Koç Moti'sin. Kısa cevap ver."
patches:
  - name: greeting
    pattern: "(?i)merhaba"
    path: /stats/greetings
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "koc", p.Name)
	assert.Equal(t, "Sen Koç Moti'sin. Kısa cevap ver.", p.System)
	assert.Equal(t, DefaultNotice, p.Notice)
	assert.Equal(t, []Patch{{Op: "inc", Path: "/stats/greetings", By: 1}}, p.Patches("MERHABA"))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("system: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("patches:\n  - name: bad\n    pattern: \"(\"\n    path: /x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("patches:\n  - name: nopath\n    pattern: x\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
