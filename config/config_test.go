package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloReca/busca-pisos/internal/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Empty(t, cfg.Server.StaticDir)
	assert.Equal(t, 10, cfg.Source.MaxPages)
	assert.Equal(t, 300.0, cfg.Refresh.MinPrice)
	assert.Equal(t, 700.0, cfg.Refresh.NotificationMaxPrice)
	assert.Equal(t, []models.Category{models.CategoryApartment, models.CategoryHouse}, cfg.Categories())
	assert.False(t, cfg.TelegramConfig().IsEnabled)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROPERTY_TYPES", "house")
	t.Setenv("MIN_PRICE", "450")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []models.Category{models.CategoryHouse}, cfg.Categories())
	assert.Equal(t, 450.0, cfg.Refresh.MinPrice)
	assert.True(t, cfg.TelegramConfig().IsEnabled)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "Unknown property type", key: "PROPERTY_TYPES", val: "castle"},
		{name: "Zero page cap", key: "SOURCE_MAX_PAGES", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFICATION_MAX_PRICE=650\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("NOTIFICATION_MAX_PRICE") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 650.0, cfg.Refresh.NotificationMaxPrice)
}

func TestDefaultSearchProfile(t *testing.T) {
	p := DefaultSearchProfile(42.2313601, -8.7124252)

	q := p.QueryFor("apartment")
	assert.Equal(t, "apartment", q.Get("type"))
	assert.Equal(t, "rent", q.Get("operation"))
	assert.Equal(t, "42.2313601", q.Get("latitude"))
	assert.Equal(t, "-8.7124252", q.Get("longitude"))
	assert.Contains(t, p.TemporaryRentalKeywords, "noches")

	// Profiles must not share state with the package defaults.
	p.BaseParams["rooms"] = "5"
	assert.Equal(t, "2", DefaultSearchProfile(0, 0).BaseParams["rooms"])
}

func TestLoadSearchProfileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	content := `
temporary_rental_keywords = ["verano"]

[base_params]
rooms = "3"

[headers]
User-Agent = "busca-pisos-test"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := LoadSearchProfile(path, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, "3", p.BaseParams["rooms"])
	assert.Equal(t, "rent", p.BaseParams["operation"])
	assert.Equal(t, "busca-pisos-test", p.Headers["User-Agent"])
	assert.Equal(t, []string{"verano"}, p.TemporaryRentalKeywords)
}

func TestSearchProfileDeviceIdentifiers(t *testing.T) {
	defaults := DefaultSearchProfile(0, 0)
	assert.NotContains(t, defaults.Headers, "mpid")
	assert.NotContains(t, defaults.Headers, "x-deviceid")

	path := filepath.Join(t.TempDir(), "profile.toml")
	content := `
[headers]
mpid = "-1520850128514526382"
x-deviceid = "bcd07545-c84f-48b4-9117-f1374c3f39a5"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := LoadSearchProfile(path, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "-1520850128514526382", p.Headers["mpid"])
	assert.Equal(t, "bcd07545-c84f-48b4-9117-f1374c3f39a5", p.Headers["x-deviceid"])
	assert.Equal(t, defaults.Headers["User-Agent"], p.Headers["User-Agent"])
}

func TestLoadSearchProfileMissingFile(t *testing.T) {
	_, err := LoadSearchProfile(filepath.Join(t.TempDir(), "nope.toml"), 0, 0)
	assert.Error(t, err)
}
