package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration(t *testing.T) {
	t.Run("defaults_are_filled", func(t *testing.T) {
		require.NotZero(t, C.App.Port)
		assert.Equal(t, 9, C.Platform.LinkedIn.MaxMedia)
		assert.Equal(t, 10, C.Platform.Facebook.MaxMedia)
		assert.Equal(t, 10, C.Platform.Instagram.MaxMedia)
		assert.Equal(t, 30*time.Second, C.Platform.MetadataTimeout())
		assert.Equal(t, 5*time.Minute, C.Platform.UploadTimeout())
		assert.Equal(t, 15*time.Minute, C.Scheduler.MissedGrace())
		assert.NotEmpty(t, C.Database.Vendor)
		assert.NotEmpty(t, C.OAuth.LinkedIn.RedirectURI)
	})

	t.Run("scheduler_location_falls_back_to_utc", func(t *testing.T) {
		s := Scheduler{Timezone: "Nowhere/Invalid"}
		assert.Equal(t, time.UTC, s.Location())
	})
}

func TestGetConfigValue(t *testing.T) {
	t.Setenv("SP_TEST_VALUE", "")
	assert.Equal(t, "from-config", getConfigValue("from-config", "SP_TEST_VALUE", "default"))
	assert.Equal(t, "default", getConfigValue("YOUR_CLIENT_ID", "SP_TEST_VALUE", "default"))

	t.Setenv("SP_TEST_VALUE", "from-env")
	assert.Equal(t, "from-env", getConfigValue("from-config", "SP_TEST_VALUE", "default"))
}

func TestLoadEnvFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SP_ENV_A=alpha\nSP_ENV_B=\"beta\"\n"), 0o600))

	t.Setenv("SP_ENV_B", "kept")
	os.Unsetenv("SP_ENV_A")
	t.Cleanup(func() { os.Unsetenv("SP_ENV_A") })

	LoadEnvFromFile(filepath.Join(dir, "missing.env"), path)

	assert.Equal(t, "alpha", os.Getenv("SP_ENV_A"))
	assert.Equal(t, "kept", os.Getenv("SP_ENV_B"))
}

func TestFillDb(t *testing.T) {
	t.Setenv("SPX_HOST", "db.internal")
	t.Setenv("SPX_PASSWORD", "secret")
	t.Setenv("SPX_NAME", "")

	db := Db{Name: "from-file", Port: "6000"}
	fillDb(&db, "SPX", "localhost", "1433", "sa")

	assert.Equal(t, "from-file", db.Name)
	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, "6000", db.Port)
	assert.Equal(t, "sa", db.User)
	assert.Equal(t, "secret", db.Password)
}
