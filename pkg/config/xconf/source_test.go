package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientSection struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	Retries int           `koanf:"retries"`
}

type appConfig struct {
	Client clientSection `koanf:"client"`
	Log    struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

const sampleYAML = `
client:
  base_url: http://127.0.0.1:8080
  timeout: 5s
  retries: 2
log:
  level: info
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_YAML(t *testing.T) {
	src, err := New(writeFile(t, "xadmin.yaml", sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, src.Format())
	assert.NotEmpty(t, src.Path())

	var cfg appConfig
	require.NoError(t, src.Unmarshal("", &cfg))
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Client.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 2, cfg.Client.Retries)
	assert.Equal(t, "info", cfg.Log.Level)

	var section clientSection
	require.NoError(t, src.Unmarshal("client", &section))
	assert.Equal(t, 2, section.Retries)
}

func TestNew_JSON(t *testing.T) {
	src, err := New(writeFile(t, "xadmin.json", `{"client":{"base_url":"http://a"}}`))
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, src.Format())
	assert.Equal(t, "http://a", src.Koanf().String("client.base_url"))
}

func TestNew_Errors(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = New("xadmin.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	_, err = New(writeFile(t, "bad.json", `{"client":`))
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestNewFromBytes(t *testing.T) {
	src, err := NewFromBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, src.Path())
	assert.Equal(t, "info", src.Koanf().String("log.level"))
	assert.ErrorIs(t, src.Reload(), ErrNotFileBacked)

	empty, err := NewFromBytes(nil, FormatJSON)
	require.NoError(t, err)
	var cfg appConfig
	require.NoError(t, empty.Unmarshal("", &cfg))
	assert.Empty(t, cfg.Client.BaseURL)

	_, err = NewFromBytes(nil, Format("ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestUnmarshal_TypeMismatch(t *testing.T) {
	src, err := NewFromBytes([]byte(`client: {retries: many}`), FormatYAML)
	require.NoError(t, err)
	var cfg appConfig
	assert.ErrorIs(t, src.Unmarshal("", &cfg), ErrUnmarshalFailed)
}

func TestReload_KeepsSnapshotOnFailure(t *testing.T) {
	path := writeFile(t, "xadmin.yaml", sampleYAML)
	src, err := New(path)
	require.NoError(t, err)
	old := src.Koanf()

	require.NoError(t, os.WriteFile(path, []byte("client: [oops"), 0o600))
	assert.ErrorIs(t, src.Reload(), ErrParseFailed)
	assert.Same(t, old, src.Koanf())

	require.NoError(t, os.WriteFile(path, []byte("client:\n  retries: 9\n"), 0o600))
	require.NoError(t, src.Reload())
	assert.Equal(t, 9, src.Koanf().Int("client.retries"))
	assert.Equal(t, 2, old.Int("client.retries"))
}

func TestEnvOverlay(t *testing.T) {
	env := func() []string {
		return []string{
			"XADMIN_CLIENT__BASE_URL=http://env",
			"XADMIN_LOG__LEVEL=debug",
			"XADMIN___=ignored",
			"OTHER_CLIENT__RETRIES=7",
			"malformed",
		}
	}
	src, err := NewFromBytes([]byte(sampleYAML), FormatYAML,
		WithEnvPrefix("XADMIN_"), withEnviron(env))
	require.NoError(t, err)

	var cfg appConfig
	require.NoError(t, src.Unmarshal("", &cfg))
	assert.Equal(t, "http://env", cfg.Client.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Client.Retries)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
}

func TestEnvOverlay_AppliedOnReload(t *testing.T) {
	path := writeFile(t, "xadmin.yaml", sampleYAML)
	env := func() []string { return []string{"XADMIN_CLIENT__RETRIES=4"} }
	src, err := New(path, WithEnvPrefix("XADMIN_"), withEnviron(env))
	require.NoError(t, err)
	assert.Equal(t, 4, src.Koanf().Int("client.retries"))

	require.NoError(t, os.WriteFile(path, []byte("client:\n  retries: 1\n"), 0o600))
	require.NoError(t, src.Reload())
	assert.Equal(t, 4, src.Koanf().Int("client.retries"))
}

func TestOptions(t *testing.T) {
	src, err := NewFromBytes([]byte(`{"client":{"base_url":"http://x"}}`), FormatJSON,
		WithDelim("/"), WithTag("json"), WithDelim(""), WithTag(""))
	require.NoError(t, err)
	assert.Equal(t, "http://x", src.Koanf().String("client/base_url"))

	var out struct {
		Client struct {
			BaseURL string `json:"base_url"`
		} `json:"client"`
	}
	require.NoError(t, src.Unmarshal("", &out))
	assert.Equal(t, "http://x", out.Client.BaseURL)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "client.base_url", envKey("CLIENT__BASE_URL", "."))
	assert.Equal(t, "health/window", envKey("HEALTH__WINDOW", "/"))
	assert.Empty(t, envKey("__", "."))
}
