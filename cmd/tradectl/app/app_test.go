package app

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)

	cmd := NewTradeCtlCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(append(args,
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--log.output-paths", filepath.Join(t.TempDir(), "tradectl.log"),
	))

	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "", "config", "--resilience.platform=mobile")
	require.NoError(t, err)
	assert.Contains(t, out, "resilience.platform")
	assert.Contains(t, out, "mobile")
	assert.Contains(t, out, "3s", "mobile auto retry threshold")
	assert.Contains(t, out, "15s", "mobile request timeout")
}

func TestConfigCommand_UnknownPlatform(t *testing.T) {
	_, err := execute(t, "", "config", "--resilience.platform=tv")
	assert.Error(t, err)
}

func TestLoginAndGet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/token/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"username":"trader","password":"pw"}`, string(body))
		_, _ = w.Write([]byte(`{"access":"a1","refresh":"r1"}`))
	})
	mux.HandleFunc("/api/markets/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"markets":["AAPL"]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sessionFile := filepath.Join(t.TempDir(), "session.bin")
	common := []string{
		"--api.base-url", srv.URL,
		"--token-store.file.path", sessionFile,
		"--token-store.file.passphrase", "test-passphrase",
	}

	out, err := execute(t, "pw\n", append([]string{"login", "-u", "trader"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as trader")
	assert.FileExists(t, sessionFile)

	out, err = execute(t, "", append([]string{"get", "/api/markets/"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"markets": [`)

	out, err = execute(t, "", append([]string{"logout"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
}

func TestPostRejectsInvalidJSON(t *testing.T) {
	_, err := execute(t, "", "post", "/api/orders/", "--data", "{not json", "--token-store.type", "memory")
	assert.EqualError(t, err, "--data must be valid JSON")
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "plain text", prettyJSON([]byte("plain text")))
	assert.Equal(t, "", prettyJSON(nil))
	assert.Equal(t, "{\n  \"a\": 1\n}", prettyJSON([]byte(`{"a":1}`)))
}
