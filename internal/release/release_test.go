package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rig/internal/logger"
	"rig/internal/rigerr"
)

func serve(t *testing.T, status int, body string) (*Resolver, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/repos/IntegerAlex/rig/releases/latest", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewResolver("", srv.URL, logger.Discard()), &hits
}

func TestResolveListedAsset(t *testing.T) {
	r, hits := serve(t, http.StatusOK, `{
		"tag_name": "v0.1.2",
		"assets": [
			{"name": "rig-linux-amd64.sha256", "browser_download_url": "https://dl/sum"},
			{"name": "rig-linux-arm64", "browser_download_url": "https://dl/arm"},
			{"name": "rig-linux-amd64.tar.gz", "browser_download_url": "https://dl/amd.tgz"},
			{"name": "rig-linux-amd64", "browser_download_url": "https://dl/amd"}
		]}`)

	d, err := r.Resolve(context.Background(), "linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, 1, *hits)
	assert.Equal(t, "v0.1.2", d.Tag)
	assert.Equal(t, "0.1.2", d.Version.String())
	assert.Equal(t, "rig-linux-amd64", d.AssetName)
	assert.Equal(t, "https://dl/amd", d.URL)
}

func TestResolveConventionalURL(t *testing.T) {
	r, _ := serve(t, http.StatusOK, `{"tag_name": "v0.2.0", "assets": []}`)

	d, err := r.Resolve(context.Background(), "linux", "arm64")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/IntegerAlex/rig/releases/download/v0.2.0/rig-linux-arm64", d.URL)
}

func TestResolveFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		is     error
	}{
		{"body without tag field", http.StatusOK, `{"name": "latest", "assets": []}`, ErrMissingTag},
		{"empty body", http.StatusOK, ``, nil},
		{"not json", http.StatusOK, `<html>rate limited</html>`, nil},
		{"tag is not a version", http.StatusOK, `{"tag_name": "nightly"}`, ErrInvalidTag},
		{"not found", http.StatusNotFound, `{"message": "Not Found"}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, hits := serve(t, tc.status, tc.body)
			_, err := r.Resolve(context.Background(), "linux", "amd64")
			require.Error(t, err)
			assert.Equal(t, rigerr.ResolutionFailed, rigerr.KindOf(err))
			assert.NotEmpty(t, rigerr.SuggestionOf(err))
			assert.Equal(t, 1, *hits, "no retry at the resolution layer")
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestResolveMissingTagSuggestsConnectivity(t *testing.T) {
	r, _ := serve(t, http.StatusOK, `{}`)
	_, err := r.Resolve(context.Background(), "linux", "amd64")
	assert.Contains(t, rigerr.SuggestionOf(err), "internet connection")
}

func TestSelectAsset(t *testing.T) {
	assets := []Asset{
		{Name: "rig_0.1.2_linux_x86_64.tar.xz"},
		{Name: "rig_0.1.2_linux_x86_64.zip"},
		{Name: "rig_0.1.2_darwin_arm64.tar.gz"},
		{Name: "rig_0.1.2_linux_aarch64.7z"},
		{Name: "rig_0.1.2_linux_amd64.deb"},
	}

	a, ok := SelectAsset(assets, "linux", "amd64")
	require.True(t, ok)
	assert.Equal(t, "rig_0.1.2_linux_x86_64.tar.xz", a.Name)

	a, ok = SelectAsset(assets, "linux", "arm64")
	require.True(t, ok)
	assert.Equal(t, "rig_0.1.2_linux_aarch64.7z", a.Name)

	_, ok = SelectAsset(assets, "linux", "riscv64")
	assert.False(t, ok)
}
