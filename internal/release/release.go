package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"rig/internal/logger"
	"rig/internal/rigerr"
)

const (
	// DefaultRepo is the GitHub repository rig is released from.
	DefaultRepo = "IntegerAlex/rig"
	// DefaultAPIBase is the GitHub REST API root.
	DefaultAPIBase = "https://api.github.com"

	timeOut = 10 * time.Second
)

var (
	// ErrMissingTag is returned when the release metadata has no tag_name.
	ErrMissingTag = errors.New("release metadata has no tag_name")
	// ErrInvalidTag is returned when tag_name is not a version.
	ErrInvalidTag = errors.New("release tag is not a version")
)

// GitHubRelease is the subset of the GitHub release JSON rig depends on.
type GitHubRelease struct {
	TagName string  `json:"tag_name"` // The release tag (e.g., v0.1.2)
	HTMLURL string  `json:"html_url"` // Release page, shown when an asset is missing
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable file of a release.
type Asset struct {
	Name               string `json:"name"`                 // Asset filename
	BrowserDownloadURL string `json:"browser_download_url"` // Direct download URL for the asset
}

// Descriptor is the resolved latest release: which tag and where to download it from.
// It is immutable once returned and is used for exactly one download retry cycle.
type Descriptor struct {
	Tag       string
	Version   *version.Version
	AssetName string
	URL       string
}

// Resolver queries the release metadata endpoint.
type Resolver struct {
	Client  *http.Client
	APIBase string
	Repo    string
	Log     *logger.FileLog
}

// NewResolver returns a Resolver with the default endpoint and a client with a timeout.
func NewResolver(repo, apiBase string, log *logger.FileLog) *Resolver {
	if repo == "" {
		repo = DefaultRepo
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Resolver{
		Client:  &http.Client{Timeout: timeOut},
		APIBase: strings.TrimRight(apiBase, "/"),
		Repo:    repo,
		Log:     log,
	}
}

// ReleasesPage is the human-facing list of releases, printed when an asset is not found.
func (r *Resolver) ReleasesPage() string {
	return fmt.Sprintf("https://github.com/%s/releases", r.Repo)
}

// Resolve fetches the latest release once and picks the asset for goos/goarch.
// Every failure is classified as ResolutionFailed; there is no retry at this layer.
func (r *Resolver) Resolve(ctx context.Context, goos, goarch string) (Descriptor, error) {
	rel, err := r.latest(ctx)
	if err != nil {
		r.Log.Errorf("release resolution failed for %s: %v", r.Repo, err)
		return Descriptor{}, rigerr.New(rigerr.ResolutionFailed, "resolve latest release", err,
			"Check your internet connection and try again: could not reach "+r.APIBase)
	}

	v, err := version.NewVersion(strings.TrimPrefix(rel.TagName, "v"))
	if err != nil {
		r.Log.Errorf("release tag %q is not a version: %v", rel.TagName, err)
		return Descriptor{}, rigerr.New(rigerr.ResolutionFailed, "resolve latest release",
			fmt.Errorf("%w: %q", ErrInvalidTag, rel.TagName), "Check available releases at "+r.ReleasesPage())
	}

	d := Descriptor{Tag: rel.TagName, Version: v}
	if a, ok := SelectAsset(rel.Assets, goos, goarch); ok {
		d.AssetName, d.URL = a.Name, a.BrowserDownloadURL
	} else {
		d.AssetName = fmt.Sprintf("rig-%s-%s", goos, goarch)
		d.URL = fmt.Sprintf("https://github.com/%s/releases/download/%s/%s", r.Repo, rel.TagName, d.AssetName)
		logger.Debug("[DEBUG] No listed asset for %s/%s, using conventional URL %s\n", goos, goarch, d.URL)
	}
	r.Log.Infof("resolved %s %s -> %s", r.Repo, d.Tag, d.URL)
	return d, nil
}

func (r *Resolver) latest(ctx context.Context) (GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", r.APIBase, r.Repo)
	logger.Debug("[DEBUG] Fetching GitHub release from URL: %s\n", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return GitHubRelease{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return GitHubRelease{}, fmt.Errorf("HTTP GET error fetching %s: %w", url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return GitHubRelease{}, fmt.Errorf("backend returned http %d for %s", resp.StatusCode, url)
	}

	var rel GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return GitHubRelease{}, fmt.Errorf("failed to decode release JSON: %w", err)
	}
	if strings.TrimSpace(rel.TagName) == "" {
		return GitHubRelease{}, ErrMissingTag
	}
	logger.Debug("[DEBUG] Release tag: %s with %d assets\n", rel.TagName, len(rel.Assets))
	return rel, nil
}
