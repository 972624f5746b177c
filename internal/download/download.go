// Package download fetches release assets with bounded retries.
// Every attempt either commits a complete file or leaves nothing behind.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"rig/internal/logger"
	"rig/internal/retry"
	"rig/internal/rigerr"
)

var (
	// ErrMalformedURL is returned without retrying when the URL cannot be fetched at all.
	ErrMalformedURL = errors.New("malformed download URL")
	// ErrNetworkUnreachable is returned after the last attempt failed on the network.
	ErrNetworkUnreachable = errors.New("network unreachable")
	// ErrAssetNotFound is returned after the last attempt got 404/410 from the server.
	ErrAssetNotFound = errors.New("remote asset not found")
	// ErrLocalIO is returned without retrying when the download cannot be written to disk.
	ErrLocalIO = errors.New("cannot write download")
)

// attemptError carries the failure class of a single attempt.
type attemptError struct {
	class error
	err   error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// Downloader fetches URLs into a directory using a retry policy.
type Downloader struct {
	Client *http.Client
	Policy retry.Policy
	Log    *logger.FileLog

	// ReleasesPage is shown to the user when the asset does not exist.
	ReleasesPage string
}

// New returns a Downloader using the default client and retry policy.
func New(log *logger.FileLog, releasesPage string) *Downloader {
	return &Downloader{Client: http.DefaultClient, Policy: retry.Default, Log: log, ReleasesPage: releasesPage}
}

// Fetch downloads rawURL into dir and returns the path of the complete file.
// Redirects are followed; an HTTP failure status is a failed attempt.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	name, err := fileName(rawURL)
	if err != nil {
		d.Log.Errorf("download rejected: %v", err)
		return "", rigerr.New(rigerr.DownloadFailed, "download "+rawURL, err,
			"The download URL is invalid; report this at "+d.ReleasesPage)
	}
	dest := filepath.Join(dir, name)
	attempts := d.Policy.Attempts
	if attempts <= 0 {
		attempts = retry.DefaultAttempts
	}

	var lastClass error
	err = d.Policy.Do(ctx, func(ctx context.Context, attempt int) error {
		d.Log.Infof("download attempt %d/%d: %s", attempt, attempts, rawURL)
		logger.Debug("[DEBUG] Download attempt %d/%d: %s\n", attempt, attempts, rawURL)

		aerr := d.attempt(ctx, rawURL, dest)
		if aerr == nil {
			d.Log.Infof("download attempt %d/%d succeeded: %s", attempt, attempts, dest)
			return nil
		}
		d.Log.Warnf("download attempt %d/%d failed: %v", attempt, attempts, aerr)
		lastClass = nil
		var ae *attemptError
		if errors.As(aerr, &ae) {
			lastClass = ae.class
		}
		return aerr
	})
	if err == nil {
		return dest, nil
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "", rigerr.New(rigerr.DownloadFailed, "download "+rawURL, err,
			"The download was interrupted; run the installer again to resume.")
	case errors.Is(lastClass, ErrLocalIO):
		return "", rigerr.New(rigerr.DownloadFailed, "download "+rawURL, errors.Join(ErrLocalIO, err),
			fmt.Sprintf("Check free disk space and write permissions of %s.", dir))
	case errors.Is(lastClass, ErrAssetNotFound):
		return "", rigerr.New(rigerr.DownloadFailed, "download "+rawURL, errors.Join(ErrAssetNotFound, err),
			"The release asset does not exist. Check available releases at "+d.ReleasesPage)
	default:
		return "", rigerr.New(rigerr.DownloadFailed, "download "+rawURL, errors.Join(ErrNetworkUnreachable, err),
			"Check your internet connection and try again.")
	}
}

// attempt performs one GET into a temp file next to dest and renames it on success.
func (d *Downloader) attempt(ctx context.Context, rawURL, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return retry.Abort(fmt.Errorf("%w: %v", ErrMalformedURL, err))
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &attemptError{class: ErrNetworkUnreachable, err: fmt.Errorf("failed to GET %s: %w", rawURL, err)}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close response body: %v\n", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &attemptError{class: ErrAssetNotFound, err: fmt.Errorf("http %d for %s", resp.StatusCode, rawURL)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &attemptError{class: ErrNetworkUnreachable, err: fmt.Errorf("http %d for %s", resp.StatusCode, rawURL)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return retry.Abort(&attemptError{class: ErrLocalIO, err: fmt.Errorf("failed to create temp file: %w", err)})
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			if rerr := os.Remove(tmp.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				logger.Warn("[WARN] Failed to remove broken download at %s: %v\n", tmp.Name(), rerr)
			}
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		var pe *os.PathError
		if errors.As(err, &pe) {
			return retry.Abort(&attemptError{class: ErrLocalIO, err: fmt.Errorf("failed to write %s: %w", tmp.Name(), err)})
		}
		return &attemptError{class: ErrNetworkUnreachable, err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		err = fmt.Errorf("short download: got %d of %d bytes", n, resp.ContentLength)
		return &attemptError{class: ErrNetworkUnreachable, err: err}
	}
	if err = tmp.Close(); err != nil {
		return retry.Abort(&attemptError{class: ErrLocalIO, err: fmt.Errorf("failed to close %s: %w", tmp.Name(), err)})
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return retry.Abort(&attemptError{class: ErrLocalIO, err: fmt.Errorf("failed to commit download: %w", err)})
	}
	return nil
}

// fileName validates rawURL and derives the local file name from its last path element.
func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedURL, rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: no file name in %q", ErrMalformedURL, rawURL)
	}
	return name, nil
}
