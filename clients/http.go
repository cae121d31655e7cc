package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	xerrors "github.com/soratv/vod-api/errors"
	"github.com/soratv/vod-api/progress"
)

var retryableHttpClient = newRetryableHttpClient()

func newRetryableHttpClient() *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient = &http.Client{
		Timeout: 10 * time.Minute,
	}
	client.Logger = nil
	// Hand back the last response after retries run out so callers can map
	// the status code instead of seeing a generic "giving up" error.
	client.ErrorHandler = func(resp *http.Response, err error, numTries int) (*http.Response, error) {
		if resp != nil {
			return resp, nil
		}
		return resp, err
	}
	return client.StandardClient()
}

// FetchText GETs the given (usually signed) URL and returns the body as a
// string. Any non-2xx response is an unretriable error; the playlist proxy
// treats those as the object not existing.
func FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating http request: %w", err)
	}
	resp, err := retryableHttpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", xerrors.Unretriable(fmt.Errorf("bad status code fetching %s: %d %s", url, resp.StatusCode, resp.Status))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	return string(body), nil
}

// DownloadFile streams the given (usually signed) URL into localPath,
// logging periodic progress for large files. Non-2xx responses are fatal;
// the worker treats them as job failures.
func DownloadFile(ctx context.Context, requestID, url, localPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating http request: %w", err)
	}
	resp, err := retryableHttpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		err := fmt.Errorf("download source failed: %d %s", resp.StatusCode, resp.Status)
		if resp.StatusCode < 500 {
			err = xerrors.Unretriable(err)
		}
		return 0, err
	}

	f, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer f.Close()

	counter := progress.NewReadCounter(resp.Body)
	if resp.ContentLength > 0 {
		reportCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go progress.ReportDownloadProgress(reportCtx, requestID, uint64(resp.ContentLength), counter.Count)
	}

	written, err := io.Copy(f, counter)
	if err != nil {
		return written, fmt.Errorf("failed to write local file %s: %w", localPath, err)
	}
	return written, nil
}
