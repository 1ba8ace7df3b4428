package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bdobrica/Hanashi/common/retry"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// postJSON sends in as a JSON body and decodes the response into out.
// Transient failures are retried according to policy; non-2xx statuses and
// decode failures are wrapped with ErrAI.
func postJSON(ctx context.Context, client *http.Client, policy retry.Policy, url string, header http.Header, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, err = retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return struct{}{}, retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: http request: %v", ErrAI, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: read response: %v", ErrAI, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := fmt.Errorf("%w: status %d: %s", ErrAI, resp.StatusCode, truncate(body, maxErrorBody))
			if retry.RetryableStatus(resp.StatusCode) {
				return struct{}{}, statusErr
			}
			return struct{}{}, retry.Permanent(statusErr)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("%w: decode response: %v", ErrAI, err))
		}
		return struct{}{}, nil
	})
	return err
}

// getBytes downloads url and returns its body.
func getBytes(ctx context.Context, client *http.Client, policy retry.Policy, url string) ([]byte, error) {
	return retry.Do(ctx, policy, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: download: %v", ErrAI, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read download: %v", ErrAI, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := fmt.Errorf("%w: download status %d", ErrAI, resp.StatusCode)
			if retry.RetryableStatus(resp.StatusCode) {
				return nil, statusErr
			}
			return nil, retry.Permanent(statusErr)
		}
		return body, nil
	})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
