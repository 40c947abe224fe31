package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

func newGet(ctx context.Context, urlStr string, params map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		vals := make(url.Values)
		for k, v := range params {
			vals.Set(k, v)
		}
		req.URL.RawQuery = vals.Encode()
	}
	return req, nil
}

/**
 *	从远端获取一个文件的内容
 */
func GetBytes(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	req, err := newGet(ctx, urlStr, params)
	if err != nil {
		return nil, fmt.Errorf("GetBytes: %w", err)
	}
	rsp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetBytes: %w", err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(rsp.Body, 4096))
		return nil, &HTTPStatusError{URL: urlStr, Code: rsp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(rsp.Body)
}

/**
 *	从远端下载文件保存到 savePath
 */
func GetFile(ctx context.Context, urlStr string, params map[string]string, savePath string) error {
	req, err := newGet(ctx, urlStr, params)
	if err != nil {
		return fmt.Errorf("GetFile('%s'): %w", urlStr, err)
	}
	rsp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GetFile('%s'): %w", urlStr, err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(rsp.Body, 4096))
		return &HTTPStatusError{URL: urlStr, Code: rsp.StatusCode, Body: string(body)}
	}

	if err = os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return fmt.Errorf("GetFile('%s'): MkdirAll('%s'): %w", urlStr, savePath, err)
	}
	out, err := os.Create(savePath)
	if err != nil {
		return fmt.Errorf("GetFile('%s'): create('%s'): %w", urlStr, savePath, err)
	}
	defer out.Close()
	if _, err = io.Copy(out, rsp.Body); err != nil {
		return fmt.Errorf("GetFile('%s'): copy: %w", urlStr, err)
	}
	return nil
}

// HTTPStatusError reports a non-200 response.
type HTTPStatusError struct {
	URL  string
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Code, e.Body)
}
