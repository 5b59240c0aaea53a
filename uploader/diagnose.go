package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	categoriesPath   = "/wp-json/wc/v3/products/categories"
	systemStatusPath = "/wp-json/wc/v3/system_status"
)

// CheckStatus is the outcome of one diagnostic check.
type CheckStatus string

const (
	CheckOK      CheckStatus = "ok"
	CheckFailed  CheckStatus = "failed"
	CheckWarning CheckStatus = "warning"
	CheckSkipped CheckStatus = "skipped"
)

// Check is one line of a store diagnosis.
type Check struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail"`
}

func (c Check) String() string {
	icon := map[CheckStatus]string{
		CheckOK:      "✅",
		CheckFailed:  "❌",
		CheckWarning: "⚠️",
		CheckSkipped: "ℹ️",
	}[c.Status]
	return fmt.Sprintf("%s %s: %s", icon, c.Name, c.Detail)
}

// Diagnose verifies the connection and then probes every endpoint an upload
// touches. A failed connection test is returned as an error; individual
// endpoint problems are reported as checks.
func (c *Client) Diagnose(ctx context.Context) ([]Check, error) {
	if err := c.TestConnection(ctx); err != nil {
		return nil, err
	}

	checks := []Check{
		c.checkEndpoint(ctx, "商品列表获取", productsPath+"?per_page=1", CheckFailed),
		c.checkEndpoint(ctx, "商品分类获取", categoriesPath+"?per_page=1", CheckFailed),
	}

	if c.externalImages {
		checks = append(checks, Check{Name: "媒体库访问", Status: CheckSkipped, Detail: "已启用外部图片模式，跳过测试"})
	} else {
		media := c.checkEndpoint(ctx, "媒体库访问", mediaPath+"?per_page=1", CheckWarning)
		if media.Status == CheckWarning {
			media.Detail = "权限不足 (" + media.Detail + ")"
		}
		checks = append(checks, media)
	}

	return append(checks, c.systemStatus(ctx)), nil
}

// checkEndpoint GETs path and reports a non-200 status with onFailure.
func (c *Client) checkEndpoint(ctx context.Context, name, path string, onFailure CheckStatus) Check {
	status, _, err := c.get(ctx, path)
	switch {
	case err != nil:
		return Check{Name: name, Status: onFailure, Detail: transportMessage(err)}
	case status != http.StatusOK:
		return Check{Name: name, Status: onFailure, Detail: fmt.Sprintf("HTTP %d", status)}
	default:
		return Check{Name: name, Status: CheckOK, Detail: "成功"}
	}
}

func (c *Client) systemStatus(ctx context.Context) Check {
	const name = "系统信息"
	status, body, err := c.get(ctx, systemStatusPath)
	if err != nil || status != http.StatusOK {
		return Check{Name: name, Status: CheckWarning, Detail: "权限不足"}
	}

	var info struct {
		Environment struct {
			WPVersion string `json:"wp_version"`
			WCVersion string `json:"wc_version"`
		} `json:"environment"`
	}
	_ = json.Unmarshal(body, &info)
	wp, wc := info.Environment.WPVersion, info.Environment.WCVersion
	if wp == "" {
		wp = "Unknown"
	}
	if wc == "" {
		wc = "Unknown"
	}
	return Check{Name: name, Status: CheckOK, Detail: fmt.Sprintf("WordPress %s, WooCommerce %s", wp, wc)}
}

func (c *Client) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
