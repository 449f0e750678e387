//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL = getenv("E2E_BASE_URL", "http://localhost:8080")

// TestSystem_E2E drives a full storefront flow against a running stack
// (api + postgres, migrated and seeded).
func TestSystem_E2E(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	var loginResp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	doJSON(t, http.MethodPost, baseURL+"/auth/login", map[string]any{
		"email":    "user@walgreens.com",
		"password": "user123",
	}, &loginResp, 200)
	token := loginResp.Data.AccessToken
	if token == "" {
		t.Fatalf("empty access_token")
	}

	var productsResp struct {
		Data []map[string]any `json:"data"`
	}
	doJSONAuth(t, http.MethodGet, baseURL+"/products?category=medicines", "", nil, &productsResp, 200)
	if len(productsResp.Data) == 0 {
		t.Fatalf("expected seeded medicines")
	}

	pid, _ := productsResp.Data[0]["id"].(string)
	if pid == "" {
		t.Fatalf("product id missing: %#v", productsResp.Data[0])
	}

	var cartResp struct {
		Data map[string]any `json:"data"`
	}
	doJSONAuth(t, http.MethodPost, baseURL+"/cart/items", token, map[string]any{
		"product_id": pid,
		"quantity":   2,
	}, &cartResp, 200)

	var orderResp struct {
		Data map[string]any `json:"data"`
	}
	doJSONAuth(t, http.MethodPost, baseURL+"/orders", token, map[string]any{
		"shipping_address": map[string]any{
			"street":  "200 Wilmot Rd",
			"city":    "Deerfield",
			"state":   "IL",
			"zip":     "60015",
			"country": "US",
		},
	}, &orderResp, 201)

	orderID, _ := orderResp.Data["id"].(string)
	if orderID == "" {
		t.Fatalf("order id missing: %#v", orderResp.Data)
	}
	if status, _ := orderResp.Data["status"].(string); status != "pending" {
		t.Fatalf("status=%s want=pending", status)
	}

	var gotResp struct {
		Data map[string]any `json:"data"`
	}
	doJSONAuth(t, http.MethodGet, baseURL+"/orders/"+orderID, token, nil, &gotResp, 200)

	if os.Getenv("E2E_RESTART_API") == "1" {
		restartAPIContainer(t, ctx)
		waitReady(t, ctx, baseURL+"/readyz")
		// Orders live in postgres and survive the restart.
		doJSONAuth(t, http.MethodGet, baseURL+"/orders/"+orderID, token, nil, &gotResp, 200)
	}
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()
	doJSONAuth(t, method, url, "", body, out, want)
}

func doJSONAuth(t *testing.T, method, url, token string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
