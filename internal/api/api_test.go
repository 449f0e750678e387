package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"PharmaStore/internal/api"
	"PharmaStore/internal/auth"
	"PharmaStore/internal/cart"
	"PharmaStore/internal/catalog"
	"PharmaStore/internal/order"
	"PharmaStore/internal/seed"
)

const (
	adminEmail    = "admin@walgreens.com"
	adminPass     = "admin123"
	customerEmail = "user@walgreens.com"
	customerPass  = "user123"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	users := auth.NewMemStore()
	products := catalog.NewMemStore()
	carts := cart.NewMemStore()

	if err := seed.Apply(context.Background(), users, products); err != nil {
		t.Fatalf("seed: %v", err)
	}

	log := zap.NewNop()
	jwt := auth.NewTokenMaker("test-secret")

	h := api.NewHandler(
		&auth.Server{Log: log, Store: users, JWT: jwt},
		&catalog.Server{Log: log, Store: products},
		&cart.Server{Log: log, Carts: carts, Products: products},
		&order.Server{Log: log, Store: order.NewMemStore(carts, products), Events: order.NopPublisher{}},
		api.Deps{Log: log, Service: "api", JWT: jwt},
	)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func decodeData[T any](t *testing.T, raw []byte) T {
	t.Helper()

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, string(raw))
	}
	if !env.Success {
		t.Fatalf("success=false body=%s", string(raw))
	}
	return env.Data
}

func login(t *testing.T, ts *httptest.Server, email, password string) string {
	t.Helper()

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d body=%s", resp.StatusCode, string(raw))
	}

	data := decodeData[struct {
		AccessToken string    `json:"access_token"`
		User        auth.User `json:"user"`
	}](t, raw)
	if data.AccessToken == "" {
		t.Fatalf("empty access_token")
	}
	return data.AccessToken
}

func addToCart(t *testing.T, ts *httptest.Server, token, productID string, qty int) cart.Cart {
	t.Helper()

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/cart/items", token, map[string]any{
		"product_id": productID,
		"quantity":   qty,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add to cart status=%d body=%s", resp.StatusCode, string(raw))
	}
	return decodeData[cart.Cart](t, raw)
}

var testAddress = map[string]any{
	"street":  "200 Wilmot Rd",
	"city":    "Deerfield",
	"state":   "IL",
	"zip":     "60015",
	"country": "US",
}

func checkout(t *testing.T, ts *httptest.Server, token string) (*http.Response, []byte) {
	t.Helper()
	return doJSON(t, http.MethodPost, ts.URL+"/orders", token, map[string]any{
		"shipping_address": testAddress,
	})
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/auth/login", "", map[string]any{
		"email":    adminEmail,
		"password": adminPass,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	data := decodeData[struct {
		AccessToken string    `json:"access_token"`
		User        auth.User `json:"user"`
	}](t, raw)
	if data.User.Role != auth.RoleAdmin {
		t.Fatalf("role=%s want=admin", data.User.Role)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/auth/login", "", map[string]any{
		"email":    adminEmail,
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status=%d", resp.StatusCode)
	}

	// A failed login leaves no session: /auth/me still requires a token.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/auth/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me without token: status=%d", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, customerEmail, customerPass)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	u := decodeData[auth.User](t, raw)
	if u.Email != customerEmail {
		t.Fatalf("email=%s", u.Email)
	}
	if u.Role != auth.RoleCustomer {
		t.Fatalf("role=%s", u.Role)
	}
}

func TestProductFilters(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/products", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	all := decodeData[[]catalog.Product](t, raw)
	if len(all) != len(seed.Products()) {
		t.Fatalf("got %d products, want %d", len(all), len(seed.Products()))
	}

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/products?category=wellness", "", nil)
	wellness := decodeData[[]catalog.Product](t, raw)
	if len(wellness) == 0 {
		t.Fatalf("no wellness products")
	}
	for _, p := range wellness {
		if p.Category != catalog.CategoryWellness {
			t.Fatalf("category=%s leaked into wellness filter", p.Category)
		}
	}

	// Case-insensitive substring match over name or description.
	_, raw = doJSON(t, http.MethodGet, ts.URL+"/products?search=COUGH", "", nil)
	matched := decodeData[[]catalog.Product](t, raw)
	if len(matched) != 1 || matched[0].ID != "p_003" {
		t.Fatalf("search COUGH: %+v", matched)
	}

	// No match is an empty list, not an error.
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/products?search=nosuchthing", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	none := decodeData[[]catalog.Product](t, raw)
	if len(none) != 0 {
		t.Fatalf("expected empty result, got %d", len(none))
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/products?category=toys", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown category: status=%d", resp.StatusCode)
	}
}

func TestCartMergeOnAdd(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, customerEmail, customerPass)

	c := addToCart(t, ts, token, "p_003", 2)
	c = addToCart(t, ts, token, "p_003", 1)

	if len(c.Items) != 1 {
		t.Fatalf("items=%d want=1", len(c.Items))
	}
	if c.Items[0].Quantity != 3 {
		t.Fatalf("quantity=%d want=3", c.Items[0].Quantity)
	}
	if want := int64(3 * 1299); c.TotalCents != want {
		t.Fatalf("total=%d want=%d", c.TotalCents, want)
	}
}

func TestCartRemoveLastItem(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, customerEmail, customerPass)

	c := addToCart(t, ts, token, "p_001", 1)
	itemID := c.Items[0].ID

	resp, raw := doJSON(t, http.MethodDelete, ts.URL+"/cart/items/"+itemID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	c = decodeData[cart.Cart](t, raw)
	if len(c.Items) != 0 {
		t.Fatalf("items=%d want=0", len(c.Items))
	}
	if c.TotalCents != 0 {
		t.Fatalf("total=%d want=0", c.TotalCents)
	}
}

func TestCheckout(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, customerEmail, customerPass)

	addToCart(t, ts, token, "p_003", 2) // 1299 each
	addToCart(t, ts, token, "p_002", 1) // 749

	resp, raw := checkout(t, ts, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	o := decodeData[order.Order](t, raw)
	if want := int64(2*1299 + 749); o.TotalCents != want {
		t.Fatalf("total=%d want=%d", o.TotalCents, want)
	}
	if o.Status != order.StatusPending {
		t.Fatalf("status=%s want=pending", o.Status)
	}
	if len(o.Items) != 2 {
		t.Fatalf("items=%d want=2", len(o.Items))
	}

	// The source cart is gone.
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/cart", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get cart status=%d", resp.StatusCode)
	}
	var env envelope[*cart.Cart]
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data != nil {
		t.Fatalf("cart survived checkout: %+v", env.Data)
	}

	// Stock was decremented.
	_, raw = doJSON(t, http.MethodGet, ts.URL+"/products/p_003", "", nil)
	p := decodeData[catalog.Product](t, raw)
	if p.StockQuantity != 78 {
		t.Fatalf("stock=%d want=78", p.StockQuantity)
	}

	// The order is retrievable by its owner.
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/orders/"+o.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get order status=%d body=%s", resp.StatusCode, string(raw))
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, customerEmail, customerPass)

	resp, raw := checkout(t, ts, token)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, customerEmail, customerPass)

	addToCart(t, ts, token, "p_008", 1) // seeded out of stock

	resp, raw := checkout(t, ts, token)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	// Failed checkout leaves the cart intact.
	_, raw = doJSON(t, http.MethodGet, ts.URL+"/cart", token, nil)
	c := decodeData[cart.Cart](t, raw)
	if len(c.Items) != 1 || c.Items[0].ProductID != "p_008" {
		t.Fatalf("cart lost after failed checkout: %+v", c)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	ts := newTestServer(t)
	customerToken := login(t, ts, customerEmail, customerPass)
	adminToken := login(t, ts, adminEmail, adminPass)

	addToCart(t, ts, customerToken, "p_001", 1)
	_, raw := checkout(t, ts, customerToken)
	o := decodeData[order.Order](t, raw)

	statusURL := ts.URL + "/orders/" + o.ID + "/status"

	// Non-admin callers are rejected and the order is untouched.
	resp, _ := doJSON(t, http.MethodPut, statusURL, customerToken, map[string]any{"status": "confirmed"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin update: status=%d", resp.StatusCode)
	}
	_, raw = doJSON(t, http.MethodGet, ts.URL+"/orders/"+o.ID, customerToken, nil)
	if got := decodeData[order.Order](t, raw); got.Status != order.StatusPending {
		t.Fatalf("order status=%s want=pending", got.Status)
	}

	resp, raw = doJSON(t, http.MethodPut, statusURL, adminToken, map[string]any{"status": "confirmed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status=%d body=%s", resp.StatusCode, string(raw))
	}

	// confirmed -> pending is not a legal move.
	resp, _ = doJSON(t, http.MethodPut, statusURL, adminToken, map[string]any{"status": "pending"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("illegal transition: status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPut, statusURL, adminToken, map[string]any{"status": "cancelled"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: status=%d", resp.StatusCode)
	}
}

func TestAdminProductCRUD(t *testing.T) {
	ts := newTestServer(t)
	customerToken := login(t, ts, customerEmail, customerPass)
	adminToken := login(t, ts, adminEmail, adminPass)

	newProduct := map[string]any{
		"name":           "Allergy Relief Tablets",
		"description":    "24 hour non-drowsy antihistamine.",
		"price_cents":    1899,
		"category":       "medicines",
		"image_url":      "/images/allergy-relief.jpg",
		"stock_quantity": 40,
	}

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/products", "", newProduct)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous create: status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/products", customerToken, newProduct)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer create: status=%d", resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/products", adminToken, newProduct)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create: status=%d body=%s", resp.StatusCode, string(raw))
	}
	created := decodeData[catalog.Product](t, raw)
	if created.ID == "" {
		t.Fatalf("empty product id")
	}

	newProduct["price_cents"] = 1699
	resp, raw = doJSON(t, http.MethodPut, ts.URL+"/products/"+created.ID, adminToken, newProduct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin update: status=%d body=%s", resp.StatusCode, string(raw))
	}
	updated := decodeData[catalog.Product](t, raw)
	if updated.PriceCents != 1699 {
		t.Fatalf("price=%d want=1699", updated.PriceCents)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/products/"+created.ID, adminToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete: status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/products/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted product still served: status=%d", resp.StatusCode)
	}
}

func TestAdminOrderListing(t *testing.T) {
	ts := newTestServer(t)
	customerToken := login(t, ts, customerEmail, customerPass)
	adminToken := login(t, ts, adminEmail, adminPass)

	addToCart(t, ts, customerToken, "p_004", 2)
	checkout(t, ts, customerToken)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/admin/orders", customerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer admin listing: status=%d", resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/admin/orders", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin listing: status=%d", resp.StatusCode)
	}
	orders := decodeData[[]order.Order](t, raw)
	if len(orders) != 1 {
		t.Fatalf("orders=%d want=1", len(orders))
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/orders", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/cart", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestOrderOwnership(t *testing.T) {
	ts := newTestServer(t)
	customerToken := login(t, ts, customerEmail, customerPass)
	adminToken := login(t, ts, adminEmail, adminPass)

	addToCart(t, ts, customerToken, "p_005", 1)
	_, raw := checkout(t, ts, customerToken)
	o := decodeData[order.Order](t, raw)

	// Another user's order is visible to admins but no one else.
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/orders/"+o.ID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin get: status=%d", resp.StatusCode)
	}

	addToCart(t, ts, adminToken, "p_005", 1)
	_, raw = checkout(t, ts, adminToken)
	adminOrder := decodeData[order.Order](t, raw)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/orders/"+adminOrder.ID, customerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-user get: status=%d", resp.StatusCode)
	}
}
