package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"commissionflow/catalog"
	"commissionflow/commission"
	"commissionflow/identity"
	"commissionflow/localstore"
	"commissionflow/pricing"
)

const testPhrase = "open-sesame"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	provider, err := localstore.Open(t.TempDir(), "httpapi-test")
	if err != nil {
		t.Fatalf("open localstore: %v", err)
	}
	t.Cleanup(func() { provider.Close() })

	store := commission.NewStore(provider, identity.StaticEnsurer{Identity: identity.Identity{UID: "api-test"}})
	if err := store.Start(context.Background(), func(err error) { t.Errorf("store: %v", err) }); err != nil {
		t.Fatalf("start store: %v", err)
	}
	t.Cleanup(store.Close)

	fixed := time.UnixMilli(1700000001234)
	reconciler := commission.NewReconciler(map[catalog.Type]identity.Operator{
		catalog.TypeFlowingSand: {OwnerID: "main-artist", Name: "主委託老師"},
		catalog.TypeScreenshot:  {OwnerID: "screenshot-desk", Name: "截圖委託窗口"},
	}).WithClock(func() time.Time { return fixed }).
		WithClientIDGenerator(func(time.Time) string { return "REQ-1234" })

	hash, err := identity.HashPhrase(testPhrase)
	if err != nil {
		t.Fatalf("hash phrase: %v", err)
	}
	gate := identity.NewGate(identity.SharedSecret(hash), identity.Operator{
		OwnerID: "main-artist",
		Name:    "主委託老師",
	}, "test-jwt-secret")

	srv := httptest.NewServer(NewHandler(store, reconciler, gate, 10*time.Second).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.Client(), srv.URL+"/v1/operator/login", "", LoginPayload{Phrase: testPhrase})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var lr LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return lr.Token
}

func TestSubmitAndLookup(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.Client(), srv.URL+"/v1/requests", "", SubmitRequestPayload{
		ClientName:  "小梅",
		ContactInfo: "line: mei01",
		Type:        catalog.TypeFlowingSand,
		Quantities:  map[string]int{pricing.SKUCardBox: 1},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var sub SubmitRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if sub.ID != "main-artist_REQ-1234" {
		t.Errorf("submit id = %q, want %q", sub.ID, "main-artist_REQ-1234")
	}
	if sub.Price != 400 {
		t.Errorf("submit price = %d, want 400", sub.Price)
	}

	lookup, err := srv.Client().Get(srv.URL + "/v1/commissions?nickname=小梅")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	defer lookup.Body.Close()
	if lookup.StatusCode != http.StatusOK {
		t.Fatalf("lookup status = %d, want %d", lookup.StatusCode, http.StatusOK)
	}
	var results []publicRecordResponse
	if err := json.NewDecoder(lookup.Body).Decode(&results); err != nil {
		t.Fatalf("decode lookup response: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(results))
	}
	if results[0].ClientName != "小梅" || results[0].Status != 0 {
		t.Errorf("unexpected lookup record: %+v", results[0])
	}

	// The public projection must not leak private fields.
	raw, err := srv.Client().Get(srv.URL + "/v1/commissions?nickname=小梅")
	if err != nil {
		t.Fatalf("lookup raw: %v", err)
	}
	defer raw.Body.Close()
	var generic []map[string]any
	if err := json.NewDecoder(raw.Body).Decode(&generic); err != nil {
		t.Fatalf("decode raw lookup: %v", err)
	}
	for _, field := range []string{"contactInfo", "description", "price"} {
		if _, ok := generic[0][field]; ok {
			t.Errorf("public lookup leaks %q", field)
		}
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name    string
		payload SubmitRequestPayload
	}{
		{"missing contact", SubmitRequestPayload{
			ClientName: "小梅",
			Type:       catalog.TypeFlowingSand,
			Quantities: map[string]int{pricing.SKUCardBox: 1},
		}},
		{"empty selection", SubmitRequestPayload{
			ClientName:  "小梅",
			ContactInfo: "line: mei01",
			Type:        catalog.TypeFlowingSand,
		}},
		{"unknown type", SubmitRequestPayload{
			ClientName:  "小梅",
			ContactInfo: "line: mei01",
			Type:        catalog.Type("STICKER"),
			Quantities:  map[string]int{pricing.SKUCardBox: 1},
		}},
		{"missing appearance", SubmitRequestPayload{
			ClientName:  "小花",
			ContactInfo: "dc: hana#001",
			Type:        catalog.TypeScreenshot,
			Quantities:  map[string]int{pricing.SKUCollage2: 1},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.Client(), srv.URL+"/v1/requests", "", tc.payload)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

// stalledProvider accepts the subscription but never acknowledges writes.
type stalledProvider struct{}

func (stalledProvider) Write(ctx context.Context, id string, rec commission.Record) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledProvider) Remove(ctx context.Context, id string) error { return nil }

func (stalledProvider) Subscribe(ctx context.Context, onSnapshot func([]commission.Record), onError func(error)) (func(), error) {
	onSnapshot(nil)
	return func() {}, nil
}

func TestSubmitTimesOut(t *testing.T) {
	store := commission.NewStore(stalledProvider{}, identity.StaticEnsurer{Identity: identity.Identity{UID: "api-test"}})
	if err := store.Start(context.Background(), nil); err != nil {
		t.Fatalf("start store: %v", err)
	}
	defer store.Close()

	reconciler := commission.NewReconciler(map[catalog.Type]identity.Operator{
		catalog.TypeFlowingSand: {OwnerID: "main-artist", Name: "主委託老師"},
	})
	gate := identity.NewGate(identity.SharedSecret("unused"), identity.Operator{}, "test-jwt-secret")

	srv := httptest.NewServer(NewHandler(store, reconciler, gate, 50*time.Millisecond).Router())
	defer srv.Close()

	resp := postJSON(t, srv.Client(), srv.URL+"/v1/requests", "", SubmitRequestPayload{
		ClientName:  "小梅",
		ContactInfo: "line: mei01",
		Type:        catalog.TypeFlowingSand,
		Quantities:  map[string]int{pricing.SKUCardBox: 1},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("stalled submit status = %d, want %d", resp.StatusCode, http.StatusGatewayTimeout)
	}
}

func TestLookupRequiresNickname(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/v1/commissions")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestGetCatalog(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/v1/catalog/FLOWING_SAND")
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var cat catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&cat); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(cat.Steps) != 6 {
		t.Errorf("flowing sand steps = %d, want 6", len(cat.Steps))
	}
	if len(cat.Products) == 0 {
		t.Error("catalog has no products")
	}

	missing, err := srv.Client().Get(srv.URL + "/v1/catalog/STICKER")
	if err != nil {
		t.Fatalf("get unknown catalog: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown type status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestOperatorAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.Client(), srv.URL+"/v1/operator/login", "", LoginPayload{Phrase: "wrong"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad phrase status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	list, err := srv.Client().Get(srv.URL + "/v1/operator/commissions")
	if err != nil {
		t.Fatalf("list without token: %v", err)
	}
	list.Body.Close()
	if list.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want %d", list.StatusCode, http.StatusUnauthorized)
	}
}

func TestOperatorLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	// Direct entry.
	created := postJSON(t, srv.Client(), srv.URL+"/v1/operator/commissions", token, DirectEntryPayload{
		ClientID:   "001",
		ClientName: "阿哲",
		Type:       catalog.TypeFlowingSand,
		Status:     1,
		Note:       "已排單",
	})
	defer created.Body.Close()
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", created.StatusCode, http.StatusCreated)
	}
	var rec recordResponse
	if err := json.NewDecoder(created.Body).Decode(&rec); err != nil {
		t.Fatalf("decode created record: %v", err)
	}
	if rec.ID != "main-artist_001" {
		t.Errorf("record id = %q, want %q", rec.ID, "main-artist_001")
	}

	// Status update, then verify via the operator listing.
	update := doJSON(t, srv, http.MethodPatch, "/v1/operator/commissions/"+rec.ID+"/status", token, UpdateStatusPayload{Status: 3})
	if update != http.StatusNoContent {
		t.Fatalf("update status = %d, want %d", update, http.StatusNoContent)
	}

	listed := getOperatorList(t, srv, token)
	if len(listed) != 1 || listed[0].Status != 3 {
		t.Fatalf("unexpected listing after update: %+v", listed)
	}

	// Out-of-range status is rejected.
	if got := doJSON(t, srv, http.MethodPatch, "/v1/operator/commissions/"+rec.ID+"/status", token, UpdateStatusPayload{Status: 99}); got != http.StatusBadRequest {
		t.Errorf("out-of-range update status = %d, want %d", got, http.StatusBadRequest)
	}

	// Updating an id that no longer exists quietly succeeds.
	if got := doJSON(t, srv, http.MethodPatch, "/v1/operator/commissions/main-artist_gone/status", token, UpdateStatusPayload{Status: 2}); got != http.StatusNoContent {
		t.Errorf("unknown id update status = %d, want %d", got, http.StatusNoContent)
	}

	// Delete, then delete again.
	for i := 0; i < 2; i++ {
		if got := doJSON(t, srv, http.MethodDelete, "/v1/operator/commissions/"+rec.ID, token, nil); got != http.StatusNoContent {
			t.Fatalf("delete #%d status = %d, want %d", i+1, got, http.StatusNoContent)
		}
	}
	if listed := getOperatorList(t, srv, token); len(listed) != 0 {
		t.Errorf("listing after delete has %d records, want 0", len(listed))
	}
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func getOperatorList(t *testing.T, srv *httptest.Server, token string) []recordResponse {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/operator/commissions", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("list commissions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var recs []recordResponse
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	return recs
}
