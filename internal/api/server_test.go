package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/TimurManjosov/goexperiment/internal/notification"
	"github.com/TimurManjosov/goexperiment/internal/sdk"
	"github.com/TimurManjosov/goexperiment/internal/snapshot"
	"github.com/TimurManjosov/goexperiment/internal/testutil"
)

const adminKey = "test-key"

// newTestServer returns a server over a holder loaded with the test datafile.
func newTestServer(t *testing.T) (*Server, *snapshot.Holder) {
	t.Helper()
	holder := snapshot.NewHolder()
	snap, err := snapshot.Build([]byte(testutil.Datafile))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	holder.Update(snap)
	return NewServer(sdk.New(holder), holder, Options{AdminAPIKey: adminKey, RateLimitPerIP: 1000}), holder
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/healthz"}).Do(t, srv.Router())

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got %s", rr.Body.String())
	}
}

func TestGetDatafile(t *testing.T) {
	srv, holder := newTestServer(t)
	handler := srv.Router()

	rr := (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/v1/datafile"}).Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if etag != holder.Load().ETag {
		t.Errorf("Expected ETag %s, got %s", holder.Load().ETag, etag)
	}
	if rr.Body.String() != testutil.Datafile {
		t.Error("Expected the raw datafile as body")
	}

	rr = (&testutil.HTTPRequest{
		Method:  http.MethodGet,
		Path:    "/v1/datafile",
		Headers: map[string]string{"If-None-Match": etag},
	}).Do(t, handler)
	if rr.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Error("Expected empty body on 304")
	}
}

func TestGetDatafile_NotLoaded(t *testing.T) {
	holder := snapshot.NewHolder()
	srv := NewServer(sdk.New(holder), holder, Options{AdminAPIKey: adminKey})

	rr := (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/v1/datafile"}).Do(t, srv.Router())
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}

	rr = (&testutil.HTTPRequest{Method: http.MethodPost, Path: "/v1/decide", Body: `{"user":{"id":"u1"}}`}).Do(t, srv.Router())
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected decide to return 503, got %d", rr.Code)
	}
}

func TestPutDatafile(t *testing.T) {
	srv, holder := newTestServer(t)
	handler := srv.Router()

	var updates []notification.Event
	srv.client.Notifications().AddListener(notification.TypeConfigUpdate, func(e notification.Event) {
		updates = append(updates, e)
	})

	updated := strings.Replace(testutil.Datafile, `"revision": "42"`, `"revision": "43"`, 1)

	tests := []struct {
		name       string
		headers    map[string]string
		body       string
		wantStatus int
	}{
		{"no token", nil, updated, http.StatusUnauthorized},
		{"wrong token", testutil.BearerAuth("nope"), updated, http.StatusForbidden},
		{"invalid datafile", testutil.BearerAuth(adminKey), `{"revision":`, http.StatusBadRequest},
		{"valid", testutil.BearerAuth(adminKey), updated, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := (&testutil.HTTPRequest{Method: http.MethodPut, Path: "/v1/datafile", Body: tt.body, Headers: tt.headers}).Do(t, handler)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}

	if holder.Load().Revision != "43" {
		t.Errorf("Expected revision 43 after update, got %s", holder.Load().Revision)
	}
	if len(updates) != 1 || updates[0].Revision != "43" {
		t.Errorf("Expected one config-update event for revision 43, got %+v", updates)
	}
}

func TestDecide(t *testing.T) {
	srv, holder := newTestServer(t)
	handler := srv.Router()

	rr := (&testutil.HTTPRequest{
		Method: http.MethodPost,
		Path:   "/v1/decide",
		Body:   `{"user":{"id":"u1","attributes":{"browser":"chrome"}},"keys":["flag-checkout","flag-dark"],"includeReasons":true}`,
	}).Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp decideResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Revision != "42" || resp.ETag != holder.Load().ETag {
		t.Errorf("Unexpected revision/etag: %s %s", resp.Revision, resp.ETag)
	}
	if len(resp.Decisions) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(resp.Decisions))
	}
	checkout := resp.Decisions[0]
	if checkout.FlagKey != "flag-checkout" || !checkout.Enabled || checkout.VariationKey != "feature-on" {
		t.Errorf("flag-checkout = %+v", checkout)
	}
	if checkout.Variables["count"] != float64(7) {
		t.Errorf("count = %v, want 7", checkout.Variables["count"])
	}
	if len(checkout.Reasons) == 0 {
		t.Error("Expected reasons")
	}
	if resp.Decisions[1].Enabled {
		t.Errorf("flag-dark should be disabled: %+v", resp.Decisions[1])
	}
}

func TestDecide_AllFlagsSorted(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := (&testutil.HTTPRequest{Method: http.MethodPost, Path: "/v1/decide", Body: `{"user":{"id":"u1"}}`}).Do(t, srv.Router())
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp decideResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, d := range resp.Decisions {
		keys = append(keys, d.FlagKey)
	}
	want := "flag-checkout,flag-dark,flag-empty,flag-held"
	if strings.Join(keys, ",") != want {
		t.Errorf("Expected %s, got %v", want, keys)
	}
}

func TestDecide_MalformedVariableStillOK(t *testing.T) {
	holder := snapshot.NewHolder()
	snap, err := snapshot.Build([]byte(`{"version":"4","projectId":"p","revision":"7","experiments":[],"featureFlags":[
		{"id":"1","key":"good","rolloutId":"","experimentIds":[],"variables":[{"id":"v1","key":"n","type":"integer","defaultValue":"3"}]},
		{"id":"2","key":"bad","rolloutId":"","experimentIds":[],"variables":[{"id":"v2","key":"n","type":"integer","defaultValue":"oops"}]}]}`))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	holder.Update(snap)
	srv := NewServer(sdk.New(holder), holder, Options{AdminAPIKey: adminKey, RateLimitPerIP: 1000})

	rr := (&testutil.HTTPRequest{Method: http.MethodPost, Path: "/v1/decide", Body: `{"user":{"id":"u1"}}`}).Do(t, srv.Router())
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp decideResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Decisions) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(resp.Decisions))
	}
	for _, d := range resp.Decisions {
		if d.FlagKey == "bad" && d.Variables["n"] != "oops" {
			t.Errorf("bad.n = %#v, want oops", d.Variables["n"])
		}
	}
}

func TestDecide_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   ErrorCode
	}{
		{"invalid json", `{`, http.StatusBadRequest, ErrCodeInvalidJSON},
		{"missing user", `{}`, http.StatusBadRequest, ErrCodeValidation},
		{"blank user id", `{"user":{"id":"  "}}`, http.StatusBadRequest, ErrCodeValidation},
		{"object attribute", `{"user":{"id":"u1","attributes":{"geo":{"country":"de"}}}}`, http.StatusBadRequest, ErrCodeValidation},
		{"blank key", `{"user":{"id":"u1"},"keys":[""]}`, http.StatusBadRequest, ErrCodeValidation},
		{"unknown flag", `{"user":{"id":"u1"},"keys":["nope"]}`, http.StatusNotFound, ErrCodeUnknownFeature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := (&testutil.HTTPRequest{Method: http.MethodPost, Path: "/v1/decide", Body: tt.body}).Do(t, handler)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if resp := decodeError(t, rr); resp.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestActivate(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rr := (&testutil.HTTPRequest{
		Method: http.MethodPost,
		Path:   "/v1/experiments/exp-basic/activate",
		Body:   `{"user":{"id":"wl-user"}}`,
	}).Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp variationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.VariationKey != "control" || resp.UserID != "wl-user" || resp.ExperimentKey != "exp-basic" {
		t.Errorf("Unexpected response: %+v", resp)
	}

	rr = (&testutil.HTTPRequest{
		Method: http.MethodPost,
		Path:   "/v1/experiments/nope/activate",
		Body:   `{"user":{"id":"u1"}}`,
	}).Do(t, handler)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown experiment, got %d", rr.Code)
	}
}

func TestForcedVariations(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()
	path := "/v1/experiments/exp-basic/forced-variations/u1"
	auth := testutil.BearerAuth(adminKey)

	steps := []struct {
		name       string
		req        testutil.HTTPRequest
		wantStatus int
	}{
		{"get before set", testutil.HTTPRequest{Method: http.MethodGet, Path: path}, http.StatusNotFound},
		{"set without auth", testutil.HTTPRequest{Method: http.MethodPut, Path: path, Body: `{"variationKey":"treatment"}`}, http.StatusUnauthorized},
		{"set missing key", testutil.HTTPRequest{Method: http.MethodPut, Path: path, Body: `{}`, Headers: auth}, http.StatusBadRequest},
		{"set unknown variation", testutil.HTTPRequest{Method: http.MethodPut, Path: path, Body: `{"variationKey":"nope"}`, Headers: auth}, http.StatusNotFound},
		{"set unknown experiment", testutil.HTTPRequest{Method: http.MethodPut, Path: "/v1/experiments/nope/forced-variations/u1", Body: `{"variationKey":"treatment"}`, Headers: auth}, http.StatusNotFound},
		{"set", testutil.HTTPRequest{Method: http.MethodPut, Path: path, Body: `{"variationKey":"treatment"}`, Headers: auth}, http.StatusOK},
		{"get", testutil.HTTPRequest{Method: http.MethodGet, Path: path}, http.StatusOK},
		{"clear without auth", testutil.HTTPRequest{Method: http.MethodDelete, Path: path}, http.StatusUnauthorized},
		{"clear", testutil.HTTPRequest{Method: http.MethodDelete, Path: path, Headers: auth}, http.StatusNoContent},
		{"clear again", testutil.HTTPRequest{Method: http.MethodDelete, Path: path, Headers: auth}, http.StatusNotFound},
	}

	for _, step := range steps {
		rr := step.req.Do(t, handler)
		if rr.Code != step.wantStatus {
			t.Fatalf("%s: expected status %d, got %d: %s", step.name, step.wantStatus, rr.Code, rr.Body.String())
		}
		if step.name == "get" {
			var resp variationResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.VariationKey != "treatment" {
				t.Errorf("Expected forced variation treatment, got %q", resp.VariationKey)
			}
		}
	}
}

func TestForcedVariationDrivesActivate(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	rr := (&testutil.HTTPRequest{
		Method:  http.MethodPut,
		Path:    "/v1/experiments/exp-basic/forced-variations/u7",
		Body:    `{"variationKey":"treatment"}`,
		Headers: testutil.BearerAuth(adminKey),
	}).Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	rr = (&testutil.HTTPRequest{
		Method: http.MethodPost,
		Path:   "/v1/experiments/exp-basic/activate",
		Body:   `{"user":{"id":"u7"}}`,
	}).Do(t, handler)
	var resp variationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.VariationKey != "treatment" {
		t.Errorf("Expected treatment, got %q", resp.VariationKey)
	}
}
