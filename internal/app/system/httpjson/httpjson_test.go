package httpjson_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/gatecheck/internal/app/system/httpjson"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	httpjson.Write(rec, http.StatusCreated, payload{Name: "x", Count: 2})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	var got payload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Name != "x" || got.Count != 2 {
		t.Errorf("body = %+v", got)
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpjson.Error(rec, http.StatusConflict, "already exists")

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got["error"] != "already exists" {
		t.Errorf("error = %q", got["error"])
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"a","count":1}`, false},
		{"unknown field", `{"name":"a","bogus":true}`, true},
		{"not json", `hello`, true},
		{"trailing document", `{"name":"a"}{"name":"b"}`, true},
		{"empty body", ``, true},
	}

	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		var dst payload
		err := httpjson.Decode(rec, r, 1024, &dst)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr = %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestDecode_BodyTooLarge(t *testing.T) {
	big := `{"name":"` + strings.Repeat("a", 100) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	rec := httptest.NewRecorder()

	var dst payload
	err := httpjson.Decode(rec, r, 16, &dst)
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("err = %v, want size-limit message", err)
	}
}
