package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAmountField(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantSet bool
		cents   int64
	}{
		{"integer", `{"amount": 300}`, true, 30000},
		{"decimal", `{"amount": 12.345}`, true, 1235},
		{"exponent", `{"amount": 1e2}`, true, 10000},
		{"numeric string", `{"amount": "42.5"}`, true, 4250},
		{"comma string", `{"amount": "42,5"}`, true, 4250},
		{"thousands grouping", `{"amount": "1,000"}`, false, 0},
		{"grouped millions", `{"amount": "1,000,000"}`, false, 0},
		{"zero", `{"amount": 0}`, true, 0},
		{"negative", `{"amount": -1}`, false, 0},
		{"empty string", `{"amount": ""}`, false, 0},
		{"word", `{"amount": "abc"}`, false, 0},
		{"null", `{"amount": null}`, false, 0},
		{"bool", `{"amount": true}`, false, 0},
		{"object", `{"amount": {"v": 1}}`, false, 0},
		{"missing", `{}`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst struct {
				Amount amountField `json:"amount"`
			}
			if err := json.Unmarshal([]byte(tt.input), &dst); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if dst.Amount.valid() != tt.wantSet {
				t.Fatalf("valid() = %v, want %v", dst.Amount.valid(), tt.wantSet)
			}
			if tt.wantSet && dst.Amount.Cents != tt.cents {
				t.Errorf("cents = %d, want %d", dst.Amount.Cents, tt.cents)
			}
		})
	}
}

func TestIDField(t *testing.T) {
	tests := []struct {
		input   string
		wantSet bool
		id      uint64
	}{
		{`{"id": 3}`, true, 3},
		{`{"id": "17"}`, true, 17},
		{`{"id": " 5 "}`, true, 5},
		{`{"id": 1.0}`, true, 1},
		{`{"id": "2.0"}`, true, 2},
		{`{"id": 1e1}`, true, 10},
		{`{"id": 1.5}`, false, 0},
		{`{"id": "NaN"}`, false, 0},
		{`{"id": 1e300}`, false, 0},
		{`{"id": -2}`, false, 0},
		{`{"id": "x"}`, false, 0},
		{`{"id": null}`, false, 0},
		{`{}`, false, 0},
	}

	for _, tt := range tests {
		var dst struct {
			ID idField `json:"id"`
		}
		if err := json.Unmarshal([]byte(tt.input), &dst); err != nil {
			t.Fatalf("%s: unmarshal: %v", tt.input, err)
		}
		if dst.ID.set != tt.wantSet {
			t.Fatalf("%s: set = %v, want %v", tt.input, dst.ID.set, tt.wantSet)
		}
		if tt.wantSet && uint64(dst.ID.ID) != tt.id {
			t.Errorf("%s: id = %d, want %d", tt.input, dst.ID.ID, tt.id)
		}
	}
}

func TestEnvelopeRequestName(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name   *string
		want   string
		wantOK bool
	}{
		{nil, "", false},
		{str(""), "", false},
		{str(" \t "), "", false},
		{str("  Rent "), "Rent", true},
		{str("Fun\x00\x07 money"), "Fun money", true},
		{str("\x01"), "", false},
	}

	for _, tt := range tests {
		got, ok := envelopeRequest{Name: tt.name}.name()
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("name() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseEnvelopeID(t *testing.T) {
	mux := http.NewServeMux()
	var gotID uint64
	var gotOK bool
	mux.HandleFunc("GET /envelopes/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseEnvelopeID(r)
		gotID, gotOK = uint64(id), ok
	})

	tests := []struct {
		path   string
		id     uint64
		wantOK bool
	}{
		{"/envelopes/1", 1, true},
		{"/envelopes/0", 0, true},
		{"/envelopes/18446744073709551615", 18446744073709551615, true},
		{"/envelopes/18446744073709551616", 0, false},
		{"/envelopes/-1", 0, false},
		{"/envelopes/abc", 0, false},
		{"/envelopes/1e3", 1000, true},
		{"/envelopes/2.0", 2, true},
		{"/envelopes/2.5", 0, false},
	}

	for _, tt := range tests {
		gotID, gotOK = 0, false
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
		if gotOK != tt.wantOK || gotID != tt.id {
			t.Errorf("%s: got (%d, %v), want (%d, %v)", tt.path, gotID, gotOK, tt.id, tt.wantOK)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	cases := map[string]string{
		"  hello  ":       "hello",
		"tab\there":       "tab\there",
		"bell\x07":        "bell",
		"del\x7f":         "del",
		"multi\nline":     "multi\nline",
		"\x00\x01leading": "leading",
		"unicode ✓ kept":  "unicode ✓ kept",
	}
	for in, want := range cases {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
