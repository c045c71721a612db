package model

import (
	"encoding/json"
	"testing"
)

func TestParamsUnmarshalPreservesOrderAndKinds(t *testing.T) {
	raw := `{"zeta":"last? no, first","count":3,"active":true,"alpha":"later"}`

	var p Params
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(p) != 4 {
		t.Fatalf("expected 4 params, got %d", len(p))
	}

	wantOrder := []string{"zeta", "count", "active", "alpha"}
	for i, name := range wantOrder {
		if p[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, p[i].Name)
		}
	}
	if p[1].Value.Kind != KindNumber || p[1].Value.Num != 3 {
		t.Errorf("expected number kind for count, got %+v", p[1].Value)
	}
	if p[2].Value.Kind != KindBool || !p[2].Value.Bool {
		t.Errorf("expected bool kind for active, got %+v", p[2].Value)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"zeta":"last? no, first","count":3,"active":true,"alpha":"later"}` {
		t.Errorf("round trip changed order or values: %s", out)
	}
}

func TestParamsScanSeedColumnValues(t *testing.T) {
	// The exact shapes the seed files and column defaults put in JSONB.
	var fixed Params
	if err := fixed.Scan([]byte(`{"product": "Wablast Pro", "date": "September 15"}`)); err != nil {
		t.Fatalf("scan seeded fixed_params: %v", err)
	}
	if len(fixed) != 2 || fixed[0].Name != "product" || fixed[1].Name != "date" {
		t.Fatalf("unexpected params: %+v", fixed)
	}
	if v, ok := fixed.Get("product"); !ok || v.String() != "Wablast Pro" {
		t.Errorf("Get(product) = %+v, %v", v, ok)
	}

	var amounts Params
	if err := amounts.Scan([]byte(`{"amount": 250000, "due_date": "August 31"}`)); err != nil {
		t.Fatalf("scan seeded fixed_params: %v", err)
	}
	if v, ok := amounts.Get("amount"); !ok || v.Kind != KindNumber || v.String() != "250000" {
		t.Errorf("Get(amount) = %+v, %v", v, ok)
	}

	var empty Params
	if err := empty.Scan([]byte(`{}`)); err != nil {
		t.Fatalf("scan empty default: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no params, got %+v", empty)
	}
}

func TestParamsRejectNonScalarValues(t *testing.T) {
	var p Params
	if err := json.Unmarshal([]byte(`{"nested":{"a":1}}`), &p); err == nil {
		t.Fatal("expected error for nested object value")
	}
}

func TestParamValueStringCoercion(t *testing.T) {
	cases := []struct {
		val  ParamValue
		want string
	}{
		{StringValue("Nov 20"), "Nov 20"},
		{NumberValue(2), "2"},
		{NumberValue(2.5), "2.5"},
		{BoolValue(true), "true"},
	}
	for _, tc := range cases {
		if got := tc.val.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestCanonicalPhone(t *testing.T) {
	cases := map[string]string{
		"+91 90000-0001": "91900000001",
		"(254) 712 345":  "254712345",
		"9190000001":     "9190000001",
		"n/a":            "",
	}
	for raw, want := range cases {
		if got := CanonicalPhone(raw); got != want {
			t.Errorf("CanonicalPhone(%q) = %q, want %q", raw, got, want)
		}
	}
}
