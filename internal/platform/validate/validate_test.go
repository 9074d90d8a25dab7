package validate

import (
	"strings"
	"testing"
)

type contact struct {
	Phone string `json:"phone" validate:"required,phone"`
	Kind  string `json:"kind" validate:"oneof=whatsapp sms"`
	Count int    `json:"count" validate:"gte=1,lte=10"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(contact{Phone: "+525512345678", Kind: "sms", Count: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_FlattensErrors(t *testing.T) {
	err := Struct(contact{Phone: "5512345678", Kind: "fax", Count: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"'Phone' failed 'phone'", "'Kind' failed 'oneof=whatsapp sms'", "'Count' failed 'gte=1'"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestIsPhone(t *testing.T) {
	cases := map[string]bool{
		"+525512345678": true,
		"+14155550123":  true,
		"525512345678":  false,
		"+0123456789":   false,
		"+52 55 1234":   false,
		"":              false,
	}
	for in, want := range cases {
		if got := IsPhone(in); got != want {
			t.Errorf("IsPhone(%q) = %v, want %v", in, got, want)
		}
	}
}
