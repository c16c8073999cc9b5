package template

import "testing"

func TestNormalize_Examples(t *testing.T) {
	cases := map[string]string{
		"ConfirmationURL":  "CONFIRMATION_URL",
		".UnsubscribeURL":  "UNSUBSCRIBE_URL",
		"order-id":         "ORDER_ID",
		"site_url":         "SITE_URL",
		"  customerName ":  "CUSTOMER_NAME",
		"__already__SNAKE": "ALREADY_SNAKE",
		"items..list":      "ITEMS_LIST",
		"a1bC":             "A1B_C",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"ConfirmationURL", ".Weird..key-", "ORDER_ID", "", "---", "a",
		"mixedUP_and-down.dots", "123abc", "ÑOÑO", "{{nope}}",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalize_GarbageIsEmpty(t *testing.T) {
	for _, in := range []string{"", "...", "---", "  ", "__"} {
		if got := Normalize(in); got != "" {
			t.Fatalf("Normalize(%q) = %q, want empty", in, got)
		}
	}
}
