package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/payments/42":           "/v1/payments/:id",
		"/v1/payments/42/claim":     "/v1/payments/:id/claim",
		"/v1/payments/42/verify":    "/v1/payments/:id/verify",
		"/v1/payments":              "/v1/payments",
		"/v1/employers/0xabc":       "/v1/employers/:address",
		"/v1/role":                  "/v1/role",
		"/v1/payments/42?refresh=1": "/v1/payments/:id",
		"/healthz":                  "/healthz",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
