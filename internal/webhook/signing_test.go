package webhook

import "testing"

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"event":"product.created"}`)
	sig := Sign(body, "secret")
	if sig == "" {
		t.Fatalf("empty signature")
	}
	if !Verify(body, "secret", sig) {
		t.Fatalf("signature should verify")
	}
	if Verify(body, "other", sig) {
		t.Fatalf("wrong secret must not verify")
	}
	if Verify([]byte("tampered"), "secret", sig) {
		t.Fatalf("tampered body must not verify")
	}
}
