package handoff

import (
	"testing"

	"pgregory.net/rapid"
)

// Property: for any tool result, the sanitized context never contains a
// control key, and every non-control key survives with its value intact.
func TestSanitizeContext_Property(t *testing.T) {
	keyGen := rapid.OneOf(
		rapid.SampledFrom(controlKeys),
		rapid.StringMatching(`[a-z_]{1,16}`),
	)
	valGen := rapid.OneOf(
		rapid.String().AsAny(),
		rapid.Int().AsAny(),
		rapid.Bool().AsAny(),
	)

	rapid.Check(t, func(t *rapid.T) {
		in := rapid.MapOf(keyGen, valGen).Draw(t, "tool_result")

		out := SanitizeContext(in)

		for _, key := range controlKeys {
			if _, ok := out[key]; ok {
				t.Fatalf("control key %q leaked into sanitized context", key)
			}
		}

		control := make(map[string]bool, len(controlKeys))
		for _, key := range controlKeys {
			control[key] = true
		}
		for k, v := range in {
			if control[k] {
				continue
			}
			got, ok := out[k]
			if !ok {
				t.Fatalf("non-control key %q dropped", k)
			}
			if got != v {
				t.Fatalf("value for %q changed: %v != %v", k, got, v)
			}
		}
		if len(out) > len(in) {
			t.Fatalf("sanitize added keys: %d > %d", len(out), len(in))
		}
	})
}
