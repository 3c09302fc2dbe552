package storage

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

// testSpec is a simple ValidatingSpec for testing
type testSpec struct {
	valid bool
}

func (s *testSpec) Validate() error {
	if !s.valid {
		return fmt.Errorf("spec is invalid")
	}
	return nil
}

func TestAsset_Validate(t *testing.T) {
	tests := map[string]struct {
		asset   Asset[*testSpec]
		expErrs []string
	}{
		"level id": {
			asset: Asset[*testSpec]{Version: 1, Identifier: "level-1", Spec: &testSpec{valid: true}},
		},
		"session uuid": {
			asset: Asset[*testSpec]{Version: 1, Identifier: "3f1c2a9e-5b7d-4c1e-9a61-0d2f8e4b7c55", Spec: &testSpec{valid: true}},
		},
		"version not set": {
			asset:   Asset[*testSpec]{Identifier: "level-1", Spec: &testSpec{valid: true}},
			expErrs: []string{"version must be set"},
		},
		"empty identifier": {
			asset:   Asset[*testSpec]{Version: 1, Spec: &testSpec{valid: true}},
			expErrs: []string{"id must be set"},
		},
		"identifier with path separator": {
			asset:   Asset[*testSpec]{Version: 1, Identifier: "levels/one", Spec: &testSpec{valid: true}},
			expErrs: []string{"id must be alphanumeric"},
		},
		"invalid spec": {
			asset:   Asset[*testSpec]{Version: 1, Identifier: "level-1", Spec: &testSpec{}},
			expErrs: []string{"spec is invalid"},
		},
		"multiple errors": {
			asset: Asset[*testSpec]{Spec: &testSpec{}},
			expErrs: []string{
				"version must be set",
				"id must be set",
				"spec is invalid",
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.asset.Validate()

			if len(tt.expErrs) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("expected errors %v, got nil", tt.expErrs)
			}

			for _, e := range tt.expErrs {
				if !strings.Contains(err.Error(), e) {
					t.Errorf("error %q does not contain %q", err.Error(), e)
				}
			}
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	tests := map[string]struct {
		id  string
		exp bool
	}{
		"hyphenated":  {id: "level-2", exp: true},
		"underscore":  {id: "level_2", exp: false},
		"dot segment": {id: "..", exp: false},
		"spaces":      {id: "level 2", exp: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "valid", ValidIdentifier(tt.id), tt.exp)
		})
	}
}
