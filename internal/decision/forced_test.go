package decision

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestSetForcedVariation(t *testing.T) {
	cfg := loadConfig(t)
	svc := New()

	tests := []struct {
		name          string
		experimentKey string
		userID        string
		variationKey  string
		want          bool
	}{
		{name: "valid", experimentKey: "exp-basic", userID: "u1", variationKey: "treatment", want: true},
		{name: "unknown experiment", experimentKey: "nope", userID: "u1", variationKey: "treatment", want: false},
		{name: "unknown variation", experimentKey: "exp-basic", userID: "u1", variationKey: "nope", want: false},
		{name: "empty variation", experimentKey: "exp-basic", userID: "u1", variationKey: "", want: false},
		{name: "empty user", experimentKey: "exp-basic", userID: "", variationKey: "control", want: false},
		{name: "empty experiment", experimentKey: "", userID: "u1", variationKey: "control", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.SetForcedVariation(cfg, tt.experimentKey, tt.userID, tt.variationKey); got != tt.want {
				t.Fatalf("SetForcedVariation() = %v, want %v", got, tt.want)
			}
		})
	}

	// Failed calls must not have replaced the valid entry.
	if got := svc.GetForcedVariation(cfg, "exp-basic", "u1").Value; variationKey(got) != "treatment" {
		t.Fatalf("GetForcedVariation() = %s, want treatment", variationKey(got))
	}
}

func TestGetForcedVariation_Absent(t *testing.T) {
	cfg := loadConfig(t)
	svc := New()

	if got := svc.GetForcedVariation(cfg, "exp-basic", "u1"); got.Value != nil {
		t.Fatalf("expected nil, got %s", variationKey(got.Value))
	}
	res := svc.GetForcedVariation(cfg, "nope", "u1")
	if res.Value != nil || len(res.Reasons) == 0 {
		t.Fatalf("expected nil with a reason, got %v %v", res.Value, res.Reasons)
	}
}

func TestRemoveForcedVariation(t *testing.T) {
	cfg := loadConfig(t)
	svc := New()

	svc.SetForcedVariation(cfg, "exp-basic", "u1", "control")
	svc.SetForcedVariation(cfg, "exp-targeted", "u1", "a")

	if !svc.RemoveForcedVariation(cfg, "exp-basic", "u1") {
		t.Fatal("expected removal")
	}
	if svc.RemoveForcedVariation(cfg, "exp-basic", "u1") {
		t.Fatal("second removal should report nothing removed")
	}
	if svc.RemoveForcedVariation(cfg, "nope", "u1") {
		t.Fatal("unknown experiment should report nothing removed")
	}
	if got := svc.GetForcedVariation(cfg, "exp-basic", "u1").Value; got != nil {
		t.Fatalf("expected cleared entry, got %s", variationKey(got))
	}
	if got := svc.GetForcedVariation(cfg, "exp-targeted", "u1").Value; variationKey(got) != "a" {
		t.Fatalf("other experiment entry lost, got %s", variationKey(got))
	}
}

func TestForcedVariation_Overwrite(t *testing.T) {
	cfg := loadConfig(t)
	svc := New()
	svc.SetForcedVariation(cfg, "exp-basic", "u1", "control")
	svc.SetForcedVariation(cfg, "exp-basic", "u1", "treatment")
	if got := svc.GetForcedVariation(cfg, "exp-basic", "u1").Value; variationKey(got) != "treatment" {
		t.Fatalf("GetForcedVariation() = %s, want treatment", variationKey(got))
	}
}

func TestForcedVariation_ConcurrentAccess(t *testing.T) {
	cfg := loadConfig(t)
	svc := New()
	exp := experiment(t, cfg, "exp-basic")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			want := "control"
			if i%2 == 1 {
				want = "treatment"
			}
			if !svc.SetForcedVariation(cfg, "exp-basic", userID, want) {
				t.Errorf("SetForcedVariation(%s) failed", userID)
				return
			}
			got := svc.GetVariation(ctx, cfg, exp, UserContext{UserID: userID}, Options{}).Value
			if variationKey(got) != want {
				t.Errorf("user %s: got %s, want %s", userID, variationKey(got), want)
			}
			svc.RemoveForcedVariation(cfg, "exp-basic", userID)
		}(i)
	}
	wg.Wait()
}
