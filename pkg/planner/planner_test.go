package planner

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yelloji/relgen/pkg/rng"
	"github.com/yelloji/relgen/pkg/transform"
)

func testRecords() []transform.Record {
	return []transform.Record{
		{ID: "tf-flip", Type: transform.KindFlip, Parameters: map[string]any{"axis": "horizontal"}, Enabled: true, OrderIndex: 0},
		{ID: "tf-rotate", Type: transform.KindRotate, Parameters: map[string]any{"angle": map[string]any{"min": -30.0, "max": 30.0}}, Enabled: true, OrderIndex: 1},
		{ID: "tf-bright", Type: transform.KindBrightness, Parameters: map[string]any{"percent": 20.0}, Enabled: true, OrderIndex: 2},
	}
}

func TestPlan_MultiplierOne_IncludeOriginal(t *testing.T) {
	configs, err := Plan(Config{
		Records:         testRecords(),
		Images:          []ImageRef{{ID: "img-1", Split: "train"}},
		Multiplier:      1,
		Strategy:        "intelligent",
		Seed:            1,
		IncludeOriginal: true,
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("multiplier 1 with original produced %d configs, want 0", len(configs))
	}
}

func TestPlan_NoTransforms(t *testing.T) {
	_, err := Plan(Config{
		Images:          []ImageRef{{ID: "img-1", Split: "train"}},
		Multiplier:      3,
		Strategy:        "intelligent",
		IncludeOriginal: true,
	})
	if !errors.Is(err, ErrNoTransforms) {
		t.Errorf("Plan() error = %v, want ErrNoTransforms", err)
	}
}

func TestPlan_CountsPerImage(t *testing.T) {
	configs, err := Plan(Config{
		Records:         testRecords(),
		Images:          []ImageRef{{ID: "img-1", Split: "train"}, {ID: "img-2", Split: "val"}},
		Multiplier:      4,
		Strategy:        "intelligent",
		Seed:            7,
		IncludeOriginal: true,
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}

	// 4 - 1 = 3 configs per image, 2 images.
	if len(configs) != 6 {
		t.Fatalf("got %d configs, want 6", len(configs))
	}

	perImage := map[string]int{}
	for _, c := range configs {
		perImage[c.SourceImageID]++
		if c.ConfigID < 1 || c.ConfigID > 3 {
			t.Errorf("config id %d outside [1, 3]", c.ConfigID)
		}
		if len(c.Transforms) == 0 {
			t.Error("empty transform list in config")
		}
	}
	if perImage["img-1"] != 3 || perImage["img-2"] != 3 {
		t.Errorf("per-image counts: %v", perImage)
	}

	if configs[1].TargetSplit != "train" || configs[4].TargetSplit != "val" {
		t.Error("target splits not carried from image refs")
	}
}

func TestPlan_Deterministic(t *testing.T) {
	cfg := Config{
		Records:         testRecords(),
		Images:          []ImageRef{{ID: "img-1", Split: "train"}},
		Multiplier:      5,
		Strategy:        "intelligent",
		Seed:            42,
		IncludeOriginal: false,
	}

	a, err := Plan(cfg)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	b, err := Plan(cfg)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different plans")
	}

	cfg.Seed = 43
	c, err := Plan(cfg)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical plans (possible but suspicious)")
	}
}

func TestPlan_OrderIndexHonored(t *testing.T) {
	records := []transform.Record{
		{ID: "tf-b", Type: transform.KindBrightness, Parameters: map[string]any{}, Enabled: true, OrderIndex: 5},
		{ID: "tf-a", Type: transform.KindFlip, Parameters: map[string]any{}, Enabled: true, OrderIndex: 1},
	}

	configs, err := Plan(Config{
		Records:    records,
		Images:     []ImageRef{{ID: "img-1", Split: "train"}},
		Multiplier: 8,
		Strategy:   "exhaustive",
		Seed:       3,
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}

	for _, c := range configs {
		if len(c.Transforms) == 2 {
			if c.Transforms[0].Type != transform.KindFlip || c.Transforms[1].Type != transform.KindBrightness {
				t.Errorf("pair not in order_index order: %s then %s", c.Transforms[0].Type, c.Transforms[1].Type)
			}
		}
	}
}

func TestPlan_DisabledRecordsIgnored(t *testing.T) {
	records := testRecords()
	records[1].Enabled = false

	configs, err := Plan(Config{
		Records:    records,
		Images:     []ImageRef{{ID: "img-1", Split: "train"}},
		Multiplier: 4,
		Strategy:   "exhaustive",
		Seed:       1,
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	for _, c := range configs {
		for _, tf := range c.Transforms {
			if tf.Type == transform.KindRotate {
				t.Error("disabled transform appeared in a config")
			}
		}
	}
}

func TestPlan_InvalidRecordRejected(t *testing.T) {
	records := []transform.Record{
		{ID: "tf-bad", Type: transform.KindRotate, Parameters: map[string]any{"angle": 999.0}, Enabled: true},
	}
	_, err := Plan(Config{
		Records:    records,
		Images:     []ImageRef{{ID: "img-1", Split: "train"}},
		Multiplier: 2,
		Strategy:   "random",
		Seed:       1,
	})
	if !errors.Is(err, transform.ErrInvalidParameter) {
		t.Errorf("Plan() error = %v, want ErrInvalidParameter", err)
	}
}

func TestCombinations(t *testing.T) {
	got := combinations(3, 2)
	want := [][]int{{0}, {1}, {2}, {0, 1}, {0, 2}, {1, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("combinations(3, 2) = %v, want %v", got, want)
	}

	if n := len(combinations(4, 4)); n != 15 {
		t.Errorf("combinations(4, 4) has %d entries, want 15", n)
	}
}

func TestIntelligentStrategy_WithoutReplacementFirst(t *testing.T) {
	stream := rng.New(11, "sampling-test")
	picked := intelligentStrategy{}.Sample(3, 7, stream)

	if len(picked) != 7 {
		t.Fatalf("got %d combos, want 7", len(picked))
	}

	// Pool for n=3, maxSize=3: 7 combos, so all 7 must be distinct.
	seen := map[string]bool{}
	for _, combo := range picked {
		key := ""
		for _, i := range combo {
			key += string(rune('a' + i))
		}
		if seen[key] {
			t.Errorf("combo %v repeated before pool exhaustion", combo)
		}
		seen[key] = true
	}
}

func TestExhaustiveStrategy_CyclesWhenShort(t *testing.T) {
	picked := exhaustiveStrategy{}.Sample(2, 5, nil)
	// Pool: {0}, {1}, {0,1}; cycles after 3.
	if len(picked) != 5 {
		t.Fatalf("got %d combos, want 5", len(picked))
	}
	if !reflect.DeepEqual(picked[3], picked[0]) {
		t.Errorf("expected cycling: picked[3] = %v, picked[0] = %v", picked[3], picked[0])
	}
}

func TestGetStrategy_Unknown(t *testing.T) {
	if _, err := GetStrategy("clever"); err == nil {
		t.Error("unknown strategy accepted")
	}
}
