package goap_test

import (
	"testing"

	"github.com/ashkettle/forage/internal/goap"
)

func campEffectStores() (*goap.MapStore, *goap.MapStore) {
	agent := goap.NewMapStoreFrom(map[string]any{"hunger": 2, "wood": 0})
	world := goap.NewMapStoreFrom(map[string]any{"fire": 9})
	return agent, world
}

func TestEffect_ApplyAddsDelta(t *testing.T) {
	agent, world := campEffectStores()
	e := goap.NewEffect("stoke", goap.TargetWorld, "fire", 10)
	e.Apply(agent, world)
	if v, _ := goap.NumberAt(world, "fire"); v != 19 {
		t.Fatalf("fire after apply: got %v, want 19", v)
	}
}

func TestEffect_ApplyClampsLowerBound(t *testing.T) {
	agent, world := campEffectStores()
	e := goap.NewClampedEffect("digest", goap.TargetAgent, "hunger", -4, 0, 100)
	e.Apply(agent, world)
	if v, _ := goap.NumberAt(agent, "hunger"); v != 0 {
		t.Fatalf("hunger must clamp at 0, got %v", v)
	}
}

func TestEffect_ApplyClampsUpperBound(t *testing.T) {
	agent, world := campEffectStores()
	e := goap.NewClampedEffect("gorge", goap.TargetAgent, "hunger", 150, 0, 100)
	e.Apply(agent, world)
	if v, _ := goap.NumberAt(agent, "hunger"); v != 100 {
		t.Fatalf("hunger must clamp at 100, got %v", v)
	}
}

func TestEffect_ApplyMissingPropertyIsNoOp(t *testing.T) {
	agent, world := campEffectStores()
	e := goap.NewEffect("phantom", goap.TargetAgent, "mana", 5)
	e.Apply(agent, world)
	if agent.Has("mana") {
		t.Fatal("Apply must not create missing properties")
	}
}

func TestEffect_CheckReturnsHypotheticalWithoutMutating(t *testing.T) {
	agent, world := campEffectStores()
	e := goap.NewEffect("stoke", goap.TargetWorld, "fire", 10)

	concept, ok := e.Check(agent, world)
	if !ok {
		t.Fatal("Check on an existing property must succeed")
	}
	if v, _ := goap.NumberAt(concept.World, "fire"); v != 19 {
		t.Fatalf("hypothetical fire: got %v, want 19", v)
	}
	if v, _ := goap.NumberAt(world, "fire"); v != 9 {
		t.Fatalf("Check must not mutate the input: got %v, want 9", v)
	}
}

func TestEffect_CheckFailsOnMissingProperty(t *testing.T) {
	agent, world := campEffectStores()
	e := goap.NewEffect("phantom", goap.TargetWorld, "rain", -1)
	if concept, ok := e.Check(agent, world); ok || concept != nil {
		t.Fatalf("Check on missing property: got (%v, %v), want (nil, false)", concept, ok)
	}
}

func TestNewClampedEffect_PanicsOnInvertedBounds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for min > max")
		}
	}()
	goap.NewClampedEffect("bad", goap.TargetAgent, "hunger", 1, 10, 0)
}
