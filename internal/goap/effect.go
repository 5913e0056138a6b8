package goap

// Effect is an atomic, named mutation of one numeric property on one target
// store: a fixed signed delta, optionally clamped to [Min, Max].
//
// Effects are immutable once constructed.
type Effect struct {
	Name     string
	Target   Target
	Property string
	Delta    float64
	Bounded  bool
	Min      float64
	Max      float64
}

// NewEffect returns an unclamped Effect adding Delta to the property.
func NewEffect(name string, target Target, property string, delta float64) *Effect {
	return &Effect{Name: name, Target: target, Property: property, Delta: delta}
}

// NewClampedEffect returns an Effect whose result is clamped to [min, max].
//
// Precondition: min <= max.
func NewClampedEffect(name string, target Target, property string, delta, min, max float64) *Effect {
	if min > max {
		panic("goap.NewClampedEffect: min must not exceed max")
	}
	return &Effect{Name: name, Target: target, Property: property, Delta: delta, Bounded: true, Min: min, Max: max}
}

// store selects the target store out of the (agent, world) pair.
func (e *Effect) store(agent, world Store) Store {
	if e.Target == TargetWorld {
		return world
	}
	return agent
}

// next computes the post-effect value for the target property.
//
// Postcondition: false when the property is absent or non-numeric.
func (e *Effect) next(agent, world Store) (float64, bool) {
	current, ok := NumberAt(e.store(agent, world), e.Property)
	if !ok {
		return 0, false
	}
	value := current + e.Delta
	if e.Bounded {
		if value < e.Min {
			value = e.Min
		}
		if value > e.Max {
			value = e.Max
		}
	}
	return value, true
}

// Apply commits the effect to the target store.
//
// Precondition: the target property exists and is numeric; callers guard via
// Action.CanPerform or Check. Apply on a missing property is a no-op.
func (e *Effect) Apply(agent, world Store) {
	value, ok := e.next(agent, world)
	if !ok {
		return
	}
	e.store(agent, world).Set(e.Property, value)
}

// Check speculatively applies the effect and returns the resulting
// hypothetical state pair without mutating the inputs.
//
// Postcondition: false when the target property is absent or non-numeric;
// otherwise the returned Concept holds fresh clones with the effect applied.
func (e *Effect) Check(agent, world Store) (*Concept, bool) {
	simAgent := CloneStore(agent)
	simWorld := CloneStore(world)
	value, ok := e.next(simAgent, simWorld)
	if !ok {
		return nil, false
	}
	e.store(simAgent, simWorld).Set(e.Property, value)
	return &Concept{Agent: simAgent, World: simWorld}, true
}
