package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashkettle/forage/internal/goap"
	"github.com/ashkettle/forage/internal/scenario"
	"github.com/ashkettle/forage/internal/scripting"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to scenario YAML file")
	goalID := flag.String("goal", "", "goal to plan for; defaults to the scenario's first goal")
	contentDir := flag.String("content", ".", "content root that scenario script_dir paths resolve against")
	depth := flag.Int("depth", 0, "planning depth; 0 keeps the planner default")
	verbose := flag.Bool("verbose", false, "log scripting activity to stderr")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: planrun -scenario <file> [-goal <id>] [-content <dir>] [-depth <n>] [-verbose]")
		os.Exit(1)
	}

	s, err := scenario.LoadFromFile(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	var scriptMgr *scripting.Manager
	if s.ScriptDir != "" {
		scriptMgr = scripting.NewManager(logger)
		defer scriptMgr.Close()
		dir := filepath.Join(*contentDir, s.ScriptDir)
		if err := scriptMgr.LoadScenario(s.ID, dir, s.ScriptInstructionLimit); err != nil {
			fmt.Fprintf(os.Stderr, "error: loading scripts from %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	var builder *scenario.Builder
	if scriptMgr != nil {
		builder = scenario.NewBuilder(scriptMgr)
	} else {
		builder = scenario.NewBuilder(nil)
	}
	built, err := builder.Build(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(built.Goals) == 0 {
		fmt.Fprintf(os.Stderr, "error: scenario %q declares no goals\n", s.ID)
		os.Exit(1)
	}

	goal := built.Goals[0]
	if *goalID != "" {
		g, ok := built.Goal(*goalID)
		if !ok {
			fmt.Fprintf(os.Stderr, "error: goal %q not found in scenario %q\n", *goalID, s.ID)
			os.Exit(1)
		}
		goal = g
	}

	planner := goap.NewPlanner()
	if *depth > 0 {
		planner.SetDepth(*depth)
	}
	planner.SetActions(built.Actions)
	planner.SetAmbientActions(built.Ambient)

	start := time.Now()
	result, ok := planner.Plan(goal, built.Agent, built.World)
	elapsed := time.Since(start)
	if !ok {
		fmt.Fprintf(os.Stderr, "no plan produced for goal %q\n", goal.Name)
		os.Exit(1)
	}

	tag := "validated"
	if !result.Validated {
		tag = "unvalidated"
	}
	fmt.Printf("plan for goal %q: %d actions, cost %g, %s, %d iterations\n",
		goal.Name, len(result.Actions), result.Cost, tag, result.Iterations)
	for i, action := range result.Actions {
		fmt.Printf("  %2d. %s\n", i+1, action.Name)
	}

	reached := replay(built, goal, result.Actions)

	fmt.Printf("planned in %s\n", elapsed.Round(time.Microsecond))
	if !result.Validated || !reached {
		os.Exit(1)
	}
}

// replay walks the plan over copies of the scenario stores, folding ambient
// actions before each step the same way the planner's simulation does, and
// prints the property values after every step.
func replay(built *scenario.Built, goal *goap.Goal, plan goap.Plan) bool {
	agent := goap.CloneStore(built.Agent)
	world := goap.CloneStore(built.World)

	fmt.Println("replay:")
	fmt.Printf("  start             agent%s world%s\n", formatStore(agent), formatStore(world))
	for i, action := range plan {
		for _, amb := range built.Ambient {
			if amb.CanPerform(agent, world) {
				goap.ApplyAction(agent, world, amb)
			}
		}
		if !action.CanPerform(agent, world) {
			fmt.Printf("  step %-2d %-10s precondition failed, replay aborted\n", i+1, action.Name)
			return false
		}
		goap.ApplyAction(agent, world, action)
		fmt.Printf("  step %-2d %-10s agent%s world%s\n", i+1, action.Name, formatStore(agent), formatStore(world))
	}

	if goap.GoalReached(goal, agent, world) {
		fmt.Println("goal reached")
		return true
	}
	fmt.Println("goal not reached")
	return false
}

func formatStore(s goap.Store) string {
	keys := s.Keys()
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := goap.NumberAt(s, k); ok {
			parts = append(parts, fmt.Sprintf("%s:%g", k, v))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}
