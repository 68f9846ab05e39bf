// Command htnsat compiles a grounded HTN planning problem to SAT and
// searches for a plan by incrementally deepening a Plan Decomposition
// Tree, following gini's own cmd/gini: one flat set of flags, a single
// process-wide logger, no subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/irifrance/gini"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/htnopts"
	"github.com/gaspard-quenard/sibylsat-po/planner"
)

var (
	partialOrder       = flag.Bool("partial-order", false, "enable partial-order expansion and ordering clauses")
	useMutexes         = flag.Bool("use-mutexes", false, "emit at-most-one clauses per mutex group (mutex refinement runs with -use-effect-inference regardless)")
	useEffectInference = flag.Bool("use-effect-inference", false, "compute method preconditions/effects and enable method-precondition clauses")
	removeMPA          = flag.Bool("remove-method-precondition-action", false, "fold a synthetic first-subtask precondition action into its method's precondition set")
	maxDepth           = flag.Int("max-depth", 0, "layer cap (0 means the planner's own default)")
	verifyPlan         = flag.Bool("verify-plan", false, "request plan verification; this CLI supplies no verifier, so the planner only logs a warning")
	seed               = flag.Int64("seed", 0, "accepted but unused: no seed is passed to the SAT solver")
	printVarNames      = flag.Bool("print-variable-names", false, "emit human-readable names for every SAT variable to -pvn-out")
	pvnOut             = flag.String("pvn-out", "", "file to write variable names to (stderr if unset and -print-variable-names is set)")
	allowRelaxation    = flag.Bool("allow-relaxation", false, "enable leaf-overleaf relaxation before deepening on UNSAT")
)

const usage = `usage: %s [flags] <grounded-problem-file>

%s reads a grounded HTN planning problem (spec.md §6 layout) and
searches for a plan via incrementally-deepened SAT encoding.

`

func main() {
	flag.Usage = func() {
		p := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, usage, p, p)
		flag.PrintDefaults()
	}
	log.SetPrefix("htnsat: ")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run(path string) error {
	r, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	in, err := ground.Parse(r)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	var pvnWriter io.Writer = os.Stderr
	if *printVarNames && *pvnOut != "" {
		f, err := os.Create(*pvnOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", *pvnOut, err)
		}
		defer f.Close()
		pvnWriter = f
	}

	opts := htnopts.Options{
		PartialOrder:                   *partialOrder,
		UseMutexes:                     *useMutexes,
		UseEffectInference:             *useEffectInference,
		RemoveMethodPreconditionAction: *removeMPA,
		MaxDepth:                       *maxDepth,
		VerifyPlan:                     *verifyPlan,
		Seed:                           *seed,
		PrintVariableNames:             *printVarNames,
		AllowRelaxation:                *allowRelaxation,
		Logger:                         log.Default(),
		PVNWriter:                      pvnWriter,
	}
	if opts.RemoveMethodPreconditionAction {
		ground.FoldMethodPreconditionActions(in)
	}

	s := gini.New()
	p := planner.New(s, in, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := p.FindPlan(ctx)
	if err != nil {
		return fmt.Errorf("find plan: %w", err)
	}

	switch res.Status {
	case planner.PlanFound:
		fmt.Print(res.Text)
		log.Printf("plan found: %d steps, depth %d, %d SAT calls", res.Size, p.Stats.DepthReached, p.Stats.SATCalls)
		return nil
	case planner.Cancelled:
		log.Println("cancelled")
		os.Exit(1)
	case planner.NoPlan:
		log.Print(res.Err)
		os.Exit(1)
	case planner.Error:
		return res.Err
	}
	return nil
}
