// Package main provides the batch simulation entry point.
// Executes: fixture load → simulation → portfolio aggregation →
// guardrail evaluation → reporting
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"risklab/internal/orchestrator"
	"risklab/internal/reporting"
	"risklab/internal/simulation"
	"risklab/internal/storage"
	"risklab/internal/storage/memory"
	"risklab/internal/verification"
)

func main() {
	// Parse flags
	fixturesPath := flag.String("fixtures", "", "Path to a JSON fixture file (empty uses built-in demo fixtures)")
	tenant := flag.String("tenant", "", "Tenant to simulate (empty derives it from the fixtures)")
	portfolioID := flag.String("portfolio-id", "portfolio-main", "Portfolio to aggregate (empty skips aggregation)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	verify := flag.Bool("verify", false, "Re-run each decision and compare responses bit for bit")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			os.Exit(1)
		}
		logger = l
		defer logger.Sync()
	}

	// Load fixtures
	fixtures, err := loadFixtures(*fixturesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
		os.Exit(1)
	}
	runTenant := *tenant
	if runTenant == "" && len(fixtures.Decisions) > 0 {
		runTenant = fixtures.Decisions[0].Tenant
	}

	// Create all memory stores
	stores := createAllMemoryStores()

	engine := simulation.NewEngine()

	// Phase 1-5: load → simulate → aggregate → evaluate → report
	fmt.Println("=== Decision Simulation Pipeline ===")
	orch := orchestrator.New(orchestrator.Options{
		Decisions:   stores.decisionStore,
		Documents:   stores.documentStore,
		Guardrails:  stores.guardrailStore,
		Outcomes:    stores.outcomeStore,
		Violations:  stores.violationStore,
		Adjustments: stores.adjustmentStore,
		Snapshots:   stores.snapshotStore,
		Archive:     stores.archiveStore,
		Fixtures:    fixtures,
		Tenant:      runTenant,
		PortfolioID: *portfolioID,
		Engine:      engine,
		Logger:      logger,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Pipeline completed:\n")
	fmt.Printf("  Decisions: %d\n", result.DecisionsSimulated)
	fmt.Printf("  Options: %d\n", result.OptionsSimulated)
	fmt.Printf("  Outcomes evaluated: %d\n", result.OutcomesEvaluated)
	fmt.Printf("  Breaches: %d\n", result.BreachesDetected)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	// Optional determinism verification: run every decision twice and
	// compare the responses field by field.
	divergent := 0
	if *verify {
		fmt.Println("\n=== Determinism Verification ===")
		report, err := runVerification(ctx, stores.decisionStore, runTenant, engine, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Verification error: %v\n", err)
			os.Exit(1)
		}
		divergent = report.DivergentDecisions
		fmt.Printf("  Verified: %d\n", report.TotalDecisions)
		fmt.Printf("  Matched: %d\n", report.MatchedDecisions)
		fmt.Printf("  Divergent: %d\n", report.DivergentDecisions)
		for _, r := range report.Results {
			for _, d := range r.Divergences {
				fmt.Printf("    - %s %s: %v != %v\n", r.DecisionID, d.Field, d.Expected, d.Actual)
			}
		}
		if result.Report != nil {
			result.Report.Verification = &reporting.VerificationSection{
				TotalDecisions:     report.TotalDecisions,
				MatchedDecisions:   report.MatchedDecisions,
				DivergentDecisions: report.DivergentDecisions,
			}
		}
	}

	// Write report artifacts
	if result.Report != nil {
		if err := writeArtifacts(*outputDir, result.Report); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing artifacts: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("\nSimulation run completed successfully:")
		fmt.Printf("  - %s/report.md\n", *outputDir)
		fmt.Printf("  - %s/simulations.csv\n", *outputDir)
	} else {
		fmt.Println("\nNo decisions to simulate; no artifacts written.")
	}

	if divergent > 0 {
		os.Exit(1)
	}
}

// allStores holds all memory stores.
type allStores struct {
	decisionStore   storage.DecisionStore
	documentStore   storage.DocumentStore
	guardrailStore  storage.GuardrailStore
	outcomeStore    storage.OutcomeStore
	violationStore  storage.ViolationStore
	adjustmentStore storage.AdjustmentStore
	snapshotStore   storage.PortfolioSnapshotStore
	archiveStore    storage.SimulationArchiveStore
}

// createAllMemoryStores creates all required memory stores.
func createAllMemoryStores() *allStores {
	return &allStores{
		decisionStore:   memory.NewDecisionStore(),
		documentStore:   memory.NewDocumentStore(),
		guardrailStore:  memory.NewGuardrailStore(),
		outcomeStore:    memory.NewOutcomeStore(),
		violationStore:  memory.NewViolationStore(),
		adjustmentStore: memory.NewAdjustmentStore(),
		snapshotStore:   memory.NewPortfolioSnapshotStore(),
		archiveStore:    memory.NewSimulationArchiveStore(),
	}
}

// loadFixtures reads the fixture file, falling back to built-in demo
// fixtures when no path is given.
func loadFixtures(path string) (*orchestrator.FixtureSet, error) {
	if path == "" {
		return orchestrator.DemoFixtures(), nil
	}
	return orchestrator.LoadFixtures(path)
}

// runVerification re-runs every decision of the tenant through the
// verifier.
func runVerification(ctx context.Context, decisions storage.DecisionStore, tenant string, engine *simulation.Engine, logger *zap.Logger) (*verification.Report, error) {
	list, err := decisions.ListByTenant(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	verifier := verification.NewVerifier(engine, logger)
	return verifier.VerifyAll(ctx, list)
}

// writeArtifacts renders the report to markdown and CSV files.
func writeArtifacts(outputDir string, report *reporting.Report) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	reportPath := filepath.Join(outputDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	csvPath := filepath.Join(outputDir, "simulations.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Simulations)), 0644); err != nil {
		return fmt.Errorf("write simulations csv: %w", err)
	}

	return nil
}
