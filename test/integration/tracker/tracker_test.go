package tracker_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"slidesync/test/integration/tracker/support"
)

// testContext holds the scenario state shared by every step in the
// currently-running scenario.
var testContext *support.TestContext

// InitializeScenario wires a fresh TestContext and its step definitions
// into each scenario. Unlike the CLI suite this mirrors, there is no
// binary to build or subprocess to launch: every step here drives the
// tracker, slide library, and synthetic video source in-process.
func InitializeScenario(sc *godog.ScenarioContext) {
	testContext = support.NewTestContext()
	testContext.RegisterSteps(sc)

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if cleanupErr := testContext.Cleanup(); cleanupErr != nil {
			fmt.Printf("warning: failed to clean up scenario context: %v\n", cleanupErr)
		}
		return ctx, nil
	})
}

// TestFeatures runs every .feature file under features/ through the godog
// suite, one sub-test per file.
func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}
	tags := os.Getenv("GODOG_TAGS")

	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		found = true
		featurePath := filepath.Join("features", e.Name())

		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     tags,
					Paths:    []string{featurePath},
					TestingT: t,
				},
			}

			if suite.Run() != 0 {
				t.Fatalf("non-zero status returned for %s", featurePath)
			}
		})
	}

	if !found {
		t.Fatalf("no .feature files found in features/")
	}
}
