package support

import (
	"fmt"
	"os"

	"github.com/cucumber/godog"

	"slidesync/internal/instructions"
)

// RegisterSteps wires every step phrase the tracker's .feature files use
// onto this scenario's TestContext.
func (c *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a slide deck of (\d+) slides$`, c.aSlideDeckOf)
	sc.Step(`^footage holding slide (\d+) for (\d+) frames$`, c.footageHoldingSlideForFrames)
	sc.Step(`^footage holding slide (\d+) for (\d+) frames, then (\d+) frames of noise$`, c.footageHoldingSlideForFramesThenNoise)
	sc.Step(`^footage of (\d+) frames that match no slide$`, c.footageOfFramesThatMatchNoSlide)
	sc.Step(`^the tracker runs to completion$`, c.theTrackerRunsToCompletion)
	sc.Step(`^the script has (\d+) instructions?$`, c.theScriptHasInstructions)
	sc.Step(`^the script's current slide is (\d+)$`, c.theScriptsCurrentSlideIs)
	sc.Step(`^instruction (\d+) is "([^"]*)"$`, c.instructionIs)
	sc.Step(`^the tracker run fails$`, c.theTrackerRunFails)
	sc.Step(`^no script is produced$`, c.noScriptIsProduced)
	sc.Step(`^the script is cached and reloaded$`, c.theScriptIsCachedAndReloaded)
	sc.Step(`^the reloaded script matches the original script$`, c.theReloadedScriptMatchesOriginal)
}

func (c *TestContext) aSlideDeckOf(n int) error {
	c.BuildDeck(n)
	return nil
}

func (c *TestContext) footageHoldingSlideForFrames(slideOneBased, frames int) error {
	idx := slideOneBased - 1
	for i := 0; i < frames; i++ {
		c.schedule = append(c.schedule, idx)
	}
	return nil
}

func (c *TestContext) footageHoldingSlideForFramesThenNoise(slideOneBased, frames, noiseFrames int) error {
	if err := c.footageHoldingSlideForFrames(slideOneBased, frames); err != nil {
		return err
	}
	for i := 0; i < noiseFrames; i++ {
		c.schedule = append(c.schedule, noiseFrame)
	}
	return nil
}

func (c *TestContext) footageOfFramesThatMatchNoSlide(n int) error {
	c.UseUnrecognizableFootage(n)
	return nil
}

func (c *TestContext) theTrackerRunsToCompletion() error {
	c.Run()
	return nil
}

func (c *TestContext) theTrackerRunFails() error {
	c.Run()
	if c.runErr == nil {
		return fmt.Errorf("expected the tracker run to fail, but it succeeded")
	}
	return nil
}

func (c *TestContext) noScriptIsProduced() error {
	if c.runErr == nil {
		return fmt.Errorf("expected no script to be produced, but the run succeeded")
	}
	return nil
}

func (c *TestContext) theScriptHasInstructions(n int) error {
	if c.stream == nil {
		return fmt.Errorf("no script was produced")
	}
	if c.stream.Len() != n {
		return fmt.Errorf("expected %d instructions, got %d: %+v", n, c.stream.Len(), c.stream.Instructions())
	}
	return nil
}

func (c *TestContext) theScriptsCurrentSlideIs(oneBased int) error {
	if c.stream == nil {
		return fmt.Errorf("no script was produced")
	}
	if c.stream.CurrentIndex() != oneBased-1 {
		return fmt.Errorf("expected current slide %d, got %d", oneBased, c.stream.CurrentIndex()+1)
	}
	return nil
}

func (c *TestContext) instructionIs(oneBasedIdx int, verb string) error {
	if c.stream == nil || oneBasedIdx < 1 || oneBasedIdx > c.stream.Len() {
		return fmt.Errorf("instruction %d out of range", oneBasedIdx)
	}
	ins := c.stream.Instructions()[oneBasedIdx-1]
	got := verbName(ins)
	return assertEqual(verb, got)
}

func (c *TestContext) theScriptIsCachedAndReloaded() error {
	dir, err := os.MkdirTemp("", "slidesync-cache-scenario-*")
	if err != nil {
		return err
	}
	reloaded, err := c.CacheAndReload(dir)
	if err != nil {
		return err
	}
	c.reloaded = reloaded
	return nil
}

func (c *TestContext) theReloadedScriptMatchesOriginal() error {
	if c.reloaded == nil {
		return fmt.Errorf("no reloaded script available")
	}
	if c.reloaded.String() != c.stream.String() {
		return fmt.Errorf("reloaded script differs:\nwant:\n%s\ngot:\n%s", c.stream.String(), c.reloaded.String())
	}
	return nil
}

func verbName(ins instructions.Instruction) string {
	switch ins.Code {
	case instructions.Next:
		return "next"
	case instructions.Previous:
		return "previous"
	case instructions.GoTo:
		return fmt.Sprintf("go to %d", ins.Data+1)
	case instructions.End:
		return "end"
	default:
		return "unknown"
	}
}

func assertEqual(want, got string) error {
	if want != got {
		return fmt.Errorf("expected %q, got %q", want, got)
	}
	return nil
}
