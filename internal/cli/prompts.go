// Prompts for cortexdesk's no-argument interactive mode, grounded
// directly on the teacher's internal/cli/prompts.go survey usage
// (Input/MultiSelect/Select/Confirm with the same validator style),
// generalized from "one ticker, one date" to "a ticker list plus a date
// range" since this repo's core is the multi-day driver, not a single
// analysis pass.
package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/CortexGo/internal/config"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// promptForTickers asks for a comma-separated ticker list.
func promptForTickers() ([]string, error) {
	var raw string
	prompt := &survey.Input{
		Message: "Enter ticker symbols, comma-separated (e.g., AAPL,MSFT):",
		Help:    "One or more stock ticker symbols to include in the run.",
	}
	err := survey.AskOne(prompt, &raw, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return fmt.Errorf("at least one ticker is required")
		}
		for _, t := range strings.Split(str, ",") {
			t = strings.TrimSpace(strings.ToUpper(t))
			if t == "" {
				continue
			}
			if !tickerPattern.MatchString(t) {
				return fmt.Errorf("invalid ticker format: %q", t)
			}
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	var tickers []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(strings.ToUpper(t))
		if t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}

// promptForDateRange asks for a start/end date, defaulting both to today
// (a single-day run) when left blank.
func promptForDateRange() (time.Time, time.Time, error) {
	today := time.Now().Format("2006-01-02")

	var startStr string
	startPrompt := &survey.Input{
		Message: "Start date (YYYY-MM-DD), Enter for today:",
		Default: today,
	}
	if err := survey.AskOne(startPrompt, &startStr); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := time.Parse("2006-01-02", strings.TrimSpace(startStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}

	var endStr string
	endPrompt := &survey.Input{
		Message: "End date (YYYY-MM-DD), Enter for same as start:",
		Default: start.Format("2006-01-02"),
	}
	if err := survey.AskOne(endPrompt, &endStr); err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(endStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}

	return start, end, nil
}

// promptForMode asks signal-only vs full portfolio mode.
func promptForMode() (config.Mode, error) {
	options := []string{"signal (direction only)", "portfolio (sized trades, carried across days)"}
	var selected string
	prompt := &survey.Select{
		Message: "Select run mode:",
		Options: options,
		Default: options[0],
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	if strings.HasPrefix(selected, "portfolio") {
		return config.ModePortfolio, nil
	}
	return config.ModeSignal, nil
}

// runWizard drives the no-argument interactive path, then delegates to
// runRange exactly as the flag-driven subcommands do.
func runWizard(cfg *config.Config) error {
	tickers, err := promptForTickers()
	if err != nil {
		return err
	}
	start, end, err := promptForDateRange()
	if err != nil {
		return err
	}
	mode, err := promptForMode()
	if err != nil {
		return err
	}

	runCfg := *cfg
	runCfg.Mode = mode

	var confirmed bool
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("Run %v over %s -> %s in %s mode?", tickers, start.Format("2006-01-02"), end.Format("2006-01-02"), mode),
		Default: true,
	}
	if err := survey.AskOne(confirmPrompt, &confirmed); err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("cancelled")
		return nil
	}

	return runRange(nil, &runCfg, tickers, start, end)
}
