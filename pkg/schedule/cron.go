package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronParser parses standard five field cron expressions
type CronParser struct {
	parser cron.Parser
}

// NewCronParser creates a new CronParser
func NewCronParser() *CronParser {
	return &CronParser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate checks if a cron expression is valid
func (p *CronParser) Validate(cronExpr string) error {
	_, err := p.parser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Next calculates the next execution time after from, in UTC
func (p *CronParser) Next(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := p.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(from.UTC()), nil
}
