package param

import (
	"fmt"
	"time"
)

// Job is one (site, category) unit of work handed to the scraper.
type Job struct {
	SiteID       string `json:"site" yaml:"site"`
	CategorySlug string `json:"category" yaml:"category"`
}

func (j Job) String() string {
	return fmt.Sprintf("%s/%s", j.SiteID, j.CategorySlug)
}

// DelayRange 两次翻页之间的随机等待区间
type DelayRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// DefaultDelayRange matches the 1-3s politeness pause between navigations.
func DefaultDelayRange() DelayRange {
	return DelayRange{Min: time.Second, Max: 3 * time.Second}
}

// Timeouts bound the blocking browser operations of a run.
type Timeouts struct {
	Navigation  time.Duration `json:"navigation"`
	ElementWait time.Duration `json:"element_wait"`
}

func DefaultTimeouts() Timeouts {
	return Timeouts{Navigation: 60 * time.Second, ElementWait: 30 * time.Second}
}
