package models

// ScrapeTarget is one managed service area to poll for provider demand.
// Targets are produced by the site directory and immutable for the run.
type ScrapeTarget struct {
	Station string `json:"station"`
	AreaID  string `json:"area_id"`
}
