package entity

import "time"

// Outcome labels shared by the pipeline and the Prometheus collectors
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
	ResultRetried = "retried"
)

// Metrics represents collection counters
type Metrics struct {
	CapturesSeen      int64     `json:"capturesSeen"`
	CapturesSkipped   int64     `json:"capturesSkipped"`
	CapturesActive    int64     `json:"capturesActive"`
	ListFetches       int64     `json:"listFetches"`
	ListFailures      int64     `json:"listFailures"`
	DetailFetches     int64     `json:"detailFetches"`
	DetailFailures    int64     `json:"detailFailures"`
	SignSkips         int64     `json:"signSkips"`
	DuplicateItems    int64     `json:"duplicateItems"`
	ItemsCollected    int64     `json:"itemsCollected"`
	SignatureResets   int64     `json:"signatureResets"`
	StoreErrors       int64     `json:"storeErrors"`
	StoredItems       int64     `json:"storedItems"`
	Collecting        bool      `json:"collecting"`
	StartTime         time.Time `json:"startTime"`
	LastUpdateTime    time.Time `json:"lastUpdateTime"`
	LastCapturedURL   string    `json:"lastCapturedUrl,omitempty"`
	LastCollectedItem string    `json:"lastCollectedItem,omitempty"`
}
