package metrics

import (
	"sync"
	"time"
)

// Collector tracks relay counters and renders them in Prometheus text format.
type Collector struct {
	mu sync.RWMutex

	// Request metrics
	totalRequests      map[string]int64 // by endpoint
	totalRequestsDur   map[string]int64 // total duration in ms
	requestErrors      map[string]int64 // by "endpoint|code"
	requestsInProgress map[string]int64

	// Provider metrics
	providerRequests map[string]int64
	providerErrors   map[string]int64
	providerLatency  map[string]int64 // total latency in ms

	// Token usage
	totalPromptTokens     int64
	totalCompletionTokens int64

	// Repetition guard
	replies           map[string]int64 // by provider
	repetitiveReplies map[string]int64 // by provider
	historyLength     int64

	startTime time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		totalRequests:      make(map[string]int64),
		totalRequestsDur:   make(map[string]int64),
		requestErrors:      make(map[string]int64),
		requestsInProgress: make(map[string]int64),
		providerRequests:   make(map[string]int64),
		providerErrors:     make(map[string]int64),
		providerLatency:    make(map[string]int64),
		replies:            make(map[string]int64),
		repetitiveReplies:  make(map[string]int64),
		startTime:          time.Now(),
	}
}

// RecordRequest records a finished request to an endpoint.
func (c *Collector) RecordRequest(endpoint string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests[endpoint]++
	c.totalRequestsDur[endpoint] += duration.Milliseconds()
}

// RecordError records an error response with its wire code.
func (c *Collector) RecordError(endpoint, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestErrors[endpoint+"|"+code]++
}

// RecordRequestStart increments in-progress requests.
func (c *Collector) RecordRequestStart(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsInProgress[endpoint]++
}

// RecordRequestEnd decrements in-progress requests.
func (c *Collector) RecordRequestEnd(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsInProgress[endpoint]--
}

// RecordProviderCall records one upstream call.
func (c *Collector) RecordProviderCall(provider string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.providerRequests[provider]++
	c.providerLatency[provider] += duration.Milliseconds()
	if err != nil {
		c.providerErrors[provider]++
	}
}

// RecordTokenUsage records token usage reported by a provider.
func (c *Collector) RecordTokenUsage(promptTokens, completionTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalPromptTokens += promptTokens
	c.totalCompletionTokens += completionTokens
}

// RecordReply records a reply returned to a client and the history size after it.
func (c *Collector) RecordReply(provider string, repetitive bool, historyLength int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.replies[provider]++
	if repetitive {
		c.repetitiveReplies[provider]++
	}
	c.historyLength = int64(historyLength)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Uptime                int64
	TotalRequests         map[string]int64
	TotalRequestsDur      map[string]int64
	RequestErrors         map[string]int64
	RequestsInProgress    map[string]int64
	ProviderRequests      map[string]int64
	ProviderErrors        map[string]int64
	ProviderLatency       map[string]int64
	TotalPromptTokens     int64
	TotalCompletionTokens int64
	Replies               map[string]int64
	RepetitiveReplies     map[string]int64
	HistoryLength         int64

	// LedgerDropped is filled in by the caller from an async ledger, if any.
	LedgerDropped int64
}

// GetSnapshot returns a snapshot of current metrics.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Uptime:                int64(time.Since(c.startTime).Seconds()),
		TotalRequests:         copyMap(c.totalRequests),
		TotalRequestsDur:      copyMap(c.totalRequestsDur),
		RequestErrors:         copyMap(c.requestErrors),
		RequestsInProgress:    copyMap(c.requestsInProgress),
		ProviderRequests:      copyMap(c.providerRequests),
		ProviderErrors:        copyMap(c.providerErrors),
		ProviderLatency:       copyMap(c.providerLatency),
		TotalPromptTokens:     c.totalPromptTokens,
		TotalCompletionTokens: c.totalCompletionTokens,
		Replies:               copyMap(c.replies),
		RepetitiveReplies:     copyMap(c.repetitiveReplies),
		HistoryLength:         c.historyLength,
	}
}

func copyMap(m map[string]int64) map[string]int64 {
	result := make(map[string]int64, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
