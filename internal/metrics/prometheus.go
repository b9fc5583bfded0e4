package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// FormatPrometheus formats metrics in Prometheus text format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func FormatPrometheus(snap Snapshot) string {
	var sb strings.Builder

	writeHeader(&sb, "moti_uptime_seconds", "Time since the proxy started", "gauge")
	sb.WriteString(fmt.Sprintf("moti_uptime_seconds %d\n\n", snap.Uptime))

	writeHeader(&sb, "moti_requests_total", "Total number of requests by endpoint", "counter")
	writeLabeled(&sb, "moti_requests_total", "endpoint", snap.TotalRequests, false)

	writeHeader(&sb, "moti_request_errors_total", "Total number of error responses by endpoint and code", "counter")
	for _, key := range sortedKeys(snap.RequestErrors) {
		endpoint, code, _ := strings.Cut(key, "|")
		sb.WriteString(fmt.Sprintf("moti_request_errors_total{endpoint=%q,code=%q} %d\n", endpoint, code, snap.RequestErrors[key]))
	}
	sb.WriteString("\n")

	writeHeader(&sb, "moti_requests_in_progress", "Current number of requests being processed", "gauge")
	writeLabeled(&sb, "moti_requests_in_progress", "endpoint", snap.RequestsInProgress, true)

	writeHeader(&sb, "moti_request_duration_ms_total", "Total request duration in milliseconds", "counter")
	writeLabeled(&sb, "moti_request_duration_ms_total", "endpoint", snap.TotalRequestsDur, false)

	writeHeader(&sb, "moti_provider_requests_total", "Total upstream provider calls", "counter")
	writeLabeled(&sb, "moti_provider_requests_total", "provider", snap.ProviderRequests, false)

	writeHeader(&sb, "moti_provider_errors_total", "Total failed upstream provider calls", "counter")
	writeLabeled(&sb, "moti_provider_errors_total", "provider", snap.ProviderErrors, false)

	writeHeader(&sb, "moti_provider_latency_ms_total", "Total upstream latency in milliseconds", "counter")
	writeLabeled(&sb, "moti_provider_latency_ms_total", "provider", snap.ProviderLatency, false)

	writeHeader(&sb, "moti_prompt_tokens_total", "Total prompt tokens reported by providers", "counter")
	sb.WriteString(fmt.Sprintf("moti_prompt_tokens_total %d\n\n", snap.TotalPromptTokens))

	writeHeader(&sb, "moti_completion_tokens_total", "Total completion tokens reported by providers", "counter")
	sb.WriteString(fmt.Sprintf("moti_completion_tokens_total %d\n\n", snap.TotalCompletionTokens))

	writeHeader(&sb, "moti_replies_total", "Replies returned to clients", "counter")
	writeLabeled(&sb, "moti_replies_total", "provider", snap.Replies, false)

	writeHeader(&sb, "moti_repetitive_replies_total", "Replies annotated as repetitive", "counter")
	writeLabeled(&sb, "moti_repetitive_replies_total", "provider", snap.RepetitiveReplies, false)

	writeHeader(&sb, "moti_reply_history_length", "Entries currently held in the reply history", "gauge")
	sb.WriteString(fmt.Sprintf("moti_reply_history_length %d\n\n", snap.HistoryLength))

	writeHeader(&sb, "moti_ledger_dropped_total", "Ledger entries discarded because the write queue was full", "counter")
	sb.WriteString(fmt.Sprintf("moti_ledger_dropped_total %d\n\n", snap.LedgerDropped))

	return sb.String()
}

func writeHeader(sb *strings.Builder, name, help, kind string) {
	sb.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
	sb.WriteString(fmt.Sprintf("# TYPE %s %s\n", name, kind))
}

func writeLabeled(sb *strings.Builder, name, label string, values map[string]int64, positiveOnly bool) {
	for _, key := range sortedKeys(values) {
		v := values[key]
		if positiveOnly && v <= 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s{%s=%q} %d\n", name, label, key, v))
	}
	sb.WriteString("\n")
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
