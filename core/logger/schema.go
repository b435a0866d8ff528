package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

// Closed vocabularies; values outside them are dropped (cache, outcome) or kept verbatim (status).
var (
	statusValues  = set("ok", "fail", "skip", "retry", "rate_limited", "cancelled", "rejected")
	cacheValues   = set("hit", "miss", "expired", "refresh")
	outcomeValues = set("ok", "fail", "rejected", "cancelled", "rate_limited")
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func inVocabulary(vocab map[string]struct{}, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	_, ok := vocab[v]
	return v, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"state",
	"from",
	"to",
	"cmd",
	"tier",
	"training_type_id",
	"slot_id",
	"booking_id",
	"remaining",
	"active",
	"limit",
	"count",
	"cache",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"retryable",
	"attempts",
	"backoff_ms",
	"job_id",
}
