package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelOrgID     = "org_id"
	ProfilingLabelGateway   = "payment_gateway"
)

// MaxLabelValueLength truncates label values
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped from profiling labels. Per-entity ids
// would create one series per lease or payment.
var highCardinalityLabels = map[string]bool{
	"lease_id":   true,
	"payment_id": true,
	"invoice_id": true,
	"tenant_id":  true,
	"user_id":    true,
	"request_id": true,
	"trace_id":   true,
	"span_id":    true,
}

// WithProfilingLabels runs fn with Pyroscope labels attached to its samples.
// Empty and high-cardinality labels are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels labels a service operation
func OperationLabels(operation, orgID string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+2)
	maps.Copy(labels, extra)
	labels[ProfilingLabelOperation] = operation
	if orgID != "" {
		labels[ProfilingLabelOrgID] = orgID
	}
	return labels
}

// HTTPRequestLabels labels an HTTP handler by route template
func HTTPRequestLabels(route, method string) map[string]string {
	labels := make(map[string]string, 2)
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	return labels
}

// sanitizeLabels returns key/value pairs sorted by sanitized key. When two
// keys sanitize to the same name, the value of the smaller raw key is kept.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	raw := make([]string, 0, len(labels))
	for k := range labels {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	clean := make(map[string]string, len(labels))
	for _, rawKey := range raw {
		value := labels[rawKey]
		key := sanitizeLabelKey(rawKey)
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if _, seen := clean[key]; seen {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		clean[key] = value
	}
	if len(clean) == 0 {
		return nil
	}

	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, key, clean[key])
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
