package plugins

import (
	"fmt"
	"strings"

	"github.com/obsidianstack/sidecar/pkg/types"
)

// OutputTypeUnknown is returned by DetectOutputType when no output plugin id
// matches a known prefix.
const OutputTypeUnknown = "unknown"

// filterCategories maps filter plugin ids shared by every output type.
var filterCategories = map[string]types.LogType{
	"microseg":                  types.LogTypeMicroseg,
	"microseg-legacy-defaults":  types.LogTypeMicroseg,
	"microseg-field-conversion": types.LogTypeMicroseg,

	"mitm":                  types.LogTypeMITM,
	"mitm-json":             types.LogTypeMITM,
	"mitm-timestamp":        types.LogTypeMITM,
	"mitm-map-to-microseg":  types.LogTypeMITM,
	"mitm-map-drop-to-deny": types.LogTypeMITM,
	"mitm-url-parts":        types.LogTypeMITM,
	"mitm-decrypted-by":     types.LogTypeMITM,
	"mitm-field-conversion": types.LogTypeMITM,

	"suricata":         types.LogTypeSuricata,
	"suricata-data":    types.LogTypeSuricata,
	"suricata-process": types.LogTypeSuricata,

	"fqdn": types.LogTypeFQDN,

	"cmd-v1":             types.LogTypeCmd,
	"cmd-set-hostname":   types.LogTypeCmd,
	"cmd-default-reason": types.LogTypeCmd,
	"cmd-v2":             types.LogTypeCmd,

	"gw_net_stats":                 types.LogTypeGWNetStats,
	"gw_net_stats-rate-conversion": types.LogTypeGWNetStats,
	"save-raw-net-rates":           types.LogTypeGWNetStats,

	"gw_sys_stats":                  types.LogTypeGWSysStats,
	"gw_sys_stats-field-conversion": types.LogTypeGWSysStats,
	"cpu-cores-parse":               types.LogTypeGWSysStats,
	"sys-stats-hec-payload":         types.LogTypeGWSysStats,

	"tunnel_status": types.LogTypeTunnelStatus,
}

// azureFilterCategories maps ASIM filter ids that only run in the Azure pipeline.
var azureFilterCategories = map[string]types.LogType{
	"suricata-azure-flatten":      types.LogTypeSuricata,
	"suricata-asim-common":        types.LogTypeSuricata,
	"suricata-asim-mapping":       types.LogTypeSuricata,
	"suricata-azure-cleanup":      types.LogTypeSuricata,
	"suricata-asim-int-coerce":    types.LogTypeSuricata,
	"microseg-asim-common":        types.LogTypeMicroseg,
	"microseg-asim-mapping":       types.LogTypeMicroseg,
	"microseg-azure-cleanup":      types.LogTypeMicroseg,
	"microseg-asim-int-coerce":    types.LogTypeMicroseg,
	"mitm-asim-common":            types.LogTypeMITM,
	"mitm-asim-mapping":           types.LogTypeMITM,
	"mitm-azure-cleanup":          types.LogTypeMITM,
	"mitm-asim-int-coerce":        types.LogTypeMITM,
	"gw-net-stats-azure-timegen":  types.LogTypeGWNetStats,
	"gw-net-stats-azure-cleanup":  types.LogTypeGWNetStats,
	"gw-sys-stats-azure-timegen":  types.LogTypeGWSysStats,
	"gw-sys-stats-azure-cleanup":  types.LogTypeGWSysStats,
	"cmd-azure-timegen":           types.LogTypeCmd,
	"cmd-azure-cleanup":           types.LogTypeCmd,
	"tunnel-status-azure-timegen": types.LogTypeTunnelStatus,
	"tunnel-status-azure-cleanup": types.LogTypeTunnelStatus,
}

// outputCategories maps per-category output plugin ids, grouped by output type.
var outputCategories = map[string]types.LogType{
	// Splunk HEC
	"splunk-microseg":      types.LogTypeMicroseg,
	"splunk-mitm":          types.LogTypeMITM,
	"splunk-suricata":      types.LogTypeSuricata,
	"splunk-fqdn":          types.LogTypeFQDN,
	"splunk-cmd":           types.LogTypeCmd,
	"splunk-gw-net-stats":  types.LogTypeGWNetStats,
	"splunk-gw-sys-stats":  types.LogTypeGWSysStats,
	"splunk-tunnel-status": types.LogTypeTunnelStatus,

	// Azure Log Ingestion
	"azure-microseg":      types.LogTypeMicroseg,
	"azure-mitm":          types.LogTypeMITM,
	"azure-suricata":      types.LogTypeSuricata,
	"azure-gw-net-stats":  types.LogTypeGWNetStats,
	"azure-gw-sys-stats":  types.LogTypeGWSysStats,
	"azure-cmd":           types.LogTypeCmd,
	"azure-tunnel-status": types.LogTypeTunnelStatus,

	// Webhook test target
	"webhook-microseg":      types.LogTypeMicroseg,
	"webhook-mitm":          types.LogTypeMITM,
	"webhook-suricata":      types.LogTypeSuricata,
	"webhook-fqdn":          types.LogTypeFQDN,
	"webhook-cmd":           types.LogTypeCmd,
	"webhook-gw-net-stats":  types.LogTypeGWNetStats,
	"webhook-gw-sys-stats":  types.LogTypeGWSysStats,
	"webhook-tunnel-status": types.LogTypeTunnelStatus,

	// Dynatrace
	"dynatrace-build-microseg-log":      types.LogTypeMicroseg,
	"dynatrace-build-mitm-log":          types.LogTypeMITM,
	"dynatrace-build-suricata-log":      types.LogTypeSuricata,
	"dynatrace-build-fqdn-log":          types.LogTypeFQDN,
	"dynatrace-build-cmd-log":           types.LogTypeCmd,
	"dynatrace-build-tunnel-status-log": types.LogTypeTunnelStatus,
	"dynatrace-build-net-stats-mint":    types.LogTypeGWNetStats,
	"dynatrace-build-sys-stats-mint":    types.LogTypeGWSysStats,
}

// dropRule is the category and human-readable reason of a drop filter.
type dropRule struct {
	logType types.LogType
	reason  string
}

var dropRules = map[string]dropRule{
	"suricata-non-json-drop":     {types.LogTypeSuricata, "Non-JSON/notices"},
	"suricata-json-failure-drop": {types.LogTypeSuricata, "Parse failures"},
	"suricata-stats-drop":        {types.LogTypeSuricata, "Stats filtered"},
}

// throttleIDs is empty until a throttle filter ships in the pipeline configs.
var throttleIDs = map[string]struct{}{}

// globalFilterIDs are filters that run for every category.
var globalFilterIDs = map[string]struct{}{
	"date-to-timestamp": {},
	"add-unix-time":     {},
}

// outputTypePrefix pairs an output plugin id prefix with its output type.
type outputTypePrefix struct {
	prefix     string
	outputType string
}

// outputTypePrefixes is checked in order; the first match wins, so the more
// specific dynatrace prefixes come before the generic one.
var outputTypePrefixes = []outputTypePrefix{
	{"splunk-", "splunk-hec"},
	{"azure-", "azure-log-ingestion"},
	{"webhook-", "webhook-test"},
	{"dynatrace-metrics", "dynatrace-metrics"},
	{"dynatrace-logs", "dynatrace-logs"},
	{"dynatrace-", "dynatrace"},
}

// sharedOutputs are outputs that carry more than one category.
var sharedOutputs = map[string][]types.LogType{
	"dynatrace-logs": {
		types.LogTypeMicroseg,
		types.LogTypeMITM,
		types.LogTypeSuricata,
		types.LogTypeFQDN,
		types.LogTypeCmd,
		types.LogTypeTunnelStatus,
	},
	"dynatrace-metrics": {
		types.LogTypeGWNetStats,
		types.LogTypeGWSysStats,
	},
}

// categories is the merged id → category lookup, built once.
var categories = buildCategories()

func buildCategories() map[string]types.LogType {
	all := make(map[string]types.LogType,
		len(filterCategories)+len(dropRules)+len(outputCategories)+len(azureFilterCategories))
	for id, lt := range filterCategories {
		all[id] = lt
	}
	for id, r := range dropRules {
		all[id] = r.logType
	}
	for id, lt := range outputCategories {
		all[id] = lt
	}
	for id, lt := range azureFilterCategories {
		all[id] = lt
	}
	return all
}

// Category returns the category a plugin id belongs to. ok is false for
// unknown ids and for shared outputs, which have no single category.
func Category(pluginID string) (lt types.LogType, ok bool) {
	lt, ok = categories[pluginID]
	return lt, ok
}

// IsDrop reports whether pluginID is a filter that drops events.
func IsDrop(pluginID string) bool {
	_, ok := dropRules[pluginID]
	return ok
}

// IsThrottle reports whether pluginID is a throttle filter.
func IsThrottle(pluginID string) bool {
	_, ok := throttleIDs[pluginID]
	return ok
}

// IsGlobalFilter reports whether pluginID is a filter shared by all categories.
func IsGlobalFilter(pluginID string) bool {
	_, ok := globalFilterIDs[pluginID]
	return ok
}

// IsOutput reports whether pluginID is a known output, either per-category
// or shared.
func IsOutput(pluginID string) bool {
	if _, ok := outputCategories[pluginID]; ok {
		return true
	}
	_, ok := sharedOutputs[pluginID]
	return ok
}

// DropReason returns the human-readable reason for a drop filter.
func DropReason(pluginID string) (string, bool) {
	r, ok := dropRules[pluginID]
	return r.reason, ok
}

// SharedCategories returns the categories served by a shared output, or nil.
// The returned slice must not be modified.
func SharedCategories(pluginID string) []types.LogType {
	return sharedOutputs[pluginID]
}

// Serves reports whether output pluginID carries events of category lt,
// either directly or as a shared output.
func Serves(pluginID string, lt types.LogType) bool {
	if direct, ok := outputCategories[pluginID]; ok && direct == lt {
		return true
	}
	for _, s := range sharedOutputs[pluginID] {
		if s == lt {
			return true
		}
	}
	return false
}

// DetectOutputType returns the output type of the first id that matches a
// known prefix, or OutputTypeUnknown.
func DetectOutputType(outputIDs []string) string {
	for _, id := range outputIDs {
		for _, p := range outputTypePrefixes {
			if strings.HasPrefix(id, p.prefix) {
				return p.outputType
			}
		}
	}
	return OutputTypeUnknown
}

// DestinationLabel describes where an output type ships events. destinations
// maps output type to a host or URL; missing entries render as "unknown".
func DestinationLabel(outputType string, destinations map[string]string) string {
	dest := func(key, fallback string) string {
		if v := destinations[key]; v != "" {
			return v
		}
		return fallback
	}
	switch outputType {
	case "splunk-hec":
		return fmt.Sprintf("Splunk HEC → %s", dest("splunk-hec", "unknown:8088"))
	case "azure-log-ingestion":
		return fmt.Sprintf("Azure Log Analytics → %s", dest("azure-log-ingestion", "unknown"))
	case "webhook-test":
		return fmt.Sprintf("Webhook → %s", dest("webhook-test", "http://localhost:8080"))
	case "dynatrace", "dynatrace-logs", "dynatrace-metrics":
		return fmt.Sprintf("Dynatrace → %s", dest(outputType, dest("dynatrace", "unknown")))
	default:
		return outputType
	}
}
