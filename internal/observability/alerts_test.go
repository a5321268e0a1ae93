package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricRef = regexp.MustCompile(`aquabill_[a-z_]+`)

func TestBillingAlertRules(t *testing.T) {
	root := filepath.Join("..", "..")
	raw, err := os.ReadFile(filepath.Join(root, "deploy", "prometheus", "alerts", "billing.yml"))
	require.NoError(t, err)
	runbook, err := os.ReadFile(filepath.Join(root, "docs", "runbook-billing.md"))
	require.NoError(t, err)

	var rules ruleFile
	require.NoError(t, yaml.Unmarshal(raw, &rules))
	require.Len(t, rules.Groups, 1)
	require.Equal(t, "billing", rules.Groups[0].Name)

	severities := map[string]string{
		"HighErrorRate":       "critical",
		"HighLatency":         "warning",
		"UsageClampSpike":     "warning",
		"OverdueSweepFailing": "warning",
	}
	known := exportedMetricNames()

	require.Len(t, rules.Groups[0].Rules, len(severities))
	for _, rule := range rules.Groups[0].Rules {
		want, ok := severities[rule.Alert]
		require.Truef(t, ok, "unexpected alert %s", rule.Alert)
		require.Equal(t, want, rule.Labels["severity"], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)

		anchor, found := strings.CutPrefix(rule.Annotations["runbook"], "docs/runbook-billing.md#")
		require.Truef(t, found, "%s runbook must point into the billing runbook", rule.Alert)
		require.Containsf(t, string(runbook), "## "+anchorTitle(anchor), "%s runbook section", rule.Alert)

		refs := metricRef.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, refs, rule.Alert)
		for _, ref := range refs {
			require.Containsf(t, known, strings.TrimSuffix(ref, "_bucket"), "%s references unknown metric %s", rule.Alert, ref)
		}
	}
}

// anchorTitle turns "usage-clamp-spike" into "Usage clamp spike".
func anchorTitle(anchor string) string {
	words := strings.Split(anchor, "-")
	if len(words) > 0 && words[0] != "" {
		words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	}
	return strings.Join(words, " ")
}

func exportedMetricNames() []string {
	return []string{
		"aquabill_http_requests_total",
		"aquabill_http_request_duration_seconds",
		"aquabill_invoices_generated_total",
		"aquabill_usage_clamped_total",
		"aquabill_invoice_status_changes_total",
		"aquabill_jobs_total",
		"aquabill_jobs_failures_total",
		"aquabill_job_duration_seconds",
		"aquabill_job_records_processed_total",
		"aquabill_job_last_success_timestamp_seconds",
	}
}
