package reporting

import "telephony-relay/internal/eventlog"

// RecentActivityLimit is how many events the dashboard shows.
const RecentActivityLimit = 10

// Dashboard is the per-owner summary shown on the landing page.
type Dashboard struct {
	TotalCalls          int64            `json:"total_calls"`
	TotalSMS            int64            `json:"total_sms"`
	TotalErrors         int64            `json:"total_errors"`
	RecentActivity      []eventlog.Event `json:"recent_activity"`
	TelephonyConfigured bool             `json:"telephony_configured"`
}
