// Package alerts evaluates threshold rules against every stats snapshot the
// store publishes, and delivers fire and resolve notifications to Teams,
// Slack or generic HTTP webhooks.
package alerts
