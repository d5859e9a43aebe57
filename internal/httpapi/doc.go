// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpapi's route table, kept here instead of a generated
// OpenAPI document since the only consumers are an operator CLI and this
// daemon's own integration tests.
//
//	GET  /healthz                 no auth.    liveness probe.
//	GET  /metrics                 no auth.    Prometheus exposition.
//	GET  /v1/state/activity       activity:read.  last published render/capture activity bitmaps.
//	GET  /v1/state/usage          policy:read.    last published behavior/gain/count for a usage
//	                                               (?render_usage= or ?capture_usage=).
//	GET  /v1/stream                stream:read.   websocket feed of every admin.EventBus topic.
//	POST /v1/policy/interactions   policy:write.  install one ad hoc interaction rule.
//	POST /v1/policy/reset          policy:write.  reset every interaction rule to NONE.
//	POST /v1/policy/reload         policy:write.  install a full policy document (rate limited).
//	GET  /v1/audit/entries         audit:read.    query the audit log (only if AuditStore is set).
//
// Every /v1 route requires a Bearer JWT (see TokenManager); the token's
// role claim is enforced against the listed object/action pair via
// internal/httpapi/authz.
package httpapi
