// Package http exposes the telehealth coordinator over HTTP.
//
// The router exposes the following endpoints:
//   - GET|POST /api/provider?action=<name>: provider-facing actions. The caller
//     is resolved from a staff identity token carried as `Authorization: Bearer`
//     or in the `telehealth_identity` cookie.
//   - GET|POST /api/portal?action=<name>: patient-facing actions, mounted only
//     when the patient portal is enabled. Reachable actions are launch_data,
//     heartbeat, patient_ready_check and settings.
//   - GET /healthz: pings the session store.
//
// Parameters are read from the query string and from form-encoded POST
// bodies. The forgery token for set_status may also be supplied in the
// `APICSRFTOKEN` or `X-CSRF-Token` header. Successful responses are one JSON
// object; failures are `{"error": "..."}` with a status derived from the
// coordinator's status class. `action=settings&format=script` returns the
// settings bundle as a JavaScript assignment for direct inclusion in a page.
package http
