// Package http exposes the booking engine over an echo JSON API.
//
// Every route except GET /healthz requires an HS256 bearer token whose "sub"
// claim names the caller and whose optional "admin" claim grants
// administrator rights.
//
// The router exposes the following endpoints:
//   - POST /bookings: create-booking. Body: bookingRequest (booking_handler.go).
//     201 with the committed bookings, 409 with the full conflict report.
//   - POST /recurring-bookings: create-recurring-booking. Same body with a
//     mandatory "recurrence" object. The series is committed all-or-nothing.
//   - GET /bookings/{id}, DELETE /bookings/{id}: read or cancel one booking.
//   - POST /bookings/{id}/reschedule: move a booking. Body {"start","end"}.
//   - DELETE /recurring-bookings/{id}: cancel every confirmed instance of a series.
//   - POST /conflicts/{id}/resolution: resolve-conflict. Body carries the
//     original request and the chosen outcome (override, waitlisted,
//     rescheduled, resource_changed, cancelled).
//   - GET /conflicts/{id}/resolutions: audit trail of a conflict.
//   - GET /rooms/{id}/availability?date=YYYY-MM-DD&days=N: check-availability.
//   - GET /rooms/{id}/conflicts?start=...&end=...: bookings overlapping an interval.
//   - GET /rooms/{id}/waitlist?start=...&end=...: pending waitlist entries.
//   - DELETE /waitlist/{id}: reject a pending waitlist entry.
//   - GET /rooms, POST /rooms, GET /rooms/{id}, PUT /rooms/{id},
//     DELETE /rooms/{id}: room catalog. Mutations require admin rights.
//
// Error bodies share errorResponse (responder.go). Validation failures return
// 422 with a field map keyed by JSON field name.
package http
