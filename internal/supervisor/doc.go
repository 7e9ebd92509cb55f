// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package supervisor builds the suture supervision tree that runs
// Waymark's long-lived services.
//
// The tree has three child supervisors under a single root:
//
//   - data: the presence tracker and its feed subscription
//   - messaging: the WebSocket hub and the feed bridge
//   - api: the HTTP server
//
// Splitting the layers isolates failures: a crashing feed consumer is
// restarted without tearing down the HTTP server, and clients keep
// their WebSocket connections while the tracker recovers.
package supervisor
