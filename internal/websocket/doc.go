// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package websocket pushes live map updates to connected browsers.
//
// The hub fans out two kinds of messages: marker commands produced by the
// presence tracker, and change notifications from the feed that tell clients
// to re-fetch community locations. Clients that fall behind are disconnected
// rather than buffered without bound; a reconnecting client receives a fresh
// marker snapshot on its next tracker reconcile.
package websocket
