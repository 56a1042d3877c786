// Package events streams daemon happenings to WebSocket subscribers: device
// arrivals and departures, touch prompts, and operation completions.
//
// The stream is one-way and best-effort. Slow subscribers lose events rather
// than slowing the device worker down.
package events
