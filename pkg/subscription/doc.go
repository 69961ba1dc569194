// Package subscription manages the per-connection subscriptions that turn
// model mutations into PUB notifications.
//
// A Manager resolves a JSON Pointer against the model, sends the current
// value as a snapshot and then forwards every patch observed below it,
// rewritten by Translate to a root-relative path. Patches go through a
// Batcher, which coalesces everything enqueued during one model turn into a
// single notification.
package subscription
