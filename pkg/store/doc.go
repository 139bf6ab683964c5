// Package store implements the unidirectional-data-flow store at the center
// of secdash: a single state tree owned by a root reducer, updated one
// action at a time in strict dispatch order.
//
// State lives in a reactive signal, so selectors built with pkg/reactive
// memos recompute only when a dispatch actually changes state. Effect
// pipelines observe the action stream via SubscribeActions and feed their
// async outcomes back through Dispatch.
package store
