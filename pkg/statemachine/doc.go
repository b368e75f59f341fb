// Package statemachine is the counter-threshold engine at the center of
// this module: it decides when a stream of reported observations should
// flip a target between healthy, unhealthy, and their hysteretic "mostly"
// intermediates. Apart from the engine's registry, which writes a target's
// initial state key on add and deletes its state and counter keys on
// remove/clear, it is the only writer of those per-target keys.
package statemachine
