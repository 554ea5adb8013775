// Package event defines the addressed behavioral events a controller can schedule
// for a live operator.
//
// An event names exactly one target operator and one behavior. The wire form is an
// externally tagged object whose single key is the behavior name, for example
// {"MoveTo":{"op_id":"crow1","pos":[10,20]}}. Behaviors this build does not know
// still decode when they carry an op_id, so newer controllers can address newer
// operators without a runtime upgrade.
package event
