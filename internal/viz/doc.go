// Package viz draws a running simulation in the terminal.
//
// [Model] is a Bubble Tea model that steps a [sim.Driver] on every tick and
// renders bodies on a Braille [Canvas]. The quadtree partition and the nodes
// a probe at the cursor aggregates can be overlaid.
//
// # Key Bindings
//
//	Space  - Pause/Resume
//	R      - Reset to the initial bodies
//	O      - Toggle tree overlay
//	U      - Toggle used-node overlay for the cursor
//	A      - Add a unit mass at the cursor
//	Arrows - Move the cursor (also hjkl)
//	T      - Cycle color themes
//	?      - Show help overlay
package viz
