// Package quadtree implements a Barnes-Hut quadtree for 2-D gravity.
//
// A [Tree] is built from a snapshot of bodies. Each node covers a square,
// splits into four equal quadrants (clockwise from top right), and records
// the total mass and center of mass of the bodies inside it. A node stops
// splitting when it holds at most one body, when all of its bodies share a
// position, or when its side drops below [Params.MinSize].
//
// [Tree.NetForce] walks the tree from the root. A node whose side divided
// by its distance to the target is below [Params.ThresholdRatio] is treated
// as a single point mass; otherwise its children are visited. Separations
// shorter than the target's radius are clamped to the radius.
package quadtree
