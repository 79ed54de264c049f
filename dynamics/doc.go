// Package dynamics records per-epoch training dynamics and derives the data
// map metrics (confidence, variability, correctness, forgetfulness and
// threshold closeness) of every training example.
package dynamics
