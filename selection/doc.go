// Package selection orders training examples by a data map metric and
// selects easy, ambiguous or hard subsets of the training set.
package selection
