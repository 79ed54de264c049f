// Package main trains and evaluates the NLI classifier. Training records the
// training dynamics of every example; both training and evaluation can be
// restricted to a subset selected from previously computed dynamics metrics.
package main
