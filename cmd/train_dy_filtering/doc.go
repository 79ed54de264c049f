// Package main computes dataset cartography metrics from recorded training
// dynamics, plots the data map and writes filtered training subsets.
package main
