// Package features turns premise / hypothesis pairs into sparse hashed feature
// indices for the linear NLI classifier.
package features
