// Package trainer trains the hashed-feature NLI classifier with mini-batch SGD,
// records training dynamics after every epoch, saves checkpoints and
// evaluates saved models.
package trainer
