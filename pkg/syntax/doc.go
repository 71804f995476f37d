// Package syntax is the default syntax extractor of bale.
//
// It lexes JavaScript into a lossless token stream: concatenating the tokens
// reproduces the source byte for byte. Plugins edit tokens and print the tree
// back with Bytes. Imports are read from the token stream, so commented-out
// import statements and strings that merely look like imports are ignored.
package syntax
