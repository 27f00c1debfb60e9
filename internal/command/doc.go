// Package command holds the shared data model: the persisted command list
// (Spec, Parse, Encode) and the normalized outcome of one run (Result).
package command
