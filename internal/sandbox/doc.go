// Package sandbox evaluates user expressions for SCRIPTED rules.
//
// Two dialects are supported: CEL (the default) and expr. Scripts see
// exactly two variables, "inputs" (the ordered list of resolved rule
// inputs) and "input" (its first element). Every evaluation runs under a
// wall-clock timeout; CEL programs are additionally bounded by a cost
// limit and expr programs by a node limit. Compiled programs are kept in a
// bounded LRU cache shared by all requests.
package sandbox
