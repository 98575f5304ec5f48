// Package framework supervises the long running tasks of a process.
package framework
