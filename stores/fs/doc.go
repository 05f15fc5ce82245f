// Package fs provides a file-backed UserDirectory. Each user lives in
// <StoragePath>/users/<escaped email>.json. Creation is exclusive at the
// filesystem level, so the store stays correct with several processes
// sharing one directory.
package fs
