// Package password hashes and verifies secrets and generates temporary
// passwords for the reset flow.
//
// Bcrypt is the default hasher; its cost is the work factor and should be
// raised over time. Argon2 is available for deployments that prefer a
// memory-hard function. Both produce self-describing digests, so a stored
// hash keeps verifying after the configured parameters change.
package password
