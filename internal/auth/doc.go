// Package auth provides authentication and authorisation for the Armlink API.
//
// API clients are machines (acquisition rigs, dashboards, LabVIEW hosts),
// not people. Each client is registered in configuration with:
//   - an ID
//   - an Argon2id hash of its key (the plaintext key never touches disk)
//   - a role: viewer, operator or admin
//
// A client exchanges its ID and key for a short-lived HS256 JWT, which is
// then sent as a Bearer token. Tokens are validated by signature only; there
// is no server-side token store.
//
// Permissions are a static role → permission mapping:
//
//	viewer    armband:read, session:read
//	operator  viewer + armband:command
//	admin     operator + system:admin
package auth
