// Package auth provides account storage, password hashing, and JWT
// access tokens for the HTTP API.
//
// Accounts are door owners: every door belongs to a user, and the API
// layer scopes door operations to the authenticated owner. Admins bypass
// ownership checks and can inspect the message inbox.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// Access tokens are HS256 JWTs validated by signature only, so request
// authentication never touches the database.
package auth
