// Package testutil holds test helpers shared by kvenv's packages: output
// capture, env file fixtures, and an in-memory Key Vault that satisfies the
// keyvault package's SecretSetter and SecretGetter.
package testutil
