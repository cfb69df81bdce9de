// Package auth stores the DVIDS API key outside of config files.
//
// The Manager tries the system keychain first, then an encrypted file in the
// user config directory, and finally reads DVIDS_API_KEY from the
// environment.
package auth
