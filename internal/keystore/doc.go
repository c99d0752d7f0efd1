// Package keystore persists the backend API key in the operating system
// keyring so it never has to live in config files or shell history.
//
// Resolution order is decided by the caller: an explicitly configured key
// (flag, file, environment) wins over the keyring, and an empty result
// everywhere means the backend is called unauthenticated.
//
//	store := keystore.New()
//	key, err := store.Get()
//	if errors.Is(err, keystore.ErrNotFound) {
//	    // no stored key, fall back or run unauthenticated
//	}
package keystore
